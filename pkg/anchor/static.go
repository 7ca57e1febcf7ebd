package anchor

import (
	"context"
	"maps"
	"sync"

	"github.com/matzehuels/flowlines/pkg/geom"
)

// StaticHost is an in-memory layout host. Mutations notify registered
// listeners after the lock is released, so listeners may call back into the
// host.
type StaticHost struct {
	mu        sync.RWMutex
	attached  bool
	container geom.Rect
	elements  map[string]geom.Rect

	nextID int
	layout map[int]func()
	scroll map[int]func()
}

var (
	_ Host     = (*StaticHost)(nil)
	_ Notifier = (*StaticHost)(nil)
)

// NewStaticHost returns an attached host with the given container box.
func NewStaticHost(container geom.Rect) *StaticHost {
	return &StaticHost{
		attached:  true,
		container: container,
		elements:  make(map[string]geom.Rect),
		layout:    make(map[int]func()),
		scroll:    make(map[int]func()),
	}
}

// Measure implements Host.
func (h *StaticHost) Measure(ctx context.Context, names []string) (Measurement, error) {
	if err := ctx.Err(); err != nil {
		return Measurement{}, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := Measurement{
		Attached:  h.attached,
		Container: h.container,
		Elements:  make(map[string]geom.Rect, len(names)),
	}
	for _, n := range names {
		if r, ok := h.elements[n]; ok {
			m.Elements[n] = r
		}
	}
	return m, nil
}

// Container returns the container box.
func (h *StaticHost) Container() geom.Rect {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.container
}

// Elements returns a copy of every element box.
func (h *StaticHost) Elements() map[string]geom.Rect {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.elements)
}

// Attached reports whether the container is attached.
func (h *StaticHost) Attached() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.attached
}

// SetContainer replaces the container box and announces a layout change.
func (h *StaticHost) SetContainer(r geom.Rect) {
	h.mu.Lock()
	h.container = r
	h.mu.Unlock()
	h.notify(h.layout)
}

// SetElement adds or moves a named element and announces a layout change.
func (h *StaticHost) SetElement(name string, r geom.Rect) {
	h.mu.Lock()
	h.elements[name] = r
	h.mu.Unlock()
	h.notify(h.layout)
}

// RemoveElement deletes a named element. It reports whether the element
// existed; a layout change is announced only if it did.
func (h *StaticHost) RemoveElement(name string) bool {
	h.mu.Lock()
	_, ok := h.elements[name]
	delete(h.elements, name)
	h.mu.Unlock()
	if ok {
		h.notify(h.layout)
	}
	return ok
}

// Replace swaps the container box and the whole element set in one step
// and announces a single layout change.
func (h *StaticHost) Replace(container geom.Rect, elements map[string]geom.Rect) {
	h.mu.Lock()
	h.container = container
	h.elements = maps.Clone(elements)
	if h.elements == nil {
		h.elements = make(map[string]geom.Rect)
	}
	h.mu.Unlock()
	h.notify(h.layout)
}

// Attach marks the container attached and announces a layout change.
func (h *StaticHost) Attach() { h.setAttached(true) }

// Detach marks the container detached and announces a layout change.
func (h *StaticHost) Detach() { h.setAttached(false) }

func (h *StaticHost) setAttached(v bool) {
	h.mu.Lock()
	h.attached = v
	h.mu.Unlock()
	h.notify(h.layout)
}

// Scroll moves the container and every element by (dx, dy) in page space
// and announces a scroll. Container-local anchor positions are unchanged.
func (h *StaticHost) Scroll(dx, dy float64) {
	h.mu.Lock()
	h.container.X += dx
	h.container.Y += dy
	for n, r := range h.elements {
		r.X += dx
		r.Y += dy
		h.elements[n] = r
	}
	h.mu.Unlock()
	h.notify(h.scroll)
}

// OnLayoutChange implements Notifier.
func (h *StaticHost) OnLayoutChange(fn func()) func() { return h.listen(h.layout, fn) }

// OnScroll implements Notifier.
func (h *StaticHost) OnScroll(fn func()) func() { return h.listen(h.scroll, fn) }

// Listeners returns the number of registered listeners.
func (h *StaticHost) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.layout) + len(h.scroll)
}

func (h *StaticHost) listen(set map[int]func(), fn func()) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	set[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(set, id)
			h.mu.Unlock()
		})
	}
}

func (h *StaticHost) notify(set map[int]func()) {
	h.mu.RLock()
	fns := make([]func(), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
