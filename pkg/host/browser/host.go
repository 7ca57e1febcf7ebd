package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/matzehuels/flowlines/pkg/anchor"
	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
)

// bindingName is the runtime binding the injected observers call.
const bindingName = "__flowlines_notify"

//go:embed measure.js
var measureJS string

//go:embed observe.js
var observeJS string

// Host is a live page acting as a layout host.
type Host struct {
	page     *rod.Page
	selector string
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	nextID int
	layout map[int]func()
	scroll map[int]func()
}

var (
	_ anchor.Host     = (*Host)(nil)
	_ anchor.Notifier = (*Host)(nil)
)

func newHost(page *rod.Page, selector string, logger *log.Logger) *Host {
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		page:     page,
		selector: selector,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		layout:   make(map[int]func()),
		scroll:   make(map[int]func()),
	}
}

// install adds the runtime binding, starts listening for its calls and
// injects the observers.
func (h *Host) install() error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(h.page); err != nil {
		return fmt.Errorf("browser: add binding: %w", err)
	}
	go h.page.Context(h.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == bindingName {
			h.dispatch(e.Payload)
		}
	})()

	if _, err := h.page.Eval(observeJS, h.selector, AnchorAttribute, bindingName); err != nil {
		return fmt.Errorf("browser: inject observers: %w", err)
	}
	return nil
}

// Measure implements anchor.Host.
func (h *Host) Measure(ctx context.Context, names []string) (anchor.Measurement, error) {
	res, err := h.page.Context(ctx).Eval(measureJS, h.selector, AnchorAttribute, names)
	if err != nil {
		if ctx.Err() != nil {
			return anchor.Measurement{}, ctx.Err()
		}
		return anchor.Measurement{}, errors.Wrap(errors.ErrCodeHostDetached, err, "measure page")
	}
	return parseMeasurement(res.Value.Str())
}

// Resize sets the page viewport, which reflows the layout.
func (h *Host) Resize(ctx context.Context, width, height int) error {
	return h.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
}

// Close stops listening and closes the tab.
func (h *Host) Close() error {
	h.cancel()
	return h.page.Close()
}

// OnLayoutChange implements anchor.Notifier.
func (h *Host) OnLayoutChange(fn func()) func() { return h.listen(h.layout, fn) }

// OnScroll implements anchor.Notifier.
func (h *Host) OnScroll(fn func()) func() { return h.listen(h.scroll, fn) }

func (h *Host) listen(set map[int]func(), fn func()) func() {
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

// dispatch fans a binding payload ("layout" or "scroll") out to listeners.
func (h *Host) dispatch(payload string) {
	h.mu.Lock()
	var set map[int]func()
	switch payload {
	case "layout":
		set = h.layout
	case "scroll":
		set = h.scroll
	default:
		h.mu.Unlock()
		h.logger.Debug("ignoring binding payload", "payload", payload)
		return
	}
	fns := make([]func(), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

type jsBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b jsBox) rect() geom.Rect {
	return geom.Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

type jsMeasurement struct {
	Attached  bool             `json:"attached"`
	Container jsBox            `json:"container"`
	Elements  map[string]jsBox `json:"elements"`
}

// parseMeasurement decodes the measuring script's JSON result.
func parseMeasurement(s string) (anchor.Measurement, error) {
	var jm jsMeasurement
	if err := json.Unmarshal([]byte(s), &jm); err != nil {
		return anchor.Measurement{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode page measurement")
	}
	m := anchor.Measurement{
		Attached:  jm.Attached,
		Container: jm.Container.rect(),
		Elements:  make(map[string]geom.Rect, len(jm.Elements)),
	}
	for name, b := range jm.Elements {
		m.Elements[name] = b.rect()
	}
	return m, nil
}
