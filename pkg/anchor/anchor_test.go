package anchor

import (
	"context"
	"slices"
	"testing"

	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
)

func newHost() *StaticHost {
	h := NewStaticHost(geom.Rect{X: 100, Y: 50, Width: 800, Height: 400})
	h.SetElement("A", geom.Rect{X: 200, Y: 110, Width: 40, Height: 40})
	h.SetElement("C", geom.Rect{X: 780, Y: 110, Width: 40, Height: 40})
	return h
}

func TestLocate(t *testing.T) {
	h := newHost()

	res, err := Locate(context.Background(), h, []string{"A", "C"})
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if res.Dimensions != (geom.Dimensions{Width: 800, Height: 400}) {
		t.Errorf("Dimensions = %v, want 800x400", res.Dimensions)
	}

	tests := []struct {
		name string
		want geom.Anchor
	}{
		{"A", geom.Anchor{Name: "A", X: 120, Y: 80}},
		{"C", geom.Anchor{Name: "C", X: 700, Y: 80}},
	}
	for _, tt := range tests {
		if got := res.Anchors[tt.name]; got != tt.want {
			t.Errorf("Anchors[%q] = %+v, want %+v", tt.name, got, tt.want)
		}
	}
	if len(res.Missing) != 0 {
		t.Errorf("Missing = %v, want none", res.Missing)
	}
}

func TestLocateMissing(t *testing.T) {
	h := newHost()

	res, err := Locate(context.Background(), h, []string{"A", "B", "C"})
	if !errors.Is(err, errors.ErrCodeMissingAnchor) {
		t.Fatalf("Locate() error = %v, want %v", err, errors.ErrCodeMissingAnchor)
	}
	if want := []string{"B"}; !slices.Equal(res.Missing, want) {
		t.Errorf("Missing = %v, want %v", res.Missing, want)
	}
	if got := errors.MissingNames(err); !slices.Equal(got, []string{"B"}) {
		t.Errorf("MissingNames() = %v, want [B]", got)
	}
	if len(res.Anchors) != 2 {
		t.Errorf("found %d anchors, want 2", len(res.Anchors))
	}
}

func TestLocateReportsEveryMissingName(t *testing.T) {
	h := NewStaticHost(geom.Rect{Width: 10, Height: 10})

	_, err := Locate(context.Background(), h, []string{"z", "a", "m"})
	if got, want := errors.MissingNames(err), []string{"z", "a", "m"}; !slices.Equal(got, want) {
		t.Errorf("MissingNames() = %v, want %v (required order)", got, want)
	}
}

func TestLocateDetached(t *testing.T) {
	h := newHost()
	h.Detach()

	_, err := Locate(context.Background(), h, []string{"A"})
	if !errors.Is(err, errors.ErrCodeHostDetached) {
		t.Errorf("Locate() error = %v, want %v", err, errors.ErrCodeHostDetached)
	}

	h.Attach()
	if _, err := Locate(context.Background(), h, []string{"A"}); err != nil {
		t.Errorf("Locate() after Attach error = %v", err)
	}
}

func TestLocateDuplicateNames(t *testing.T) {
	_, err := Locate(context.Background(), newHost(), []string{"A", "A"})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Locate() error = %v, want %v", err, errors.ErrCodeInvalidInput)
	}
}

func TestLocateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Locate(ctx, newHost(), []string{"A"}); err == nil {
		t.Error("Locate() with canceled context error = nil")
	}
}

func TestLocateIsReadOnly(t *testing.T) {
	h := newHost()
	before := h.Elements()
	_, _ = Locate(context.Background(), h, []string{"A", "B", "C"})
	after := h.Elements()
	if len(before) != len(after) {
		t.Fatalf("element count changed: %d -> %d", len(before), len(after))
	}
	for n, r := range before {
		if after[n] != r {
			t.Errorf("element %q changed: %v -> %v", n, r, after[n])
		}
	}
}

func TestScrollKeepsLocalPositions(t *testing.T) {
	h := newHost()
	before, _ := Locate(context.Background(), h, []string{"A", "C"})

	scrolls := 0
	remove := h.OnScroll(func() { scrolls++ })
	h.Scroll(0, -250)
	remove()
	h.Scroll(0, 10)

	if scrolls != 1 {
		t.Errorf("scroll notifications = %d, want 1", scrolls)
	}
	after, _ := Locate(context.Background(), h, []string{"A", "C"})
	for n, a := range before.Anchors {
		if got := after.Anchors[n]; !got.Point().ApproxEqual(a.Point(), 1e-9) {
			t.Errorf("anchor %q moved from %v to %v", n, a.Point(), got.Point())
		}
	}
}

func TestStaticHostNotifications(t *testing.T) {
	h := NewStaticHost(geom.Rect{Width: 10, Height: 10})

	var changes int
	remove := h.OnLayoutChange(func() { changes++ })
	if h.Listeners() != 1 {
		t.Fatalf("Listeners() = %d, want 1", h.Listeners())
	}

	h.SetElement("a", geom.Rect{})
	h.SetContainer(geom.Rect{Width: 20, Height: 20})
	h.RemoveElement("a")
	h.RemoveElement("a") // no-op
	h.Detach()

	if changes != 4 {
		t.Errorf("layout notifications = %d, want 4", changes)
	}

	remove()
	remove()
	if h.Listeners() != 0 {
		t.Errorf("Listeners() after remove = %d, want 0", h.Listeners())
	}
}

func TestStaticHostReplace(t *testing.T) {
	h := NewStaticHost(geom.Rect{Width: 10, Height: 10})
	h.SetElement("old", geom.Rect{})

	var changes int
	h.OnLayoutChange(func() { changes++ })

	src := map[string]geom.Rect{"new": {X: 1, Y: 1, Width: 2, Height: 2}}
	h.Replace(geom.Rect{Width: 50, Height: 40}, src)
	src["later"] = geom.Rect{}

	if changes != 1 {
		t.Errorf("layout notifications = %d, want 1", changes)
	}
	els := h.Elements()
	if _, ok := els["old"]; ok {
		t.Error("Replace should drop elements not in the new set")
	}
	if _, ok := els["later"]; ok {
		t.Error("Replace should copy the element map")
	}
	if got := h.Container(); got.Width != 50 {
		t.Errorf("Container().Width = %v, want 50", got.Width)
	}

	h.Replace(geom.Rect{Width: 1, Height: 1}, nil)
	h.SetElement("x", geom.Rect{})
	if len(h.Elements()) != 1 {
		t.Errorf("Elements() after nil Replace = %v", h.Elements())
	}
}
