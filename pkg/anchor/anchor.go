// Package anchor locates named anchor elements inside a container and
// reports their positions in container-local coordinates.
//
// The layout itself lives behind the [Host] interface: a headless browser, a
// layout document or an in-memory [StaticHost]. Locate never mutates the
// host; it reads one measurement per pass and derives everything else from
// it.
package anchor

import (
	"context"
	"fmt"

	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
)

// Host is the read-only layout surface anchors are measured on.
type Host interface {
	// Measure returns the container's bounding box and the bounding boxes of
	// every named element it can find, all in page space. Names with no
	// matching element are simply absent from Measurement.Elements.
	Measure(ctx context.Context, names []string) (Measurement, error)
}

// Notifier is implemented by hosts that can announce layout changes.
// Each registration returns a function that removes the listener.
type Notifier interface {
	OnLayoutChange(fn func()) (remove func())
	OnScroll(fn func()) (remove func())
}

// Measurement is one read of the host layout.
type Measurement struct {
	Attached  bool
	Container geom.Rect
	Elements  map[string]geom.Rect
}

// Result is the outcome of one Locate call.
type Result struct {
	// Anchors holds every anchor that was found, keyed by name.
	Anchors map[string]geom.Anchor
	// Dimensions is the container size measured in the same read.
	Dimensions geom.Dimensions
	// Missing lists required names that were not found, in required order.
	Missing []string
}

// Locate measures names on host and converts them to container-local
// anchors positioned at their element centers.
//
// A detached container is a HostDetached error. Missing anchors do not stop
// the pass: every missing name is collected and returned both in
// Result.Missing and as a MissingAnchors error, alongside the anchors that
// were found.
func Locate(ctx context.Context, host Host, names []string) (Result, error) {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return Result{}, errors.New(errors.ErrCodeInvalidInput, "duplicate anchor name %q", n)
		}
		seen[n] = struct{}{}
	}

	m, err := host.Measure(ctx, names)
	if err != nil {
		if errors.GetCode(err) != "" {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("measure anchors: %w", err)
	}
	if !m.Attached {
		return Result{}, errors.New(errors.ErrCodeHostDetached, "container is not attached")
	}

	origin := m.Container.Origin()
	res := Result{
		Anchors:    make(map[string]geom.Anchor, len(names)),
		Dimensions: m.Container.Size(),
	}
	for _, n := range names {
		r, ok := m.Elements[n]
		if !ok {
			res.Missing = append(res.Missing, n)
			continue
		}
		c := r.Center().Sub(origin)
		res.Anchors[n] = geom.Anchor{Name: n, X: c.X, Y: c.Y}
	}
	return res, errors.MissingAnchors(res.Missing)
}
