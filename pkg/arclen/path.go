// Package arclen measures path descriptions and samples points along them at
// even arc-length spacing.
//
// Path descriptions are realized into [honnef.co/go/curve] Bézier paths;
// lengths and point-at-length queries are answered with curve's Gauss-Legendre
// arc-length estimates and inverse solvers, at a configurable accuracy in
// pixels.
package arclen

import (
	"math"
	"sort"

	"honnef.co/go/curve"

	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
)

// DefaultAccuracy is the arc-length tolerance in pixels.
const DefaultAccuracy = 0.01

// Path answers length and point-at-length queries for a realized path.
type Path interface {
	// Length returns the total arc length.
	Length() float64
	// PointAt returns the point at the given arc length from the start.
	// Lengths outside [0, Length()] are clamped.
	PointAt(length float64) geom.Point
}

// Realizer turns a path description into a measurable Path.
type Realizer interface {
	Realize(desc string, accuracy float64) (Path, error)
}

// RealizerFunc adapts a function to the Realizer interface.
type RealizerFunc func(desc string, accuracy float64) (Path, error)

// Realize implements Realizer.
func (f RealizerFunc) Realize(desc string, accuracy float64) (Path, error) {
	return f(desc, accuracy)
}

// Default realizes descriptions with [Realize].
var Default Realizer = RealizerFunc(func(desc string, accuracy float64) (Path, error) {
	return Realize(desc, WithAccuracy(accuracy))
})

// Option configures Realize.
type Option func(*options)

type options struct {
	accuracy float64
}

// WithAccuracy sets the arc-length tolerance. Values <= 0 keep the default.
func WithAccuracy(a float64) Option {
	return func(o *options) {
		if a > 0 && !math.IsInf(a, 0) {
			o.accuracy = a
		}
	}
}

// BezierPath is a realized path with precomputed per-segment lengths.
type BezierPath struct {
	elems    curve.BezPath
	segs     []curve.PathSegment
	cum      []float64 // cumulative length at the end of each segment
	start    geom.Point
	accuracy float64
}

// Realize parses desc and measures it.
func Realize(desc string, opts ...Option) (*BezierPath, error) {
	elems, err := Parse(desc)
	if err != nil {
		return nil, err
	}
	return NewBezierPath(elems, opts...)
}

// NewBezierPath measures an already built path. The path must begin with a
// move-to.
func NewBezierPath(elems curve.BezPath, opts ...Option) (*BezierPath, error) {
	o := options{accuracy: DefaultAccuracy}
	for _, opt := range opts {
		opt(&o)
	}
	if len(elems) == 0 || elems[0].Kind != curve.MoveToKind {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "path must begin with a move-to")
	}
	if elems.IsNaN() || elems.IsInf() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "path has non-finite coordinates")
	}

	p := &BezierPath{
		elems:    elems,
		start:    geom.FromCurve(elems[0].P0),
		accuracy: o.accuracy,
	}
	var total float64
	for seg := range elems.Segments() {
		l := seg.Arclen(o.accuracy)
		if math.IsNaN(l) || l < 0 {
			l = 0
		}
		total += l
		p.segs = append(p.segs, seg)
		p.cum = append(p.cum, total)
	}
	return p, nil
}

// Elements returns the underlying path elements.
func (p *BezierPath) Elements() curve.BezPath { return p.elems }

// Length implements Path.
func (p *BezierPath) Length() float64 {
	if len(p.cum) == 0 {
		return 0
	}
	return p.cum[len(p.cum)-1]
}

// PointAt implements Path.
func (p *BezierPath) PointAt(length float64) geom.Point {
	total := p.Length()
	if len(p.segs) == 0 || total == 0 || length <= 0 || math.IsNaN(length) {
		return p.start
	}
	if length >= total {
		return geom.FromCurve(p.segs[len(p.segs)-1].End())
	}

	i := sort.SearchFloat64s(p.cum, length)
	seg := p.segs[i]
	var before float64
	if i > 0 {
		before = p.cum[i-1]
	}
	segLen := p.cum[i] - before
	if segLen <= 0 {
		return geom.FromCurve(seg.End())
	}
	t := seg.SolveForArclen(length-before, p.accuracy)
	return geom.FromCurve(seg.Eval(t))
}
