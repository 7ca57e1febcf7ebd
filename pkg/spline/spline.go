// Package spline turns an ordered list of waypoints into a smooth path that
// passes through every waypoint.
//
// The curve is a Catmull-Rom spline converted to cubic Bézier segments. For
// each segment p1→p2 with neighbors p0 and p3 (the end points stand in for
// their own missing neighbors) the control points are
//
//	c1 = p1 + (p2 - p0) · tension / 6
//	c2 = p2 - (p3 - p1) · tension / 6
//
// Tension 0 yields straight line segments. Output is deterministic: the same
// points and tension always produce the byte-identical path string.
package spline

import (
	"math"

	"honnef.co/go/curve"

	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
)

// Build returns the SVG path description of the spline through points.
//
// Fewer than two points is a DegenerateGeometry error. Exactly two points
// yield "M… L…".
func Build(points []geom.Point, tension float64) (string, error) {
	p, err := Elements(points, tension)
	if err != nil {
		return "", err
	}
	return Format(p), nil
}

// Format renders a path in the shortest exact decimal form of each
// coordinate.
func Format(p curve.BezPath) string {
	return curve.SVG(p.Elements(), curve.SVGOptions{})
}

// Elements returns the spline through points as path elements.
func Elements(points []geom.Point, tension float64) (curve.BezPath, error) {
	if math.IsNaN(tension) || math.IsInf(tension, 0) || tension < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "tension must be a finite value >= 0, got %v", tension)
	}
	if len(points) < 2 {
		return nil, errors.New(errors.ErrCodeDegenerateGeometry, "spline needs at least 2 points, got %d", len(points))
	}
	for i, p := range points {
		if !p.IsFinite() {
			return nil, errors.New(errors.ErrCodeInvalidInput, "point %d is not finite: %v", i, p)
		}
	}

	path := make(curve.BezPath, 0, len(points))
	path.MoveTo(points[0].Curve())

	if len(points) == 2 || tension == 0 {
		for _, p := range points[1:] {
			path.LineTo(p.Curve())
		}
		return path, nil
	}

	k := tension / 6
	last := len(points) - 1
	for i := 0; i < last; i++ {
		p0 := points[max(i-1, 0)]
		p1 := points[i]
		p2 := points[i+1]
		p3 := points[min(i+2, last)]

		if p1 == p2 {
			path.LineTo(p2.Curve())
			continue
		}

		c1 := p1.Add(p2.Sub(p0).Scale(k))
		c2 := p2.Sub(p3.Sub(p1).Scale(k))
		path.CubicTo(c1.Curve(), c2.Curve(), p2.Curve())
	}
	return path, nil
}
