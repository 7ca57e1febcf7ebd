// Package geom defines the small value types shared by every stage of the
// flow-geometry pipeline.
//
// All coordinates are float64 pixels in a top-left origin frame: X grows to
// the right and Y grows downward. Values are plain structs and are copied,
// never shared, so a pass can hand them to the next stage without aliasing.
package geom

import (
	"fmt"
	"math"

	"honnef.co/go/curve"
)

// Point is a position in container-local coordinates. It is also the type of
// every sampled marker position.
type Point struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// Pt returns the point (x, y).
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) String() string { return fmt.Sprintf("(%g, %g)", p.X, p.Y) }

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p scaled by f.
func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }

// Lerp interpolates linearly between p (t=0) and q (t=1).
func (p Point) Lerp(q Point, t float64) Point {
	return Point{p.X + (q.X-p.X)*t, p.Y + (q.Y-p.Y)*t}
}

// Distance returns the euclidean distance between p and q.
func (p Point) Distance(q Point) float64 { return math.Hypot(q.X-p.X, q.Y-p.Y) }

// ApproxEqual reports whether p and q are within eps on both axes.
func (p Point) ApproxEqual(q Point, eps float64) bool {
	return math.Abs(p.X-q.X) <= eps && math.Abs(p.Y-q.Y) <= eps
}

// IsFinite reports whether both coordinates are neither NaN nor infinite.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Curve converts p to a curve package point.
func (p Point) Curve() curve.Point { return curve.Pt(p.X, p.Y) }

// FromCurve converts a curve package point.
func FromCurve(p curve.Point) Point { return Point{X: p.X, Y: p.Y} }

// Rect is an axis-aligned box given by its top-left corner and size.
type Rect struct {
	X      float64 `json:"x" toml:"x"`
	Y      float64 `json:"y" toml:"y"`
	Width  float64 `json:"width" toml:"width"`
	Height float64 `json:"height" toml:"height"`
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point { return Point{r.X, r.Y} }

// Center returns the middle of the box.
func (r Rect) Center() Point { return Point{r.X + r.Width/2, r.Y + r.Height/2} }

// Size returns the box dimensions.
func (r Rect) Size() Dimensions { return Dimensions{Width: r.Width, Height: r.Height} }

// Dimensions is the size of the container, used both as the coordinate frame
// and as the canvas viewport size.
type Dimensions struct {
	Width  float64 `json:"width" toml:"width"`
	Height float64 `json:"height" toml:"height"`
}

// Empty reports whether either side is zero or negative.
func (d Dimensions) Empty() bool { return d.Width <= 0 || d.Height <= 0 }

// Clamp limits p to the box [0, Width] x [0, Height].
func (d Dimensions) Clamp(p Point) Point {
	return Point{
		X: math.Max(0, math.Min(d.Width, p.X)),
		Y: math.Max(0, math.Min(d.Height, p.Y)),
	}
}

// Anchor is a named waypoint measured relative to the container origin.
type Anchor struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Point returns the anchor position.
func (a Anchor) Point() Point { return Point{a.X, a.Y} }
