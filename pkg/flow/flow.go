// Package flow derives the three connective routes of the flow diagram from
// located anchors.
//
// [Calculate] is pure: it assembles each route's waypoints from the anchor
// names configured for it, adds bow midpoints where configured and hands the
// result to the spline builder. [Compute] runs one complete synchronous pass
// on top of it, realizing every path and sampling marker positions along it.
package flow

import (
	"fmt"
	"math"

	"github.com/matzehuels/flowlines/pkg/arclen"
	"github.com/matzehuels/flowlines/pkg/config"
	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
	"github.com/matzehuels/flowlines/pkg/spline"
)

// Route identifies one of the three logical paths.
type Route int

const (
	Left Route = iota
	Right
	Spine
)

// AllRoutes lists the routes in drawing order.
var AllRoutes = []Route{Left, Right, Spine}

func (r Route) String() string {
	switch r {
	case Left:
		return "left"
	case Right:
		return "right"
	case Spine:
		return "spine"
	default:
		return "unknown"
	}
}

// Points holds one point list per route.
type Points struct {
	Left  []geom.Point `json:"left"`
	Right []geom.Point `json:"right"`
	Spine []geom.Point `json:"spine"`
}

// Samples holds the marker positions sampled along each route.
type Samples = Points

// Get returns the points of route r.
func (p Points) Get(r Route) []geom.Point {
	switch r {
	case Left:
		return p.Left
	case Right:
		return p.Right
	case Spine:
		return p.Spine
	}
	return nil
}

func (p *Points) set(r Route, pts []geom.Point) {
	switch r {
	case Left:
		p.Left = pts
	case Right:
		p.Right = pts
	case Spine:
		p.Spine = pts
	}
}

// Result is the output of Calculate.
type Result struct {
	Left, Right, Spine             []geom.Point
	LeftPath, RightPath, SpinePath string
}

// Path returns the path description of route r.
func (r Result) Path(route Route) string {
	switch route {
	case Left:
		return r.LeftPath
	case Right:
		return r.RightPath
	case Spine:
		return r.SpinePath
	}
	return ""
}

// RequiredAnchors returns every anchor name used by the configured routes,
// without duplicates, in route order.
func RequiredAnchors(cfg *config.Config) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range AllRoutes {
		for _, n := range routeConfig(cfg, r).Anchors {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// Calculate builds the waypoints and path description of every route.
//
// Any required anchor absent from anchors is a MissingAnchors error naming
// all of them; geometry is never substituted. A route configured with fewer
// than two anchors, or a bowed route in a collapsed (zero-area) container,
// is a DegenerateGeometry error.
func Calculate(anchors map[string]geom.Anchor, width, height float64, cfg *config.Config) (Result, error) {
	if !finite(width) || !finite(height) || width < 0 || height < 0 {
		return Result{}, errors.New(errors.ErrCodeInvalidInput, "invalid container size %vx%v", width, height)
	}

	var missing []string
	for _, n := range RequiredAnchors(cfg) {
		if _, ok := anchors[n]; !ok {
			missing = append(missing, n)
		}
	}
	if err := errors.MissingAnchors(missing); err != nil {
		return Result{}, err
	}

	dims := geom.Dimensions{Width: width, Height: height}
	var pts Points
	paths := make(map[Route]string, len(AllRoutes))
	for _, r := range AllRoutes {
		rc := routeConfig(cfg, r)
		if len(rc.Anchors) < 2 {
			return Result{}, errors.New(errors.ErrCodeDegenerateGeometry,
				"route %s has %d anchors, need at least 2", r, len(rc.Anchors))
		}
		// Bow midpoints are bent toward and clamped to the container.
		if rc.Bow != 0 && dims.Empty() {
			return Result{}, errors.New(errors.ErrCodeDegenerateGeometry,
				"route %s is bowed but the container is %vx%v", r, width, height)
		}

		waypoints := make([]geom.Point, len(rc.Anchors))
		for i, n := range rc.Anchors {
			waypoints[i] = anchors[n].Point()
		}
		waypoints = withBow(waypoints, rc.Bow, dims)

		d, err := spline.Build(waypoints, cfg.Tension)
		if err != nil {
			return Result{}, fmt.Errorf("route %s: %w", r, err)
		}
		pts.set(r, waypoints)
		paths[r] = d
	}

	return Result{
		Left:      pts.Left,
		Right:     pts.Right,
		Spine:     pts.Spine,
		LeftPath:  paths[Left],
		RightPath: paths[Right],
		SpinePath: paths[Spine],
	}, nil
}

// withBow inserts a midpoint between every pair of distinct consecutive
// waypoints, pushed perpendicular to the pair by bow times the pair's
// distance toward the container's vertical center line and clamped to the
// container. A pair whose midpoint already sits on the center line bows
// along the pair's left-hand normal.
func withBow(points []geom.Point, bow float64, dims geom.Dimensions) []geom.Point {
	if bow == 0 || len(points) < 2 {
		return points
	}
	center := dims.Width / 2

	out := make([]geom.Point, 0, 2*len(points)-1)
	out = append(out, points[0])
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		length := a.Distance(b)
		if length == 0 {
			out = append(out, b)
			continue
		}
		d := b.Sub(a)
		normal := geom.Pt(-d.Y/length, d.X/length)
		mid := a.Lerp(b, 0.5)
		if normal.X*(center-mid.X) < 0 {
			normal = normal.Scale(-1)
		}
		out = append(out, dims.Clamp(mid.Add(normal.Scale(bow*length))), b)
	}
	return out
}

func routeConfig(cfg *config.Config, r Route) config.Route {
	switch r {
	case Left:
		return cfg.Routes.Left
	case Right:
		return cfg.Routes.Right
	default:
		return cfg.Routes.Spine
	}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Geometry is the complete output of one computation pass.
type Geometry struct {
	Dimensions geom.Dimensions `json:"dimensions"`
	LeftPath   string          `json:"left_path"`
	RightPath  string          `json:"right_path"`
	SpinePath  string          `json:"spine_path"`
	Routes     Points          `json:"routes"`
	Samples    Samples         `json:"samples"`
}

// Path returns the path description of route r.
func (g Geometry) Path(r Route) string {
	switch r {
	case Left:
		return g.LeftPath
	case Right:
		return g.RightPath
	case Spine:
		return g.SpinePath
	}
	return ""
}

// IsZero reports whether g carries no paths.
func (g Geometry) IsZero() bool {
	return g.LeftPath == "" && g.RightPath == "" && g.SpinePath == ""
}

// Compute runs Calculate, realizes each path with realizer (arclen.Default
// when nil) and samples cfg.Markers.PerBranch markers along every route.
func Compute(anchors map[string]geom.Anchor, dims geom.Dimensions, cfg *config.Config, realizer arclen.Realizer) (Geometry, error) {
	if realizer == nil {
		realizer = arclen.Default
	}

	res, err := Calculate(anchors, dims.Width, dims.Height, cfg)
	if err != nil {
		return Geometry{}, err
	}

	g := Geometry{
		Dimensions: dims,
		LeftPath:   res.LeftPath,
		RightPath:  res.RightPath,
		SpinePath:  res.SpinePath,
		Routes:     Points{Left: res.Left, Right: res.Right, Spine: res.Spine},
	}
	for _, r := range AllRoutes {
		p, err := realizer.Realize(res.Path(r), cfg.Accuracy)
		if err != nil {
			return Geometry{}, fmt.Errorf("realize route %s: %w", r, err)
		}
		pts, err := arclen.Sample(p, cfg.Markers.PerBranch)
		if err != nil {
			return Geometry{}, fmt.Errorf("sample route %s: %w", r, err)
		}
		g.Samples.set(r, pts)
	}
	return g, nil
}
