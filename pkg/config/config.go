// Package config holds the static configuration surface of the flow-geometry
// engine.
//
// A Config is read once at the start of every computation pass through a
// [Provider]; nothing mutates a Config after it has been handed out. Files
// are TOML:
//
//	tension = 0.9
//
//	[routes.left]
//	anchors = ["left-source", "left-mid", "hub"]
//	bow = 0.15
//
//	[markers]
//	per_branch = 5
//	size = 28
//
//	[animation]
//	shimmer = "2.4s"
package config

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/flowlines/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultTension gives a visibly smooth curve through every waypoint.
	DefaultTension = 0.9

	// DefaultAccuracy is the arc-length accuracy in pixels used when
	// realizing paths for sampling.
	DefaultAccuracy = 0.01

	// DefaultMarkersPerBranch is the number of markers sampled on each route.
	DefaultMarkersPerBranch = 5

	// DefaultMarkerSize is the marker diameter in pixels.
	DefaultMarkerSize = 28.0

	// DefaultFrameInterval approximates a 60 Hz display refresh.
	DefaultFrameInterval = time.Second / 60

	// MaxMarkersPerBranch bounds sampling work per pass.
	MaxMarkersPerBranch = 256
)

// Default route anchor names.
const (
	AnchorLeftSource  = "left-source"
	AnchorLeftMid     = "left-mid"
	AnchorRightSource = "right-source"
	AnchorRightMid    = "right-mid"
	AnchorHub         = "hub"
	AnchorSink        = "sink"
)

// =============================================================================
// Types
// =============================================================================

// Config contains every tunable of the engine and its renderers.
type Config struct {
	// Tension scales how far spline control points are pulled from the
	// straight path. 0 yields straight segments.
	Tension float64 `toml:"tension" json:"tension"`

	// Accuracy is the arc-length tolerance for path realization.
	Accuracy float64 `toml:"accuracy" json:"accuracy"`

	Routes    Routes    `toml:"routes" json:"routes"`
	Markers   Markers   `toml:"markers" json:"markers"`
	Stroke    Stroke    `toml:"stroke" json:"stroke"`
	Animation Animation `toml:"animation" json:"animation"`
	Frame     Frame     `toml:"frame" json:"frame"`
}

// Routes defines the three logical connective paths.
type Routes struct {
	Left  Route `toml:"left" json:"left"`
	Right Route `toml:"right" json:"right"`
	Spine Route `toml:"spine" json:"spine"`
}

// Route is an ordered list of anchor names plus the bow used to synthesize
// midpoints between consecutive waypoints.
type Route struct {
	Anchors []string `toml:"anchors" json:"anchors"`

	// Bow displaces a synthesized midpoint between each waypoint pair
	// perpendicular to the pair, as a fraction of the pair's distance,
	// toward the container's vertical center line. 0 disables synthesis.
	Bow float64 `toml:"bow" json:"bow"`
}

// Markers controls decorative marker placement.
type Markers struct {
	PerBranch int     `toml:"per_branch" json:"per_branch"`
	Size      float64 `toml:"size" json:"size"`
}

// Stroke controls path drawing.
type Stroke struct {
	Width        float64 `toml:"width" json:"width"`
	RailColor    string  `toml:"rail_color" json:"rail_color"`
	GradientFrom string  `toml:"gradient_from" json:"gradient_from"`
	GradientTo   string  `toml:"gradient_to" json:"gradient_to"`
	Glow         float64 `toml:"glow" json:"glow"`
}

// Animation controls renderer animation durations.
type Animation struct {
	Shimmer    Duration `toml:"shimmer" json:"shimmer"`
	MarkerFade Duration `toml:"marker_fade" json:"marker_fade"`
}

// Frame controls the scheduler's frame clock.
type Frame struct {
	Interval Duration `toml:"interval" json:"interval"`
}

// Duration is a time.Duration that decodes from strings such as "2.4s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// =============================================================================
// Constructors
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tension:  DefaultTension,
		Accuracy: DefaultAccuracy,
		Routes: Routes{
			Left:  Route{Anchors: []string{AnchorLeftSource, AnchorLeftMid, AnchorHub}, Bow: 0.12},
			Right: Route{Anchors: []string{AnchorRightSource, AnchorRightMid, AnchorHub}, Bow: 0.12},
			Spine: Route{Anchors: []string{AnchorHub, AnchorSink}},
		},
		Markers: Markers{PerBranch: DefaultMarkersPerBranch, Size: DefaultMarkerSize},
		Stroke: Stroke{
			Width:        3,
			RailColor:    "#e2e8f0",
			GradientFrom: "#6366f1",
			GradientTo:   "#ec4899",
			Glow:         4,
		},
		Animation: Animation{
			Shimmer:    Duration{2400 * time.Millisecond},
			MarkerFade: Duration{600 * time.Millisecond},
		},
		Frame: Frame{Interval: Duration{DefaultFrameInterval}},
	}
}

// Load reads a TOML file on top of the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
		}
		return nil, err
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads TOML from r on top of the defaults and validates the result.
// Keys that do not belong to Config are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q", undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Routes.Left.Anchors = append([]string(nil), c.Routes.Left.Anchors...)
	out.Routes.Right.Anchors = append([]string(nil), c.Routes.Right.Anchors...)
	out.Routes.Spine.Anchors = append([]string(nil), c.Routes.Spine.Anchors...)
	return &out
}

// Hash returns a stable digest input for cache keys.
func (c *Config) Hash() []byte {
	var buf bytes.Buffer
	_ = c.Encode(&buf)
	return buf.Bytes()
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks ranges and route definitions.
// Routes with fewer than two anchors are accepted here and reported as
// degenerate geometry by the calculator, so a malformed route never stops the
// other routes from being validated.
func (c *Config) Validate() error {
	if !finite(c.Tension) || c.Tension < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "tension must be a finite value >= 0, got %v", c.Tension)
	}
	if !finite(c.Accuracy) || c.Accuracy <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "accuracy must be > 0, got %v", c.Accuracy)
	}
	if c.Markers.PerBranch < 1 || c.Markers.PerBranch > MaxMarkersPerBranch {
		return errors.New(errors.ErrCodeInvalidConfig, "markers.per_branch must be in [1, %d], got %d",
			MaxMarkersPerBranch, c.Markers.PerBranch)
	}
	if c.Markers.Size < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "markers.size must be >= 0, got %v", c.Markers.Size)
	}
	if c.Stroke.Width < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "stroke.width must be >= 0, got %v", c.Stroke.Width)
	}
	if c.Frame.Interval.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "frame.interval must be > 0")
	}
	for _, r := range []struct {
		name  string
		route Route
	}{{"left", c.Routes.Left}, {"right", c.Routes.Right}, {"spine", c.Routes.Spine}} {
		if !finite(r.route.Bow) {
			return errors.New(errors.ErrCodeInvalidConfig, "routes.%s.bow must be finite", r.name)
		}
		for _, name := range r.route.Anchors {
			if err := errors.ValidateAnchorName(name); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidConfig, err, "routes.%s", r.name)
			}
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
