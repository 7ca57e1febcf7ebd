// Package pipeline provides the one-shot geometry pipeline for flowlines.
//
// This package implements the measure → compute → render pipeline that the
// render command and the HTTP server share. By centralizing it, every entry
// point keys its cache the same way and renders the same bytes.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Measure: locate the configured anchors on a layout host
//  2. Compute: derive paths and sampled markers ([flow.Compute])
//  3. Render: produce artifacts (SVG, PNG, JSON) from the geometry
//
// Compute and Render results are cached. The geometry key hashes the
// measured anchors together with the configuration, and the artifact key
// hashes the geometry together with the render options, so an unchanged
// layout never recomputes or re-renders.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, doc.Host(), pipeline.Options{
//	    Config:  cfg,
//	    Formats: []string{"svg", "png"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlines/pkg/cache"
	"github.com/matzehuels/flowlines/pkg/config"
	"github.com/matzehuels/flowlines/pkg/flow"
	"github.com/matzehuels/flowlines/pkg/geom"
)

// =============================================================================
// Default Values
// =============================================================================

// DefaultScale is the default PNG scale factor.
const DefaultScale = 2.0

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatJSON: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one pipeline run.
type Options struct {
	// Config holds the engine and renderer settings. Defaults to
	// config.Default().
	Config *config.Config `json:"-"`

	// Render options
	Formats    []string `json:"formats,omitempty"`
	Scale      float64  `json:"scale,omitempty"`      // PNG scale factor
	Static     bool     `json:"static,omitempty"`     // SVG without animation
	Background string   `json:"background,omitempty"` // PNG background hex color

	// Refresh bypasses cache reads. Results are still written.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Anchors are the measured anchor positions.
	Anchors map[string]geom.Anchor

	// LayoutHash identifies the measured layout.
	LayoutHash string

	// Geometry is the computed geometry.
	Geometry flow.Geometry

	// GeometryHash is the content hash of Geometry.
	GeometryHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	AnchorCount int
	MeasureTime time.Duration
	ComputeTime time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	ComputeHit bool // Whether geometry came from cache
	RenderHit  bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: svg, png, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ParseFormats splits a comma-separated format list, dropping blanks and
// duplicates.
func ParseFormats(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Config == nil {
		o.Config = config.Default()
	}
	if err := o.Config.Validate(); err != nil {
		return err
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if !(o.Scale > 0) || math.IsInf(o.Scale, 0) {
		return fmt.Errorf("invalid scale: %v (must be positive)", o.Scale)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
// Everything that changes the rendered bytes is part of the style.
func (o Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	style := fmt.Sprintf("static=%t", o.Static)
	if format == FormatPNG {
		style = fmt.Sprintf("scale=%g;bg=%s", o.Scale, o.Background)
	}
	if o.Config != nil {
		style += ";cfg=" + cache.Hash(o.Config.Hash())[:16]
	}
	return cache.ArtifactKeyOpts{Format: format, Style: style}
}
