package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlines/pkg/anchor"
	"github.com/matzehuels/flowlines/pkg/arclen"
	"github.com/matzehuels/flowlines/pkg/cache"
	"github.com/matzehuels/flowlines/pkg/flow"
	"github.com/matzehuels/flowlines/pkg/geom"
	"github.com/matzehuels/flowlines/pkg/observability"
	"github.com/matzehuels/flowlines/pkg/render/sink"
)

// Runner encapsulates pipeline execution with caching.
// Both the render command and the server use it so caching behaves the same.
//
// The Runner is stateless except for the cache and logger; it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger
	Realizer arclen.Realizer
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete measure → compute → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, host anchor.Host, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}

	// Stage 1: Measure
	measureStart := time.Now()
	located, err := anchor.Locate(ctx, host, flow.RequiredAnchors(opts.Config))
	if err != nil {
		return nil, fmt.Errorf("measure: %w", err)
	}
	result.Anchors = located.Anchors
	result.LayoutHash = LayoutHash(located.Anchors, located.Dimensions)
	result.Stats.AnchorCount = len(located.Anchors)
	result.Stats.MeasureTime = time.Since(measureStart)

	r.Logger.Debug("measured anchors",
		"anchors", len(located.Anchors),
		"width", located.Dimensions.Width,
		"height", located.Dimensions.Height)

	// Stage 2: Compute
	computeStart := time.Now()
	g, computeHit, err := r.ComputeWithCacheInfo(ctx, located.Anchors, located.Dimensions, opts)
	if err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	result.Geometry = g
	result.GeometryHash = GeometryHash(g)
	result.Stats.ComputeTime = time.Since(computeStart)
	result.CacheInfo.ComputeHit = computeHit

	r.Logger.Info("computed geometry",
		"cached", computeHit,
		"duration", result.Stats.ComputeTime)

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, sink.Frame{Geometry: g}, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", renderHit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// ComputeWithCacheInfo computes geometry with caching and returns cache hit info.
func (r *Runner) ComputeWithCacheInfo(ctx context.Context, anchors map[string]geom.Anchor, dims geom.Dimensions, opts Options) (flow.Geometry, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return flow.Geometry{}, false, err
	}
	hooks := observability.Pipeline()
	cacheHooks := observability.Cache()

	cacheKey := r.Keyer.GeometryKey(LayoutHash(anchors, dims), cache.Hash(opts.Config.Hash()))

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var g flow.Geometry
			if err := json.Unmarshal(data, &g); err == nil {
				cacheHooks.OnCacheHit(ctx, cache.KeyTypeGeometry)
				return g, true, nil // Cache hit
			}
			// If deserialization fails, fall through to recompute
		} else if err != nil {
			r.Logger.Warn("geometry cache read failed", "err", err)
		}
	}
	cacheHooks.OnCacheMiss(ctx, cache.KeyTypeGeometry)

	hooks.OnComputeStart(ctx, len(anchors))
	start := time.Now()
	g, err := flow.Compute(anchors, dims, opts.Config, r.Realizer)
	hooks.OnComputeComplete(ctx, time.Since(start), err)
	if err != nil {
		return flow.Geometry{}, false, err
	}

	// Cache the result
	if data, err := json.Marshal(g); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLGeometry); err != nil {
			r.Logger.Warn("geometry cache write failed", "err", err)
		} else {
			cacheHooks.OnCacheSet(ctx, cache.KeyTypeGeometry, len(data))
		}
	}

	return g, false, nil // Cache miss
}

// Compute is a convenience wrapper that calls ComputeWithCacheInfo and discards the cache hit info.
func (r *Runner) Compute(ctx context.Context, anchors map[string]geom.Anchor, dims geom.Dimensions, opts Options) (flow.Geometry, error) {
	g, _, err := r.ComputeWithCacheInfo(ctx, anchors, dims, opts)
	return g, err
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
// Failed frames are never cached: their bytes depend on the error as well as
// on the geometry.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, f sink.Frame, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	hooks := observability.Pipeline()
	cacheHooks := observability.Cache()
	cacheable := f.Err == nil
	geometryHash := GeometryHash(f.Geometry)

	// Try to get all formats from cache
	if cacheable && !opts.Refresh {
		artifacts := make(map[string][]byte, len(opts.Formats))
		for _, format := range opts.Formats {
			cacheKey := r.Keyer.ArtifactKey(geometryHash, opts.ArtifactKeyOpts(format))
			data, hit, err := r.Cache.Get(ctx, cacheKey)
			if err != nil || !hit {
				break
			}
			artifacts[format] = data
		}
		if len(artifacts) == len(opts.Formats) {
			cacheHooks.OnCacheHit(ctx, cache.KeyTypeArtifact)
			return artifacts, true, nil // All artifacts from cache
		}
		cacheHooks.OnCacheMiss(ctx, cache.KeyTypeArtifact)
	}

	// Render all formats
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()
	rendered, err := Render(f, opts.Formats, opts.RenderOptions())
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	// Cache each format
	if cacheable {
		for format, data := range rendered {
			cacheKey := r.Keyer.ArtifactKey(geometryHash, opts.ArtifactKeyOpts(format))
			if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact); err != nil {
				r.Logger.Warn("artifact cache write failed", "format", format, "err", err)
				continue
			}
			cacheHooks.OnCacheSet(ctx, cache.KeyTypeArtifact, len(data))
		}
	}

	return rendered, false, nil // Cache miss
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, f sink.Frame, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, f, opts)
	return artifacts, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// LayoutHash identifies a measured layout: the container size plus every
// anchor position, in name order.
func LayoutHash(anchors map[string]geom.Anchor, dims geom.Dimensions) string {
	ordered := make([]geom.Anchor, 0, len(anchors))
	for _, name := range slices.Sorted(maps.Keys(anchors)) {
		ordered = append(ordered, anchors[name])
	}
	h, _ := cache.HashJSON(struct {
		Dimensions geom.Dimensions `json:"dimensions"`
		Anchors    []geom.Anchor   `json:"anchors"`
	}{dims, ordered})
	return h
}

// GeometryHash is the content hash of g.
func GeometryHash(g flow.Geometry) string {
	h, _ := cache.HashJSON(g)
	return h
}
