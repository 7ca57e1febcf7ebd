// Package sink renders flow geometry into output formats.
//
// # Overview
//
// A sink turns one [Frame] (the geometry of a single published snapshot)
// into bytes. This package provides:
//
//   - SVG: base rails, gradient overlays, a glow filter, a shimmer
//     animation and fading markers
//   - PNG: a raster preview drawn with github.com/gogpu/gg
//   - JSON: the geometry itself, for clients that draw on their own
//
// Sinks read a frame exactly once and never combine data from two
// snapshots. A frame whose Err is set is drawn from the geometry it carries
// (the last settled geometry) plus a short error note.
//
// # SVG Output
//
//	svg := sink.RenderSVG(sink.FromSnapshot(snap),
//	    sink.WithConfig(cfg),
//	    sink.WithoutAnimation(),
//	)
//
// # SVG Options
//
//   - [WithConfig]: stroke, marker and animation settings
//   - [WithoutAnimation]: static output for previews and tests
//   - [WithoutMarkers]: rails and overlays only
//   - [WithoutErrorNote]: never draw the error note
//
// # PNG Output
//
// [RenderPNG] rasterizes the same layers without animation. Use
// [WithScale] for high-DPI output.
//
// # JSON Output
//
// [RenderJSON] writes the sequence number, dimensions, path descriptions,
// routes, sampled markers and, for failed frames, the error code and the
// missing anchors.
package sink
