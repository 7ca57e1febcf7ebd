// Package pkg provides the core libraries for flowlines responsive flow
// geometry.
//
// # Overview
//
// Flowlines draws smooth connective paths between named elements of a layout
// and keeps them correct while the layout moves. The pkg directory is
// organized into four main areas:
//
//  1. Geometry: [geom], [spline] (Catmull-Rom path building), [arclen]
//     (arc-length realization and sampling) and [flow] (the pure path
//     calculator)
//  2. Runtime: [anchor] (locating anchors on a layout host), [scheduler]
//     (frame-coalesced recomputation and atomic snapshot publication) and the
//     hosts under host/ (layout documents, live pages via Chrome)
//  3. Output: render/sink (SVG, PNG and JSON) and [pipeline] (cached
//     measure → compute → render)
//  4. Infrastructure: [config], [cache], [errors], [observability]
//
// # Architecture
//
// The typical data flow through flowlines:
//
//	Layout host (document, page)
//	         ↓
//	    [anchor] Locate        anchor centers relative to the container
//	         ↓
//	    [flow] Calculate       waypoint routes with synthesized midpoints
//	         ↓
//	    [spline] Build         Catmull-Rom cubic path per route
//	         ↓
//	    [arclen] Sample        evenly spaced marker positions
//	         ↓
//	    [scheduler] Snapshot   published atomically, consumed by sinks
//
// The scheduler runs this chain at most once per frame no matter how many
// layout, scroll or manual triggers arrive, and a failed pass keeps the last
// good geometry visible together with the error.
package pkg
