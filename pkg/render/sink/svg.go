package sink

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/matzehuels/flowlines/pkg/config"
	"github.com/matzehuels/flowlines/pkg/flow"
	"github.com/matzehuels/flowlines/pkg/geom"
)

const flowCSS = `
    .rail { fill: none; stroke-linecap: round; stroke-linejoin: round; }
    .flow { fill: none; stroke-linecap: round; stroke-linejoin: round; }
    .marker { stroke: none; }
    .flow-error { font: 12px sans-serif; fill: #b91c1c; }`

// SVGOption configures SVG rendering.
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	cfg      *config.Config
	animate  bool
	markers  bool
	errNote  bool
	idPrefix string
}

// WithConfig sets stroke, marker and animation settings. Defaults to
// config.Default().
func WithConfig(cfg *config.Config) SVGOption {
	return func(r *svgRenderer) {
		if cfg != nil {
			r.cfg = cfg
		}
	}
}

// WithoutAnimation omits the shimmer and marker fade animations.
func WithoutAnimation() SVGOption { return func(r *svgRenderer) { r.animate = false } }

// WithoutMarkers omits sampled markers.
func WithoutMarkers() SVGOption { return func(r *svgRenderer) { r.markers = false } }

// WithoutErrorNote omits the note drawn for failed frames.
func WithoutErrorNote() SVGOption { return func(r *svgRenderer) { r.errNote = false } }

// WithIDPrefix prefixes gradient and filter ids so several documents can be
// inlined into one page.
func WithIDPrefix(p string) SVGOption { return func(r *svgRenderer) { r.idPrefix = p } }

func newSVGRenderer(opts ...SVGOption) svgRenderer {
	r := svgRenderer{cfg: config.Default(), animate: true, markers: true, errNote: true}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// RenderSVG renders f as a standalone SVG document.
func RenderSVG(f Frame, opts ...SVGOption) []byte {
	r := newSVGRenderer(opts...)
	dims := f.Geometry.Dimensions

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f" data-seq="%d">`+"\n",
		dims.Width, dims.Height, dims.Width, dims.Height, f.Seq)
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", flowCSS)

	if !f.Geometry.IsZero() {
		r.renderDefs(&buf, f.Geometry)
		r.renderRails(&buf, f.Geometry)
		r.renderOverlays(&buf, f.Geometry)
		if r.markers {
			r.renderMarkers(&buf, f.Geometry)
		}
	}
	if note := f.note(); note != "" && r.errNote {
		fmt.Fprintf(&buf, `  <text class="flow-error" x="8" y="%.1f">%s</text>`+"\n",
			max(dims.Height-8, 12), escapeXML(note))
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (r svgRenderer) id(name string) string { return r.idPrefix + name }

func (r svgRenderer) renderDefs(buf *bytes.Buffer, g flow.Geometry) {
	s := r.cfg.Stroke
	buf.WriteString("  <defs>\n")
	for _, route := range flow.AllRoutes {
		from, to := gradientAxis(g.Routes.Get(route))
		fmt.Fprintf(buf, `    <linearGradient id="%s" gradientUnits="userSpaceOnUse" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f">`+"\n",
			r.id("flow-gradient-"+route.String()), from.X, from.Y, to.X, to.Y)
		fmt.Fprintf(buf, `      <stop offset="0" stop-color="%s"/>`+"\n", escapeXML(s.GradientFrom))
		fmt.Fprintf(buf, `      <stop offset="1" stop-color="%s"/>`+"\n", escapeXML(s.GradientTo))
		buf.WriteString("    </linearGradient>\n")
	}
	if s.Glow > 0 {
		fmt.Fprintf(buf, `    <filter id="%s" x="-20%%" y="-20%%" width="140%%" height="140%%">`+"\n", r.id("flow-glow"))
		fmt.Fprintf(buf, `      <feGaussianBlur in="SourceGraphic" stdDeviation="%.2f" result="blur"/>`+"\n", s.Glow)
		buf.WriteString(`      <feMerge><feMergeNode in="blur"/><feMergeNode in="SourceGraphic"/></feMerge>` + "\n")
		buf.WriteString("    </filter>\n")
	}
	buf.WriteString("  </defs>\n")
}

func (r svgRenderer) renderRails(buf *bytes.Buffer, g flow.Geometry) {
	s := r.cfg.Stroke
	for _, route := range flow.AllRoutes {
		fmt.Fprintf(buf, `  <path class="rail" id="%s" d="%s" stroke="%s" stroke-width="%.2f"/>`+"\n",
			r.id("rail-"+route.String()), g.Path(route), escapeXML(s.RailColor), s.Width)
	}
}

func (r svgRenderer) renderOverlays(buf *bytes.Buffer, g flow.Geometry) {
	s := r.cfg.Stroke
	filter := ""
	if s.Glow > 0 {
		filter = fmt.Sprintf(` filter="url(#%s)"`, r.id("flow-glow"))
	}
	shimmer := r.cfg.Animation.Shimmer.Duration
	for _, route := range flow.AllRoutes {
		fmt.Fprintf(buf, `  <path class="flow" d="%s" stroke="url(#%s)" stroke-width="%.2f"%s`,
			g.Path(route), r.id("flow-gradient-"+route.String()), s.Width, filter)
		if !r.animate || shimmer <= 0 {
			buf.WriteString("/>\n")
			continue
		}
		buf.WriteString(` stroke-dasharray="24 12">` + "\n")
		fmt.Fprintf(buf, `    <animate attributeName="stroke-dashoffset" from="36" to="0" dur="%.3fs" repeatCount="indefinite"/>`+"\n",
			shimmer.Seconds())
		buf.WriteString("  </path>\n")
	}
}

func (r svgRenderer) renderMarkers(buf *bytes.Buffer, g flow.Geometry) {
	size := r.cfg.Markers.Size
	fade := r.cfg.Animation.MarkerFade.Duration
	for _, route := range flow.AllRoutes {
		pts := g.Samples.Get(route)
		for i, p := range pts {
			fmt.Fprintf(buf, `  <circle class="marker" data-route="%s" cx="%.2f" cy="%.2f" r="%.2f" fill="url(#%s)"`,
				route, p.X, p.Y, size/2, r.id("flow-gradient-"+route.String()))
			if !r.animate || fade <= 0 {
				buf.WriteString("/>\n")
				continue
			}
			begin := fade.Seconds() * float64(i) / float64(max(len(pts), 1))
			fmt.Fprintf(buf, ` opacity="0">`+"\n"+`    <animate attributeName="opacity" from="0" to="1" begin="%.3fs" dur="%.3fs" fill="freeze"/>`+"\n  </circle>\n",
				begin, fade.Seconds())
		}
	}
}

// gradientAxis spans a gradient from the first to the last route point.
func gradientAxis(pts []geom.Point) (geom.Point, geom.Point) {
	if len(pts) == 0 {
		return geom.Point{}, geom.Point{X: 1}
	}
	from, to := pts[0], pts[len(pts)-1]
	if from == to {
		to.X++
	}
	return from, to
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
