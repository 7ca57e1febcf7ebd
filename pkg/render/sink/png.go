package sink

import (
	"bytes"
	"fmt"
	"math"

	"github.com/gogpu/gg"
	"honnef.co/go/curve"

	"github.com/matzehuels/flowlines/pkg/arclen"
	"github.com/matzehuels/flowlines/pkg/config"
	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/flow"
)

// MaxPNGPixels bounds the raster size of a single image.
const MaxPNGPixels = 64 << 20

// PNGOption configures PNG rendering.
type PNGOption func(*pngRenderer)

type pngRenderer struct {
	cfg        *config.Config
	scale      float64
	background string
	markers    bool
}

// WithPNGConfig sets stroke and marker settings. Defaults to config.Default().
func WithPNGConfig(cfg *config.Config) PNGOption {
	return func(r *pngRenderer) {
		if cfg != nil {
			r.cfg = cfg
		}
	}
}

// WithScale sets the PNG scale factor (default 2.0 for 2x resolution).
func WithScale(s float64) PNGOption {
	return func(r *pngRenderer) { r.scale = s }
}

// WithBackground fills the image with a hex color before drawing.
// The default is transparent.
func WithBackground(hex string) PNGOption {
	return func(r *pngRenderer) { r.background = hex }
}

// WithoutPNGMarkers omits sampled markers.
func WithoutPNGMarkers() PNGOption { return func(r *pngRenderer) { r.markers = false } }

// RenderPNG rasterizes f: rails, gradient overlays and markers. Failed
// frames get a red indicator dot in the top-left corner.
func RenderPNG(f Frame, opts ...PNGOption) ([]byte, error) {
	r := pngRenderer{cfg: config.Default(), scale: 2.0, markers: true}
	for _, opt := range opts {
		opt(&r)
	}
	if !(r.scale > 0) || math.IsInf(r.scale, 0) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "png scale must be positive, got %v", r.scale)
	}

	dims := f.Geometry.Dimensions
	w, h := int(math.Ceil(dims.Width*r.scale)), int(math.Ceil(dims.Height*r.scale))
	if w <= 0 || h <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot rasterize empty frame %vx%v", dims.Width, dims.Height)
	}
	if w*h > MaxPNGPixels {
		return nil, errors.New(errors.ErrCodeInvalidInput, "png of %dx%d pixels exceeds limit", w, h)
	}

	dc := gg.NewContext(w, h)
	defer dc.Close()
	if r.background != "" {
		dc.ClearWithColor(gg.Hex(r.background))
	}
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	if !f.Geometry.IsZero() {
		if err := r.draw(dc, f.Geometry); err != nil {
			return nil, err
		}
	}
	if f.Err != nil {
		dc.SetFillBrush(gg.SolidHex("#b91c1c"))
		dc.DrawCircle(8*r.scale, 8*r.scale, 4*r.scale)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("draw error indicator: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r pngRenderer) draw(dc *gg.Context, g flow.Geometry) error {
	s := r.cfg.Stroke
	for _, route := range flow.AllRoutes {
		path, err := arclen.Parse(g.Path(route))
		if err != nil {
			return fmt.Errorf("route %s: %w", route, err)
		}

		dc.SetLineWidth((s.Width + 2*s.Glow) * r.scale)
		dc.SetStrokeBrush(gg.SolidHex(s.RailColor))
		r.trace(dc, path)
		if err := dc.Stroke(); err != nil {
			return fmt.Errorf("stroke rail %s: %w", route, err)
		}

		from, to := gradientAxis(g.Routes.Get(route))
		dc.SetLineWidth(s.Width * r.scale)
		gradient := gg.NewLinearGradientBrush(from.X*r.scale, from.Y*r.scale, to.X*r.scale, to.Y*r.scale).
			AddColorStop(0, gg.Hex(s.GradientFrom)).
			AddColorStop(1, gg.Hex(s.GradientTo))
		dc.SetStrokeBrush(gradient)
		r.trace(dc, path)
		if err := dc.Stroke(); err != nil {
			return fmt.Errorf("stroke overlay %s: %w", route, err)
		}

		if !r.markers {
			continue
		}
		dc.SetFillBrush(gradient)
		for _, p := range g.Samples.Get(route) {
			dc.DrawCircle(p.X*r.scale, p.Y*r.scale, r.cfg.Markers.Size/2*r.scale)
			if err := dc.Fill(); err != nil {
				return fmt.Errorf("fill marker %s: %w", route, err)
			}
		}
	}
	return nil
}

func (r pngRenderer) trace(dc *gg.Context, path curve.BezPath) {
	k := r.scale
	for _, el := range path {
		switch el.Kind {
		case curve.MoveToKind:
			dc.MoveTo(el.P0.X*k, el.P0.Y*k)
		case curve.LineToKind:
			dc.LineTo(el.P0.X*k, el.P0.Y*k)
		case curve.QuadToKind:
			dc.QuadraticTo(el.P0.X*k, el.P0.Y*k, el.P1.X*k, el.P1.Y*k)
		case curve.CubicToKind:
			dc.CubicTo(el.P0.X*k, el.P0.Y*k, el.P1.X*k, el.P1.Y*k, el.P2.X*k, el.P2.Y*k)
		case curve.ClosePathKind:
			dc.ClosePath()
		}
	}
}
