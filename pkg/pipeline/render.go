package pipeline

import (
	"fmt"

	"github.com/matzehuels/flowlines/pkg/config"
	"github.com/matzehuels/flowlines/pkg/render/sink"
)

// RenderOptions controls how a frame is turned into bytes.
type RenderOptions struct {
	Config     *config.Config
	Scale      float64
	Static     bool
	Background string
}

// RenderOptions extracts the render settings from o.
func (o *Options) RenderOptions() RenderOptions {
	return RenderOptions{Config: o.Config, Scale: o.Scale, Static: o.Static, Background: o.Background}
}

// Render generates output artifacts in the requested formats.
func Render(f sink.Frame, formats []string, opts RenderOptions) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(formats))
	for _, format := range formats {
		data, err := RenderFormat(f, format, opts)
		if err != nil {
			return nil, err
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

// RenderFormat renders f in a single format.
func RenderFormat(f sink.Frame, format string, opts RenderOptions) ([]byte, error) {
	switch format {
	case FormatSVG:
		svgOpts := []sink.SVGOption{sink.WithConfig(opts.Config)}
		if opts.Static {
			svgOpts = append(svgOpts, sink.WithoutAnimation())
		}
		return sink.RenderSVG(f, svgOpts...), nil
	case FormatPNG:
		pngOpts := []sink.PNGOption{sink.WithPNGConfig(opts.Config)}
		if opts.Scale > 0 {
			pngOpts = append(pngOpts, sink.WithScale(opts.Scale))
		}
		if opts.Background != "" {
			pngOpts = append(pngOpts, sink.WithBackground(opts.Background))
		}
		data, err := sink.RenderPNG(f, pngOpts...)
		if err != nil {
			return nil, fmt.Errorf("render png: %w", err)
		}
		return data, nil
	case FormatJSON:
		data, err := sink.RenderJSON(f)
		if err != nil {
			return nil, fmt.Errorf("render json: %w", err)
		}
		return data, nil
	}
	return nil, ValidateFormat(format)
}
