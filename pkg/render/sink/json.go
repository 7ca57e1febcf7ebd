package sink

import (
	"encoding/json"

	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/flow"
)

// JSONOption configures JSON rendering via [RenderJSON].
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	indent  bool
	samples bool
}

// WithJSONCompact disables pretty-printing.
func WithJSONCompact() JSONOption { return func(r *jsonRenderer) { r.indent = false } }

// WithoutJSONSamples leaves sampled markers out of the document.
func WithoutJSONSamples() JSONOption { return func(r *jsonRenderer) { r.samples = false } }

type jsonOutput struct {
	Seq     uint64       `json:"seq"`
	Width   float64      `json:"width"`
	Height  float64      `json:"height"`
	Paths   jsonPaths    `json:"paths"`
	Routes  flow.Points  `json:"routes"`
	Samples *flow.Points `json:"samples,omitempty"`
	Error   *jsonError   `json:"error,omitempty"`
}

type jsonPaths struct {
	Left  string `json:"left"`
	Right string `json:"right"`
	Spine string `json:"spine"`
}

type jsonError struct {
	Code    string   `json:"code,omitempty"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

// RenderJSON exports f as a JSON document. It returns an error only if
// marshaling fails.
func RenderJSON(f Frame, opts ...JSONOption) ([]byte, error) {
	r := jsonRenderer{indent: true, samples: true}
	for _, opt := range opts {
		opt(&r)
	}

	g := f.Geometry
	out := jsonOutput{
		Seq:    f.Seq,
		Width:  g.Dimensions.Width,
		Height: g.Dimensions.Height,
		Paths:  jsonPaths{Left: g.LeftPath, Right: g.RightPath, Spine: g.SpinePath},
		Routes: g.Routes,
	}
	if r.samples {
		out.Samples = &g.Samples
	}
	if f.Err != nil {
		out.Error = &jsonError{
			Code:    string(errors.GetCode(f.Err)),
			Message: f.note(),
			Missing: errors.MissingNames(f.Err),
		}
	}

	if r.indent {
		return json.MarshalIndent(out, "", "  ")
	}
	return json.Marshal(out)
}
