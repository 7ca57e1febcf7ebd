// Package layoutfile reads layout documents: a container box plus named
// element boxes, written as TOML or JSON. A document stands in for a live
// page when rendering geometry offline or serving it over HTTP.
//
// Example TOML document:
//
//	[container]
//	width = 800
//	height = 400
//
//	[[elements]]
//	name = "hub"
//	x = 380
//	y = 200
//	width = 40
//	height = 40
package layoutfile

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/flowlines/pkg/anchor"
	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
)

// Format identifies a document encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// Document is a decoded layout document. Element boxes are in page space,
// like the container.
type Document struct {
	Container geom.Rect `toml:"container" json:"container"`
	Elements  []Element `toml:"elements" json:"elements"`
	Detached  bool      `toml:"detached,omitempty" json:"detached,omitempty"`

	// ModTime is the file's modification time when Load opened it.
	ModTime time.Time `toml:"-" json:"-"`
}

// Element is one named box.
type Element struct {
	Name   string  `toml:"name" json:"name"`
	X      float64 `toml:"x" json:"x"`
	Y      float64 `toml:"y" json:"y"`
	Width  float64 `toml:"width" json:"width"`
	Height float64 `toml:"height" json:"height"`
}

// Rect returns the element box.
func (e Element) Rect() geom.Rect {
	return geom.Rect{X: e.X, Y: e.Y, Width: e.Width, Height: e.Height}
}

// FormatFromPath picks the encoding from a file extension. Unknown
// extensions are read as TOML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatTOML
}

// Load reads and validates the document at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "layout %s", path)
		}
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	doc, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.ModTime = fi.ModTime()
	return doc, nil
}

// Decode reads and validates a document. Unknown keys are rejected.
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(&doc)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode layout")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown layout key %q", undecoded[0].String())
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode layout")
		}
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported layout format %q", format)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode writes d in the given format.
func (d *Document) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(d)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	return errors.New(errors.ErrCodeUnsupported, "unsupported layout format %q", format)
}

// Validate checks the container size, element names and box values.
func (d *Document) Validate() error {
	c := d.Container
	if !finite(c.X, c.Y, c.Width, c.Height) || c.Width <= 0 || c.Height <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "container must have a finite positive size, got %vx%v", c.Width, c.Height)
	}
	seen := make(map[string]bool, len(d.Elements))
	for i, e := range d.Elements {
		if e.Name == "" {
			return errors.New(errors.ErrCodeInvalidInput, "element %d has no name", i)
		}
		if seen[e.Name] {
			return errors.New(errors.ErrCodeInvalidInput, "duplicate element %q", e.Name)
		}
		seen[e.Name] = true
		if !finite(e.X, e.Y, e.Width, e.Height) || e.Width < 0 || e.Height < 0 {
			return errors.New(errors.ErrCodeInvalidInput, "element %q has an invalid box", e.Name)
		}
	}
	return nil
}

// Boxes returns the element boxes by name.
func (d *Document) Boxes() map[string]geom.Rect {
	out := make(map[string]geom.Rect, len(d.Elements))
	for _, e := range d.Elements {
		out[e.Name] = e.Rect()
	}
	return out
}

// Host returns a StaticHost holding the document's layout.
func (d *Document) Host() *anchor.StaticHost {
	h := anchor.NewStaticHost(d.Container)
	h.Replace(d.Container, d.Boxes())
	if d.Detached {
		h.Detach()
	}
	return h
}

// Apply loads the document into an existing host with one layout change
// notification, plus one more when the attached state flips.
func (d *Document) Apply(h *anchor.StaticHost) {
	h.Replace(d.Container, d.Boxes())
	if h.Attached() == d.Detached {
		if d.Detached {
			h.Detach()
		} else {
			h.Attach()
		}
	}
}

// FromHost snapshots a StaticHost into a document with elements sorted by
// name.
func FromHost(h *anchor.StaticHost) *Document {
	boxes := h.Elements()
	doc := &Document{Container: h.Container(), Detached: !h.Attached()}
	for _, name := range slices.Sorted(maps.Keys(boxes)) {
		r := boxes[name]
		doc.Elements = append(doc.Elements, Element{Name: name, X: r.X, Y: r.Y, Width: r.Width, Height: r.Height})
	}
	return doc
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
