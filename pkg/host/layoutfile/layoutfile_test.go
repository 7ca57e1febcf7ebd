package layoutfile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlines/pkg/anchor"
	flerrors "github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
)

const sampleTOML = `
[container]
x = 10
y = 20
width = 800
height = 400

[[elements]]
name = "hub"
x = 390
y = 200
width = 40
height = 40

[[elements]]
name = "sink"
x = 400
y = 360
width = 20
height = 20
`

const sampleJSON = `{
  "container": {"x": 10, "y": 20, "width": 800, "height": 400},
  "elements": [
    {"name": "hub", "x": 390, "y": 200, "width": 40, "height": 40},
    {"name": "sink", "x": 400, "y": 360, "width": 20, "height": 20}
  ]
}`

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format Format
	}{
		{"toml", sampleTOML, FormatTOML},
		{"json", sampleJSON, FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(strings.NewReader(tt.input), tt.format)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if doc.Container != (geom.Rect{X: 10, Y: 20, Width: 800, Height: 400}) {
				t.Errorf("Container = %+v", doc.Container)
			}
			if len(doc.Elements) != 2 || doc.Elements[0].Name != "hub" {
				t.Errorf("Elements = %+v", doc.Elements)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format Format
		code   flerrors.Code
	}{
		{"bad toml", "[container", FormatTOML, flerrors.ErrCodeInvalidFormat},
		{"unknown toml key", sampleTOML + "\nextra = 1\n", FormatTOML, flerrors.ErrCodeInvalidFormat},
		{"unknown json key", `{"container":{"width":1,"height":1},"bogus":1}`, FormatJSON, flerrors.ErrCodeInvalidFormat},
		{"empty container", `{"container":{"width":0,"height":1}}`, FormatJSON, flerrors.ErrCodeInvalidInput},
		{"unnamed element", `{"container":{"width":1,"height":1},"elements":[{"x":1}]}`, FormatJSON, flerrors.ErrCodeInvalidInput},
		{"duplicate element", `{"container":{"width":1,"height":1},"elements":[{"name":"a"},{"name":"a"}]}`, FormatJSON, flerrors.ErrCodeInvalidInput},
		{"negative box", `{"container":{"width":1,"height":1},"elements":[{"name":"a","width":-1}]}`, FormatJSON, flerrors.ErrCodeInvalidInput},
		{"unknown format", "", Format("yaml"), flerrors.ErrCodeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), tt.format)
			if !flerrors.Is(err, tt.code) {
				t.Errorf("Decode error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	doc, _ := Decode(strings.NewReader(sampleTOML), FormatTOML)
	for _, format := range []Format{FormatTOML, FormatJSON} {
		var buf bytes.Buffer
		if err := doc.Encode(&buf, format); err != nil {
			t.Fatalf("Encode(%s): %v", format, err)
		}
		back, err := Decode(&buf, format)
		if err != nil {
			t.Fatalf("Decode(%s): %v", format, err)
		}
		if back.Container != doc.Container || len(back.Elements) != len(doc.Elements) {
			t.Errorf("%s round trip = %+v, want %+v", format, back, doc)
		}
	}
	if err := doc.Encode(io.Discard, Format("xml")); err == nil {
		t.Error("Encode(xml) should fail")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"layout.toml": FormatTOML,
		"layout.json": FormatJSON,
		"LAYOUT.JSON": FormatJSON,
		"layout":      FormatTOML,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.json")
	os.WriteFile(path, []byte(sampleJSON), 0o644)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Elements) != 2 {
		t.Errorf("Elements = %d, want 2", len(doc.Elements))
	}

	_, err = Load(filepath.Join(dir, "missing.toml"))
	if !flerrors.Is(err, flerrors.ErrCodeFileNotFound) {
		t.Errorf("Load missing error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestHostLocatesAnchors(t *testing.T) {
	doc, _ := Decode(strings.NewReader(sampleTOML), FormatTOML)
	h := doc.Host()

	res, err := anchor.Locate(context.Background(), h, []string{"hub", "sink"})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	// hub center (410, 220) minus container origin (10, 20)
	if got := res.Anchors["hub"].Point(); got != geom.Pt(400, 200) {
		t.Errorf("hub = %v, want (400, 200)", got)
	}
	if res.Dimensions != (geom.Dimensions{Width: 800, Height: 400}) {
		t.Errorf("Dimensions = %+v", res.Dimensions)
	}
}

func TestDetachedDocument(t *testing.T) {
	doc, _ := Decode(strings.NewReader(`{"container":{"width":1,"height":1},"detached":true}`), FormatJSON)
	h := doc.Host()
	if h.Attached() {
		t.Error("detached document should yield a detached host")
	}

	doc.Detached = false
	doc.Apply(h)
	if !h.Attached() {
		t.Error("Apply should re-attach the host")
	}
}

func TestApplyAndFromHost(t *testing.T) {
	h := anchor.NewStaticHost(geom.Rect{Width: 1, Height: 1})
	h.SetElement("stale", geom.Rect{})

	var changes int
	h.OnLayoutChange(func() { changes++ })

	doc, _ := Decode(strings.NewReader(sampleTOML), FormatTOML)
	doc.Apply(h)
	if changes != 1 {
		t.Errorf("layout notifications = %d, want 1", changes)
	}

	back := FromHost(h)
	if len(back.Elements) != 2 || back.Elements[0].Name != "hub" || back.Elements[1].Name != "sink" {
		t.Errorf("FromHost elements = %+v", back.Elements)
	}
	if back.Container != doc.Container {
		t.Errorf("FromHost container = %+v", back.Container)
	}
}

func TestLoadRecordsModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	os.WriteFile(path, []byte(sampleTOML), 0o644)
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	os.Chtimes(path, stamp, stamp)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !doc.ModTime.Equal(stamp) {
		t.Errorf("ModTime = %v, want %v", doc.ModTime, stamp)
	}
}

// startWatch runs Watch on path for the document's host and returns the
// layout-change channel plus a stop func reporting Watch's error.
func startWatch(t *testing.T, path string, doc *Document) (*anchor.StaticHost, <-chan struct{}, func() error) {
	t.Helper()
	h := doc.Host()
	changed := make(chan struct{}, 8)
	h.OnLayoutChange(func() { changed <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, h, doc.ModTime, log.New(io.Discard)) }()
	return h, changed, func() error {
		cancel()
		return <-done
	}
}

func waitChange(t *testing.T, changed <-chan struct{}) {
	t.Helper()
	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not apply the new revision")
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	os.WriteFile(path, []byte(sampleTOML), 0o644)
	doc, _ := Load(path)

	h, changed, stop := startWatch(t, path, doc)

	updated := strings.Replace(sampleTOML, "width = 800", "width = 1024", 1)
	os.WriteFile(path, []byte(updated), 0o644)
	future := time.Now().Add(time.Hour)
	os.Chtimes(path, future, future)

	waitChange(t, changed)
	if got := h.Container().Width; got != 1024 {
		t.Errorf("Container().Width = %v, want 1024", got)
	}
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Watch error = %v, want context.Canceled", err)
	}
}

// An edit landing between Load and Watch must not be lost.
func TestWatchAppliesEditBeforeStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	os.WriteFile(path, []byte(sampleTOML), 0o644)
	past := time.Now().Add(-time.Hour)
	os.Chtimes(path, past, past)
	doc, _ := Load(path)

	updated := strings.Replace(sampleTOML, "height = 400", "height = 600", 1)
	os.WriteFile(path, []byte(updated), 0o644)

	h, changed, stop := startWatch(t, path, doc)
	defer stop()

	waitChange(t, changed)
	if got := h.Container().Height; got != 600 {
		t.Errorf("Container().Height = %v, want 600", got)
	}
}

func TestWatchFollowsRenameSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.toml")
	os.WriteFile(path, []byte(sampleTOML), 0o644)
	past := time.Now().Add(-time.Hour)
	os.Chtimes(path, past, past)
	doc, _ := Load(path)

	h, changed, stop := startWatch(t, path, doc)
	defer stop()

	tmp := filepath.Join(dir, "layout.toml.tmp")
	updated := strings.Replace(sampleTOML, "width = 800", "width = 640", 1)
	os.WriteFile(tmp, []byte(updated), 0o644)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	waitChange(t, changed)
	if got := h.Container().Width; got != 640 {
		t.Errorf("Container().Width = %v, want 640", got)
	}
}

func TestWatchKeepsLayoutOnBadRevision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	os.WriteFile(path, []byte(sampleTOML), 0o644)
	past := time.Now().Add(-time.Hour)
	os.Chtimes(path, past, past)
	doc, _ := Load(path)

	os.WriteFile(path, []byte("[container\nwidth ="), 0o644)

	h, changed, stop := startWatch(t, path, doc)
	time.Sleep(4 * SettleDelay)
	stop()

	select {
	case <-changed:
		t.Error("a broken revision should not reach the host")
	default:
	}
	if got := h.Container().Width; got != 800 {
		t.Errorf("Container().Width = %v, want 800", got)
	}
}
