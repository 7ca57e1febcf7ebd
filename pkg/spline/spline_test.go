package spline

import (
	"math"
	"strings"
	"testing"

	"honnef.co/go/curve"

	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		points  []geom.Point
		tension float64
		want    string
	}{
		{
			name:    "two points",
			points:  []geom.Point{geom.Pt(0, 0), geom.Pt(100, 50)},
			tension: 0.9,
			want:    "M0,0 L100,50",
		},
		{
			name:    "three points",
			points:  []geom.Point{geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(200, 100)},
			tension: 3,
			want:    "M0,0 C50,0 0,-50 100,0 C200,50 150,50 200,100",
		},
		{
			name:    "zero tension",
			points:  []geom.Point{geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(200, 100)},
			tension: 0,
			want:    "M0,0 L100,0 L200,100",
		},
		{
			name:    "duplicate consecutive points",
			points:  []geom.Point{geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(100, 0), geom.Pt(200, 100)},
			tension: 3,
			want:    "M0,0 C50,0 50,0 100,0 L100,0 C150,50 150,50 200,100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.points, tt.tension)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Build() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		points  []geom.Point
		tension float64
		code    errors.Code
	}{
		{"no points", nil, 0.9, errors.ErrCodeDegenerateGeometry},
		{"one point", []geom.Point{geom.Pt(1, 1)}, 0.9, errors.ErrCodeDegenerateGeometry},
		{"nan point", []geom.Point{geom.Pt(0, 0), geom.Pt(math.NaN(), 1)}, 0.9, errors.ErrCodeInvalidInput},
		{"inf point", []geom.Point{geom.Pt(math.Inf(1), 0), geom.Pt(0, 1)}, 0.9, errors.ErrCodeInvalidInput},
		{"nan tension", []geom.Point{geom.Pt(0, 0), geom.Pt(1, 1)}, math.NaN(), errors.ErrCodeInvalidInput},
		{"negative tension", []geom.Point{geom.Pt(0, 0), geom.Pt(1, 1)}, -1, errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.points, tt.tension)
			if !errors.Is(err, tt.code) {
				t.Errorf("Build() error = %v, want code %v", err, tt.code)
			}
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	points := []geom.Point{
		geom.Pt(12.5, 40.25), geom.Pt(133.3, 87.1), geom.Pt(260.7, 12.9),
		geom.Pt(390.01, 199.99), geom.Pt(401, 300),
	}
	first, err := Build(points, 0.9)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		got, _ := Build(points, 0.9)
		if got != first {
			t.Fatalf("Build() run %d = %q, want %q", i, got, first)
		}
	}
}

func TestElementsInterpolate(t *testing.T) {
	points := []geom.Point{
		geom.Pt(120, 80), geom.Pt(240, 160), geom.Pt(400, 200),
		geom.Pt(560, 160), geom.Pt(680, 80),
	}
	for _, tension := range []float64{0, 0.5, 0.9, 1.5} {
		path, err := Elements(points, tension)
		if err != nil {
			t.Fatalf("Elements(tension=%v) error = %v", tension, err)
		}

		first, ok := path[0].EndPoint()
		if !ok || geom.FromCurve(first) != points[0] {
			t.Errorf("tension=%v: path starts at %v, want %v", tension, first, points[0])
		}

		i := 1
		for seg := range path.Segments() {
			if got := geom.FromCurve(seg.End()); got != points[i] {
				t.Errorf("tension=%v: segment %d ends at %v, want %v", tension, i-1, got, points[i])
			}
			i++
		}
		if i != len(points) {
			t.Errorf("tension=%v: %d segments, want %d", tension, i-1, len(points)-1)
		}
	}
}

func TestFormatMatchesCurveSVG(t *testing.T) {
	var p curve.BezPath
	p.MoveTo(curve.Pt(1.5, 2))
	p.CubicTo(curve.Pt(3, 4), curve.Pt(5, 6), curve.Pt(7.25, 8))
	if got := Format(p); !strings.HasPrefix(got, "M1.5,2 C") {
		t.Errorf("Format() = %q", got)
	}
}
