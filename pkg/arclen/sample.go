package arclen

import (
	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
)

// Sample returns count points evenly spaced by arc length along path.
//
// For count > 1 the k-th point sits at k·L/(count-1), so the first and last
// samples are the path's end points. A single sample is the midpoint. A
// zero-length path yields count copies of its start point.
func Sample(path Path, count int) ([]geom.Point, error) {
	if count < 1 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "sample count must be >= 1, got %d", count)
	}

	total := path.Length()
	out := make([]geom.Point, count)
	if total <= 0 {
		p := path.PointAt(0)
		for i := range out {
			out[i] = p
		}
		return out, nil
	}
	if count == 1 {
		out[0] = path.PointAt(total / 2)
		return out, nil
	}

	step := total / float64(count-1)
	for k := range out {
		out[k] = path.PointAt(float64(k) * step)
	}
	// Pin the end exactly rather than trusting the float product.
	out[count-1] = path.PointAt(total)
	return out, nil
}
