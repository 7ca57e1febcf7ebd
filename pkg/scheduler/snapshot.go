package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/flow"
	"github.com/matzehuels/flowlines/pkg/geom"
)

// Snapshot is one published result of the scheduler. It is never modified
// after publication; readers may keep and share it freely.
//
// A snapshot with a non-nil Err carries the geometry of the last settled
// snapshot, or zero geometry if none settled yet.
type Snapshot struct {
	Seq           uint64
	ID            uuid.UUID
	Dimensions    geom.Dimensions
	LeftPath      string
	RightPath     string
	SpinePath     string
	Routes        flow.Points
	SampledPoints flow.Samples
	Err           error
	ComputedAt    time.Time
}

func newSnapshot(seq uint64, g flow.Geometry, err error, at time.Time) *Snapshot {
	return &Snapshot{
		Seq:           seq,
		ID:            uuid.New(),
		Dimensions:    g.Dimensions,
		LeftPath:      g.LeftPath,
		RightPath:     g.RightPath,
		SpinePath:     g.SpinePath,
		Routes:        g.Routes,
		SampledPoints: g.Samples,
		Err:           err,
		ComputedAt:    at,
	}
}

// Geometry returns the snapshot's geometry.
func (s *Snapshot) Geometry() flow.Geometry {
	return flow.Geometry{
		Dimensions: s.Dimensions,
		LeftPath:   s.LeftPath,
		RightPath:  s.RightPath,
		SpinePath:  s.SpinePath,
		Routes:     s.Routes,
		Samples:    s.SampledPoints,
	}
}

// Failed reports whether the pass that produced s failed.
func (s *Snapshot) Failed() bool { return s.Err != nil }

// MissingAnchors returns the anchors whose absence failed the pass.
func (s *Snapshot) MissingAnchors() []string { return errors.MissingNames(s.Err) }
