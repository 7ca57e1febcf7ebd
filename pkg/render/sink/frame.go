package sink

import (
	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/flow"
	"github.com/matzehuels/flowlines/pkg/scheduler"
)

// Frame is the renderer's view of one snapshot.
type Frame struct {
	Seq      uint64
	Geometry flow.Geometry
	Err      error
}

// FromSnapshot copies the fields a sink needs out of s. A nil snapshot
// yields an empty frame.
func FromSnapshot(s *scheduler.Snapshot) Frame {
	if s == nil {
		return Frame{}
	}
	return Frame{Seq: s.Seq, Geometry: s.Geometry(), Err: s.Err}
}

// note returns the text of the error note, or "" for a settled frame.
func (f Frame) note() string {
	if f.Err == nil {
		return ""
	}
	if names := errors.MissingNames(f.Err); len(names) > 0 {
		if len(names) == 1 {
			return "missing anchor: " + names[0]
		}
		msg := "missing anchors: " + names[0]
		for _, n := range names[1:] {
			msg += ", " + n
		}
		return msg
	}
	return errors.UserMessage(f.Err)
}
