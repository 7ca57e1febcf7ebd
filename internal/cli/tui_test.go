package cli

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/flow"
	"github.com/matzehuels/flowlines/pkg/geom"
	"github.com/matzehuels/flowlines/pkg/scheduler"
)

type fakeStatus struct {
	state scheduler.State
	stats scheduler.Stats
}

func (f fakeStatus) State() scheduler.State { return f.state }
func (f fakeStatus) Stats() scheduler.Stats { return f.stats }

func testSnapshot(at time.Time, err error) *scheduler.Snapshot {
	pts := []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}
	return &scheduler.Snapshot{
		Seq:           3,
		Dimensions:    geom.Dimensions{Width: 800, Height: 400},
		Routes:        flow.Points{Left: pts, Right: pts, Spine: pts},
		SampledPoints: flow.Points{Spine: pts[:1]},
		Err:           err,
		ComputedAt:    at,
	}
}

func TestWatchModelUpdate(t *testing.T) {
	src := fakeStatus{state: scheduler.Computing, stats: scheduler.Stats{Computations: 4}}
	m := newWatchModel("http://localhost", "out.svg", src)

	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(WatchModel)
	if m.state != scheduler.Computing || m.stats.Computations != 4 {
		t.Errorf("tick did not refresh status: %v %+v", m.state, m.stats)
	}
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}

	next, _ = m.Update(snapshotMsg{snap: testSnapshot(time.Now(), nil)})
	m = next.(WatchModel)
	if m.writes != 1 || m.snap == nil {
		t.Errorf("writes = %d, snap = %v", m.writes, m.snap)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
}

func TestWatchModelView(t *testing.T) {
	now := time.Now()
	m := newWatchModel("http://localhost", "out.svg", fakeStatus{})
	m.now = func() time.Time { return now }

	if v := m.View(); !strings.Contains(v, "waiting for the first snapshot") {
		t.Errorf("initial view = %q", v)
	}

	next, _ := m.Update(snapshotMsg{snap: testSnapshot(now.Add(-5*time.Second), nil)})
	v := next.(WatchModel).View()
	for _, want := range []string{"#3", "5s ago", "left", "right", "spine", "800 × 400"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}

	failed := testSnapshot(now, errors.MissingAnchors([]string{"hub"}))
	next, _ = m.Update(snapshotMsg{snap: failed})
	if v := next.(WatchModel).View(); !strings.Contains(v, "missing anchor: hub") {
		t.Error("failed snapshot should show its error")
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{200 * time.Millisecond, "just now"},
		{42 * time.Second, "42s ago"},
		{3 * time.Minute, "3m ago"},
		{2 * time.Hour, "2h ago"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.d); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
