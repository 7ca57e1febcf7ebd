package scheduler

import (
	"context"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlines/pkg/anchor"
	"github.com/matzehuels/flowlines/pkg/config"
	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
	"github.com/matzehuels/flowlines/pkg/spline"
)

var quiet = log.New(io.Discard)

// box returns a 20x20 page-space rect centered on (x, y) inside a container
// whose origin is (100, 50).
func box(x, y float64) geom.Rect {
	return geom.Rect{X: 100 + x - 10, Y: 50 + y - 10, Width: 20, Height: 20}
}

func newHost() *anchor.StaticHost {
	h := anchor.NewStaticHost(geom.Rect{X: 100, Y: 50, Width: 800, Height: 400})
	h.SetElement(config.AnchorLeftSource, box(80, 60))
	h.SetElement(config.AnchorLeftMid, box(200, 160))
	h.SetElement(config.AnchorRightSource, box(720, 60))
	h.SetElement(config.AnchorRightMid, box(600, 160))
	h.SetElement(config.AnchorHub, box(400, 220))
	h.SetElement(config.AnchorSink, box(400, 360))
	return h
}

func newScheduler(host anchor.Host, clock FrameClock) *Scheduler {
	return New(host, WithClock(clock), WithLogger(quiet))
}

func TestMountComputesOnNextFrame(t *testing.T) {
	clock := NewManualClock()
	s := newScheduler(newHost(), clock)
	defer s.Close()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.Snapshot() != nil {
		t.Fatal("snapshot published before the first frame")
	}
	if got := s.State(); got != Scheduled {
		t.Errorf("State() = %v, want %v", got, Scheduled)
	}

	clock.Advance()

	snap := s.Snapshot()
	if snap == nil {
		t.Fatal("Snapshot() = nil after first frame")
	}
	if snap.Err != nil {
		t.Fatalf("snapshot error = %v", snap.Err)
	}
	if snap.Seq != 1 {
		t.Errorf("Seq = %d, want 1", snap.Seq)
	}
	if snap.Dimensions != (geom.Dimensions{Width: 800, Height: 400}) {
		t.Errorf("Dimensions = %v, want 800x400", snap.Dimensions)
	}
	if len(snap.SampledPoints.Spine) != config.DefaultMarkersPerBranch {
		t.Errorf("spine samples = %d, want %d", len(snap.SampledPoints.Spine), config.DefaultMarkersPerBranch)
	}
	if got := s.State(); got != Idle {
		t.Errorf("State() = %v, want %v", got, Idle)
	}
}

func TestTriggersCoalescePerFrame(t *testing.T) {
	clock := NewManualClock()
	s := newScheduler(newHost(), clock)
	defer s.Close()

	for i := 0; i < 50; i++ {
		s.Trigger(SourceLayout)
	}
	if got := clock.Pending(); got != 1 {
		t.Fatalf("pending frames = %d, want 1", got)
	}
	clock.Advance()

	st := s.Stats()
	if st.Computations != 1 {
		t.Errorf("Computations = %d, want 1", st.Computations)
	}
	if st.Coalesced != 49 {
		t.Errorf("Coalesced = %d, want 49", st.Coalesced)
	}
	if st.Publishes != 1 {
		t.Errorf("Publishes = %d, want 1", st.Publishes)
	}
	if clock.Pending() != 0 {
		t.Errorf("pending frames after advance = %d, want 0", clock.Pending())
	}
}

func TestLayoutChangesTriggerRecompute(t *testing.T) {
	clock := NewManualClock()
	host := newHost()
	s := newScheduler(host, clock)
	defer s.Close()

	_ = s.Start(context.Background())
	clock.Advance()
	first := s.Snapshot()

	host.SetElement(config.AnchorSink, box(400, 380))
	host.Scroll(0, -120)
	clock.Advance()

	second := s.Snapshot()
	if second.Seq != first.Seq+1 {
		t.Fatalf("Seq = %d, want %d", second.Seq, first.Seq+1)
	}
	if second.SpinePath == first.SpinePath {
		t.Error("spine path unchanged after moving the sink")
	}
	if want := "M400,220 L400,380"; second.SpinePath != want {
		t.Errorf("SpinePath = %q, want %q", second.SpinePath, want)
	}
}

// Removing B from {A, B, C} reports [B] and keeps the previous geometry.
func TestMissingAnchorKeepsPriorGeometry(t *testing.T) {
	clock := NewManualClock()
	host := newHost()
	s := newScheduler(host, clock)
	defer s.Close()

	_ = s.Start(context.Background())
	clock.Advance()
	good := s.Snapshot()

	host.RemoveElement(config.AnchorLeftMid)
	clock.Advance()

	failed := s.Snapshot()
	if !errors.Is(failed.Err, errors.ErrCodeMissingAnchor) {
		t.Fatalf("Err = %v, want %v", failed.Err, errors.ErrCodeMissingAnchor)
	}
	if got, want := failed.MissingAnchors(), []string{config.AnchorLeftMid}; !slices.Equal(got, want) {
		t.Errorf("MissingAnchors() = %v, want %v", got, want)
	}
	if failed.Seq != good.Seq+1 {
		t.Errorf("Seq = %d, want %d", failed.Seq, good.Seq+1)
	}
	if failed.LeftPath != good.LeftPath || failed.SpinePath != good.SpinePath {
		t.Error("failed snapshot did not keep the prior paths")
	}
	if len(failed.SampledPoints.Left) != len(good.SampledPoints.Left) {
		t.Error("failed snapshot did not keep the prior samples")
	}

	host.SetElement(config.AnchorLeftMid, box(200, 160))
	clock.Advance()
	if snap := s.Snapshot(); snap.Err != nil {
		t.Errorf("Err after restoring anchor = %v", snap.Err)
	}
}

func TestFirstFailureHasZeroGeometry(t *testing.T) {
	clock := NewManualClock()
	host := anchor.NewStaticHost(geom.Rect{Width: 800, Height: 400})
	s := newScheduler(host, clock)
	defer s.Close()

	s.Trigger(SourceManual)
	clock.Advance()

	snap := s.Snapshot()
	if snap == nil || snap.Err == nil {
		t.Fatalf("Snapshot() = %+v, want a failed snapshot", snap)
	}
	if !snap.Geometry().IsZero() {
		t.Error("first failed snapshot carries geometry")
	}
	if got := len(snap.MissingAnchors()); got != 6 {
		t.Errorf("missing %d anchors, want 6", got)
	}
}

func TestDegenerateRouteFails(t *testing.T) {
	clock := NewManualClock()
	cfg := config.Default()
	cfg.Routes.Spine.Anchors = []string{config.AnchorHub}
	s := New(newHost(), WithClock(clock), WithLogger(quiet), WithConfig(config.Static(cfg)))
	defer s.Close()

	s.Trigger(SourceManual)
	clock.Advance()

	if snap := s.Snapshot(); !errors.Is(snap.Err, errors.ErrCodeDegenerateGeometry) {
		t.Errorf("Err = %v, want %v", snap.Err, errors.ErrCodeDegenerateGeometry)
	}
}

func TestHostDetachedDoesNotPublish(t *testing.T) {
	clock := NewManualClock()
	host := newHost()
	s := newScheduler(host, clock)
	defer s.Close()

	_ = s.Start(context.Background())
	clock.Advance()
	before := s.Snapshot()

	host.Detach()
	clock.Advance()

	if s.Snapshot() != before {
		t.Error("detached host published a snapshot")
	}
	if st := s.Stats(); st.Abandoned != 1 {
		t.Errorf("Abandoned = %d, want 1", st.Abandoned)
	}

	// Re-attaching is just another trigger.
	host.Attach()
	clock.Advance()
	if got := s.Snapshot(); got.Seq != before.Seq+1 || got.Err != nil {
		t.Errorf("after Attach: Seq = %d, Err = %v", got.Seq, got.Err)
	}
}

func TestCloseCancelsPendingFrame(t *testing.T) {
	clock := NewManualClock()
	host := newHost()
	s := newScheduler(host, clock)

	_ = s.Start(context.Background())
	s.Close()
	s.Close()

	if clock.Pending() != 0 {
		t.Errorf("pending frames after Close = %d, want 0", clock.Pending())
	}
	if host.Listeners() != 0 {
		t.Errorf("host listeners after Close = %d, want 0", host.Listeners())
	}
	clock.Advance()
	if s.Snapshot() != nil {
		t.Error("snapshot published after Close")
	}

	s.Trigger(SourceManual)
	if clock.Pending() != 0 {
		t.Error("Trigger after Close requested a frame")
	}
}

// gateHost blocks Measure until released so a pass can be caught in flight.
type gateHost struct {
	*anchor.StaticHost
	entered chan struct{}
	release chan struct{}
}

func (h *gateHost) Measure(ctx context.Context, names []string) (anchor.Measurement, error) {
	close(h.entered)
	<-h.release
	return h.StaticHost.Measure(ctx, names)
}

func TestCloseDuringComputationDropsResult(t *testing.T) {
	clock := NewManualClock()
	host := &gateHost{StaticHost: newHost(), entered: make(chan struct{}), release: make(chan struct{})}
	s := newScheduler(host, clock)

	published := 0
	s.Subscribe(func(*Snapshot) { published++ })
	s.Trigger(SourceManual)

	done := make(chan struct{})
	go func() {
		clock.Advance()
		close(done)
	}()

	<-host.entered
	s.Close()
	close(host.release)
	<-done

	if s.Snapshot() != nil {
		t.Error("in-flight pass published after Close")
	}
	if published != 0 {
		t.Errorf("subscribers notified %d times after Close", published)
	}
	if st := s.Stats(); st.Abandoned != 1 {
		t.Errorf("Abandoned = %d, want 1", st.Abandoned)
	}
}

func TestTriggerDuringComputationReruns(t *testing.T) {
	clock := NewManualClock()
	host := &gateHost{StaticHost: newHost(), entered: make(chan struct{}), release: make(chan struct{})}
	s := newScheduler(host, clock)
	defer s.Close()

	s.Trigger(SourceManual)
	done := make(chan struct{})
	go func() {
		clock.Advance()
		close(done)
	}()

	<-host.entered
	if got := s.State(); got != Computing {
		t.Errorf("State() = %v, want %v", got, Computing)
	}
	s.Trigger(SourceLayout)
	s.Trigger(SourceLayout)
	close(host.release)
	<-done

	st := s.Stats()
	if st.Reruns != 1 {
		t.Errorf("Reruns = %d, want 1", st.Reruns)
	}
	if st.Coalesced != 1 {
		t.Errorf("Coalesced = %d, want 1", st.Coalesced)
	}
	if clock.Pending() != 1 {
		t.Errorf("pending frames = %d, want 1", clock.Pending())
	}
}

type panicHost struct{}

func (panicHost) Measure(context.Context, []string) (anchor.Measurement, error) {
	panic("layout engine exploded")
}

func TestPanicBecomesFailedSnapshot(t *testing.T) {
	clock := NewManualClock()
	s := newScheduler(panicHost{}, clock)
	defer s.Close()

	s.Trigger(SourceManual)
	clock.Advance()

	snap := s.Snapshot()
	if snap == nil || !errors.Is(snap.Err, errors.ErrCodeInternal) {
		t.Fatalf("Snapshot() = %+v, want an internal error", snap)
	}
	if got := s.State(); got != Idle {
		t.Errorf("State() = %v, want %v", got, Idle)
	}
}

func TestSubscribe(t *testing.T) {
	clock := NewManualClock()
	s := newScheduler(newHost(), clock)
	defer s.Close()

	var seqs []uint64
	cancel := s.Subscribe(func(snap *Snapshot) { seqs = append(seqs, snap.Seq) })

	s.Trigger(SourceManual)
	clock.Advance()
	s.Trigger(SourceManual)
	clock.Advance()
	cancel()
	s.Trigger(SourceManual)
	clock.Advance()

	if want := []uint64{1, 2}; !slices.Equal(seqs, want) {
		t.Errorf("observed seqs = %v, want %v", seqs, want)
	}
}

func TestStartTwice(t *testing.T) {
	s := newScheduler(newHost(), NewManualClock())
	defer s.Close()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil")
	}
}

func TestContextCancelCloses(t *testing.T) {
	clock := NewManualClock()
	host := newHost()
	s := newScheduler(host, clock)

	ctx, cancel := context.WithCancel(context.Background())
	_ = s.Start(ctx)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for host.Listeners() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not close after context cancel")
		}
		time.Sleep(time.Millisecond)
	}
}

// Concurrent readers must only ever observe complete snapshots: the paths
// of every snapshot are the spline of its own routes.
func TestSnapshotsAreAtomic(t *testing.T) {
	clock := NewManualClock()
	host := newHost()
	cfg := config.Default()
	s := New(host, WithClock(clock), WithLogger(quiet), WithConfig(config.Static(cfg)))
	defer s.Close()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 4)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				if snap == nil || snap.Err != nil {
					continue
				}
				want, err := spline.Build(snap.Routes.Spine, cfg.Tension)
				if err != nil || want != snap.SpinePath {
					select {
					case errs <- snap.SpinePath:
					default:
					}
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		host.SetElement(config.AnchorSink, box(400, float64(250+i%150)))
		clock.Advance()
	}
	close(stop)
	wg.Wait()
	close(errs)

	for p := range errs {
		t.Errorf("reader observed inconsistent snapshot with spine %q", p)
	}
	final := s.Snapshot()
	if final == nil {
		t.Fatal("no snapshot published")
	}
	if final.Seq != 200 {
		t.Errorf("final Seq = %d, want 200", final.Seq)
	}
}

func TestTickerClock(t *testing.T) {
	c := NewTickerClock(time.Millisecond)
	defer c.Stop()

	ran := make(chan struct{})
	c.RequestFrame(func() { close(ran) })
	cancelled := c.RequestFrame(func() { t.Error("cancelled callback ran") })
	cancelled()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("frame callback did not run")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Idle, "idle"},
		{Scheduled, "scheduled"},
		{Computing, "computing"},
		{Settled, "settled"},
		{Failed, "failed"},
		{State(42), "State(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}
