// Package scheduler keeps flow geometry in sync with a changing layout.
//
// A Scheduler listens for layout changes on its host, coalesces every burst
// of triggers into at most one computation per display frame and publishes
// each result as an immutable [Snapshot]. The state machine is
//
//	Idle → Scheduled → Computing → (Settled | Failed) → Idle
//
// A trigger while Scheduled is folded into the pending frame. A trigger
// while Computing schedules one more frame once the running pass ends, so
// the final layout of a burst is always measured.
//
// Missing anchors and degenerate routes publish a failed snapshot that keeps
// the last settled geometry. A detached container abandons the pass without
// publishing. Close stops everything; a pass already running when Close is
// called never publishes.
package scheduler

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlines/pkg/anchor"
	"github.com/matzehuels/flowlines/pkg/arclen"
	"github.com/matzehuels/flowlines/pkg/config"
	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/flow"
	"github.com/matzehuels/flowlines/pkg/observability"
)

// State is the scheduler's position in its state machine.
type State int

const (
	Idle State = iota
	Scheduled
	Computing
	Settled
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Computing:
		return "computing"
	case Settled:
		return "settled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Trigger sources.
const (
	SourceMount  = "mount"
	SourceLayout = "layout"
	SourceScroll = "scroll"
	SourceManual = "manual"
)

// Stats counts scheduler activity since creation.
type Stats struct {
	Triggers     uint64 `json:"triggers"`     // every Trigger call accepted before Close
	Coalesced    uint64 `json:"coalesced"`    // triggers folded into an already pending frame
	Reruns       uint64 `json:"reruns"`       // frames scheduled because a trigger arrived mid-pass
	Computations uint64 `json:"computations"` // passes run
	Publishes    uint64 `json:"publishes"`    // snapshots published
	Failures     uint64 `json:"failures"`     // failed snapshots among Publishes
	Abandoned    uint64 `json:"abandoned"`    // passes dropped without publishing
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the frame clock. The default is a TickerClock at the
// configured frame interval, stopped by Close.
func WithClock(c FrameClock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithConfig sets the configuration source, read once at the start of every
// pass.
func WithConfig(p config.Provider) Option {
	return func(s *Scheduler) { s.config = p }
}

// WithRealizer sets the path realizer used for sampling.
func WithRealizer(r arclen.Realizer) Option {
	return func(s *Scheduler) { s.realizer = r }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithHooks sets the instrumentation hooks. The default is the globally
// registered observability.Scheduler().
func WithHooks(h observability.SchedulerHooks) Option {
	return func(s *Scheduler) { s.hooks = h }
}

// Scheduler recomputes flow geometry for one host.
type Scheduler struct {
	host      anchor.Host
	clock     FrameClock
	ownsClock *TickerClock
	config    config.Provider
	realizer  arclen.Realizer
	logger    *log.Logger
	hooks     observability.SchedulerHooks

	snap atomic.Pointer[Snapshot]

	mu          sync.Mutex
	ctx         context.Context
	state       State
	rerun       bool
	started     bool
	closed      bool
	cancelFrame func()
	removers    []func()
	stopCtx     func() bool
	seq         uint64
	lastGood    flow.Geometry
	stats       Stats
	nextSub     int
	subs        map[int]func(*Snapshot)
}

// New returns an idle scheduler for host. Nothing is computed until Start or
// Trigger is called.
func New(host anchor.Host, opts ...Option) *Scheduler {
	s := &Scheduler{
		host: host,
		ctx:  context.Background(),
		subs: make(map[int]func(*Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.Static(nil)
	}
	if s.realizer == nil {
		s.realizer = arclen.Default
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.hooks == nil {
		s.hooks = observability.Scheduler()
	}
	if s.clock == nil {
		tc := NewTickerClock(s.config.Current().Frame.Interval.Duration)
		s.clock = tc
		s.ownsClock = tc
	}
	return s
}

// Start registers layout-change and scroll listeners when the host supports
// them and fires the mount trigger. The scheduler closes itself when ctx is
// done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeInvalidInput, "scheduler is closed")
	}
	if s.started {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeInvalidInput, "scheduler already started")
	}
	s.started = true
	s.ctx = ctx
	if n, ok := s.host.(anchor.Notifier); ok {
		s.removers = append(s.removers,
			n.OnLayoutChange(func() { s.Trigger(SourceLayout) }),
			n.OnScroll(func() { s.Trigger(SourceScroll) }),
		)
	}
	s.stopCtx = context.AfterFunc(ctx, s.Close)
	s.mu.Unlock()

	s.Trigger(SourceMount)
	return nil
}

// Trigger requests a recompute on the next frame.
func (s *Scheduler) Trigger(source string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stats.Triggers++
	coalesced := false
	switch s.state {
	case Scheduled:
		s.stats.Coalesced++
		coalesced = true
	case Computing:
		if s.rerun {
			s.stats.Coalesced++
			coalesced = true
		}
		s.rerun = true
	default:
		s.state = Scheduled
		s.cancelFrame = s.clock.RequestFrame(s.runFrame)
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Debug("trigger", "source", source, "coalesced", coalesced)
	s.hooks.OnTrigger(ctx, source, coalesced)
}

// Snapshot returns the latest published snapshot, or nil before the first
// publication.
func (s *Scheduler) Snapshot() *Snapshot { return s.snap.Load() }

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a copy of the activity counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Subscribe registers fn to receive every snapshot published from now on.
// fn runs on the frame clock's goroutine and must not block. The returned
// function removes the subscription.
func (s *Scheduler) Subscribe(fn func(*Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close cancels the pending frame, removes every host listener and
// subscriber and makes further triggers no-ops. It is idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancelFrame
	s.cancelFrame = nil
	removers := s.removers
	s.removers = nil
	stopCtx := s.stopCtx
	s.subs = nil
	if s.state == Scheduled {
		s.state = Idle
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, remove := range removers {
		remove()
	}
	if stopCtx != nil {
		stopCtx()
	}
	if s.ownsClock != nil {
		s.ownsClock.Stop()
	}
	s.logger.Debug("scheduler closed")
}

func (s *Scheduler) runFrame() {
	s.mu.Lock()
	if s.closed || s.state != Scheduled {
		s.mu.Unlock()
		return
	}
	s.state = Computing
	s.cancelFrame = nil
	s.rerun = false
	s.stats.Computations++
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	g, err := s.compute(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	if s.closed {
		s.state = Idle
		s.stats.Abandoned++
		s.mu.Unlock()
		s.logger.Debug("pass finished after close, dropped")
		return
	}

	var (
		snap    *Snapshot
		outcome string
	)
	switch {
	case errors.Is(err, errors.ErrCodeHostDetached) || ctx.Err() != nil:
		outcome = "abandoned"
		s.stats.Abandoned++
	case err != nil:
		s.state = Failed
		outcome = Failed.String()
		s.seq++
		s.stats.Failures++
		snap = newSnapshot(s.seq, s.lastGood, err, time.Now())
	default:
		s.state = Settled
		outcome = Settled.String()
		s.seq++
		s.lastGood = g
		snap = newSnapshot(s.seq, g, nil, time.Now())
	}

	var subs []func(*Snapshot)
	if snap != nil {
		s.snap.Store(snap)
		s.stats.Publishes++
		subs = slices.Collect(maps.Values(s.subs))
	}

	s.state = Idle
	if s.rerun {
		s.rerun = false
		s.stats.Reruns++
		s.state = Scheduled
		s.cancelFrame = s.clock.RequestFrame(s.runFrame)
	}
	s.mu.Unlock()

	s.hooks.OnCompute(ctx, outcome, elapsed, err)
	switch {
	case snap == nil:
		s.logger.Debug("pass abandoned", "err", err)
	case snap.Failed():
		s.logger.Warn("geometry pass failed", "seq", snap.Seq, "err", err)
	default:
		s.logger.Debug("geometry settled", "seq", snap.Seq, "duration", elapsed)
	}
	if snap == nil {
		return
	}
	s.hooks.OnPublish(ctx, snap.Seq, snap.Failed())
	for _, fn := range subs {
		if s.isClosed() {
			return
		}
		fn(snap)
	}
}

func (s *Scheduler) compute(ctx context.Context) (g flow.Geometry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeInternal, "geometry pass panicked: %v", r)
		}
	}()

	cfg := s.config.Current()
	loc, err := anchor.Locate(ctx, s.host, flow.RequiredAnchors(cfg))
	if err != nil {
		return flow.Geometry{}, err
	}
	return flow.Compute(loc.Anchors, loc.Dimensions, cfg, s.realizer)
}

func (s *Scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
