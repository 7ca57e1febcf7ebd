package scheduler

import (
	"slices"
	"sync"
	"time"
)

// FrameClock runs callbacks on the next display frame.
//
// RequestFrame must never invoke fn synchronously. Callbacks registered for
// the same frame run one after another, in registration order, never
// concurrently. The returned cancel function is safe to call at any time,
// including after the callback ran.
type FrameClock interface {
	RequestFrame(fn func()) (cancel func())
}

type frameCallback struct {
	id uint64
	fn func()
}

// frameQueue is the pending-callback bookkeeping shared by both clocks.
type frameQueue struct {
	mu      sync.Mutex
	next    uint64
	pending []frameCallback
}

func (q *frameQueue) add(fn func()) func() {
	q.mu.Lock()
	id := q.next
	q.next++
	q.pending = append(q.pending, frameCallback{id: id, fn: fn})
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.pending = slices.DeleteFunc(q.pending, func(cb frameCallback) bool { return cb.id == id })
	}
}

func (q *frameQueue) drain() []frameCallback {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

func (q *frameQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// TickerClock fires frames at a fixed interval on a single goroutine.
type TickerClock struct {
	interval time.Duration
	queue    frameQueue

	start sync.Once
	stop  sync.Once
	done  chan struct{}
}

// NewTickerClock returns a clock ticking every interval. Non-positive
// intervals fall back to 60 Hz. The ticking goroutine starts with the first
// request and ends with Stop.
func NewTickerClock(interval time.Duration) *TickerClock {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &TickerClock{interval: interval, done: make(chan struct{})}
}

// RequestFrame implements FrameClock.
func (c *TickerClock) RequestFrame(fn func()) func() {
	c.start.Do(func() { go c.loop() })
	return c.queue.add(fn)
}

// Stop ends the ticking goroutine. Pending callbacks never run.
func (c *TickerClock) Stop() {
	c.stop.Do(func() { close(c.done) })
}

func (c *TickerClock) loop() {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			for _, cb := range c.queue.drain() {
				select {
				case <-c.done:
					return
				default:
				}
				cb.fn()
			}
		}
	}
}

// ManualClock only fires frames when Advance is called. It makes frame
// timing deterministic in tests and offline rendering.
type ManualClock struct {
	queue  frameQueue
	frames int
}

// NewManualClock returns a clock with no pending frames.
func NewManualClock() *ManualClock { return &ManualClock{} }

// RequestFrame implements FrameClock.
func (c *ManualClock) RequestFrame(fn func()) func() { return c.queue.add(fn) }

// Advance fires one frame, running every callback that was pending when it
// was called. Callbacks requested during the frame wait for the next one.
// It returns the number of callbacks run.
func (c *ManualClock) Advance() int {
	cbs := c.queue.drain()
	c.queue.mu.Lock()
	c.frames++
	c.queue.mu.Unlock()
	for _, cb := range cbs {
		cb.fn()
	}
	return len(cbs)
}

// Pending returns the number of callbacks waiting for the next frame.
func (c *ManualClock) Pending() int { return c.queue.len() }

// Frames returns the number of frames fired so far.
func (c *ManualClock) Frames() int {
	c.queue.mu.Lock()
	defer c.queue.mu.Unlock()
	return c.frames
}
