// Package debounce delays an action until input has been quiet for a fixed
// window. Every Trigger restarts the window; Cancel or context cancellation
// drops the pending action.
package debounce

import (
	"context"
	"sync"
	"time"
)

// DefaultDelay is the search-as-you-type window.
const DefaultDelay = 300 * time.Millisecond

type State int

const (
	StateIdle State = iota
	StatePending
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Debouncer runs the most recently triggered action once the delay elapses
// without another Trigger. Safe for concurrent use.
type Debouncer struct {
	delay time.Duration
	after func(time.Duration, func()) *time.Timer

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	state State
	stop  context.CancelFunc
}

// New returns a Debouncer; a non-positive delay uses DefaultDelay.
func New(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay, after: time.AfterFunc}
}

// Delay returns the configured window.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger schedules fn, replacing any pending action. If ctx is cancelled
// before the window elapses the action is dropped.
func (d *Debouncer) Trigger(ctx context.Context, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resetLocked()
	d.gen++
	gen := d.gen
	d.state = StatePending

	watchCtx, stop := context.WithCancel(ctx)
	d.stop = stop

	d.timer = d.after(d.delay, func() {
		d.mu.Lock()
		if gen != d.gen || d.state != StatePending {
			d.mu.Unlock()
			return
		}
		d.state = StateCommitted
		d.timer = nil
		d.stop = nil
		d.mu.Unlock()

		stop()
		fn()
	})

	go func() {
		<-watchCtx.Done()
		if ctx.Err() == nil {
			return
		}
		d.mu.Lock()
		if gen == d.gen && d.state == StatePending {
			d.resetLocked()
			d.state = StateIdle
		}
		d.mu.Unlock()
	}()
}

// Cancel drops the pending action, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StatePending {
		d.resetLocked()
		d.state = StateIdle
	}
}

// State reports where the debouncer is in its cycle.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Debouncer) resetLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
	d.gen++
}
