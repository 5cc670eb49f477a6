// Package gesture tracks a pull-to-refresh drag and decides whether the
// release should trigger a refresh.
package gesture

import "sync"

// DefaultThreshold is the pull distance, in pixels, needed to commit.
const DefaultThreshold = 80.0

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePulling
	PhaseArmed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePulling:
		return "pulling"
	case PhaseArmed:
		return "armed"
	default:
		return "unknown"
	}
}

// PullTracker is a touch-delta state machine. Start records the touch-down
// Y, Move updates the downward distance, End reports whether the release
// passed the threshold and always resets the distance.
type PullTracker struct {
	threshold float64

	mu       sync.Mutex
	startY   float64
	distance float64
	phase    Phase
}

func NewPullTracker(threshold float64) *PullTracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &PullTracker{threshold: threshold}
}

func (t *PullTracker) Threshold() float64 {
	return t.threshold
}

// Start begins tracking at touch-down position y. atTop must be true: a
// pull only counts when the list is scrolled to the top.
func (t *PullTracker) Start(y float64, atTop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !atTop {
		t.resetLocked()
		return
	}
	t.startY = y
	t.distance = 0
	t.phase = PhasePulling
}

// Move records the current touch position and returns the pull distance.
// Upward movement clamps to zero.
func (t *PullTracker) Move(y float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase == PhaseIdle {
		return 0
	}
	d := y - t.startY
	if d < 0 {
		d = 0
	}
	t.distance = d
	if d >= t.threshold {
		t.phase = PhaseArmed
	} else {
		t.phase = PhasePulling
	}
	return d
}

// End finishes the gesture. It returns true when the release happened past
// the threshold.
func (t *PullTracker) End() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	commit := t.phase == PhaseArmed
	t.resetLocked()
	return commit
}

func (t *PullTracker) Distance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.distance
}

func (t *PullTracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

func (t *PullTracker) resetLocked() {
	t.startY = 0
	t.distance = 0
	t.phase = PhaseIdle
}
