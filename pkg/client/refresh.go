package client

import (
	"context"
	"sync"

	"github.com/HammerMeetNail/campussafe/internal/gesture"
)

// Refresher ties a pull gesture to a fetch and caches the last good data.
// A failed fetch returns its error and leaves the cache untouched.
type Refresher[T any] struct {
	tracker *gesture.PullTracker
	fetch   func(ctx context.Context) (T, error)

	mu         sync.Mutex
	data       T
	loaded     bool
	refreshing bool
}

// NewRefresher uses gesture.DefaultThreshold when threshold is not
// positive.
func NewRefresher[T any](threshold float64, fetch func(ctx context.Context) (T, error)) *Refresher[T] {
	return &Refresher[T]{
		tracker: gesture.NewPullTracker(threshold),
		fetch:   fetch,
	}
}

func (r *Refresher[T]) TouchStart(y float64, atTop bool) {
	r.tracker.Start(y, atTop)
}

// TouchMove returns the current pull distance for the indicator.
func (r *Refresher[T]) TouchMove(y float64) float64 {
	return r.tracker.Move(y)
}

// TouchEnd finishes the gesture and refreshes when it was released past
// the threshold. It reports whether a fetch ran.
func (r *Refresher[T]) TouchEnd(ctx context.Context) (bool, error) {
	if !r.tracker.End() {
		return false, nil
	}
	return r.Refresh(ctx)
}

// Refresh fetches unless a fetch is already running.
func (r *Refresher[T]) Refresh(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if r.refreshing {
		r.mu.Unlock()
		return false, nil
	}
	r.refreshing = true
	r.mu.Unlock()

	data, err := r.fetch(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshing = false
	if err != nil {
		return true, err
	}
	r.data = data
	r.loaded = true
	return true, nil
}

// Data returns the cached value and whether any fetch has succeeded.
func (r *Refresher[T]) Data() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data, r.loaded
}

func (r *Refresher[T]) Distance() float64 {
	return r.tracker.Distance()
}
