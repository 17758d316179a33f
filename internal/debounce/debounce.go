// Package debounce collapses bursts of calls into a single deferred call.
package debounce

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is how long a trigger must be followed by silence before
// the handler fires.
const DefaultQuietPeriod = 5 * time.Second

// Debouncer defers calls to fn until no Schedule has happened for the quiet
// period, then calls fn once with the most recent argument. There is no upper
// bound on how long a continuous burst can postpone the call.
type Debouncer[T any] struct {
	quiet time.Duration
	fn    func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending T
	gen     uint64
	armed   bool
}

// New returns a Debouncer that calls fn after quiet of inactivity.
// A non-positive quiet uses DefaultQuietPeriod.
func New[T any](quiet time.Duration, fn func(T)) *Debouncer[T] {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer[T]{quiet: quiet, fn: fn}
}

// Schedule records arg as the latest pending call and restarts the quiet
// period, replacing any previously scheduled call.
func (d *Debouncer[T]) Schedule(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	d.pending = arg
	d.armed = true

	gen := d.gen
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen) })
}

// Stop cancels a pending call. It reports whether one was pending.
func (d *Debouncer[T]) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// bump the generation so a timer that already fired but has not taken
	// the lock yet sees itself as stale
	d.gen++
	was := d.armed
	d.armed = false
	var zero T
	d.pending = zero
	return was
}

// Pending reports whether a call is scheduled and has not fired yet.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.armed {
		d.mu.Unlock()
		return
	}
	arg := d.pending
	var zero T
	d.pending = zero
	d.armed = false
	d.timer = nil
	d.mu.Unlock()

	// call outside the lock so fn may Schedule again
	d.fn(arg)
}
