// Package guard provides a non-blocking exclusion flag: callers that find it
// held give up instead of waiting.
package guard

import "sync/atomic"

// Flag is a single-holder busy flag. The zero value is released.
type Flag struct {
	busy atomic.Bool
}

// TryAcquire takes the flag if it is free and reports whether it did.
func (f *Flag) TryAcquire() bool {
	return f.busy.CompareAndSwap(false, true)
}

// Release frees the flag.
func (f *Flag) Release() {
	f.busy.Store(false)
}

// Busy reports whether the flag is currently held.
func (f *Flag) Busy() bool {
	return f.busy.Load()
}
