// Package clock abstracts wall-clock time so debounce and cooldown logic can
// run against a deterministic fake in tests.
package clock

import "time"

// Timer is a reset-able one-shot timer. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Clock provides the current time and callback timers.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine (or, for Fake, synchronously
	// during Advance) once d has elapsed. The returned Timer can be reset,
	// which reuses the same timer instead of allocating a new one.
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
