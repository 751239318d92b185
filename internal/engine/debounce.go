package engine

import (
	"sync"
	"time"

	"github.com/roach88/cartsync/internal/clock"
)

// Debouncer runs fn once input has been quiet for delay.
//
// Every Trigger resets one shared timer (trailing debounce), so a burst of
// triggers produces exactly one call. The timer is created on first use and
// reset afterwards; no goroutine or timer is allocated per trigger.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration
	fn    func()

	mu       sync.Mutex
	timer    clock.Timer
	armed    bool
	deadline time.Time
}

// NewDebouncer creates a debouncer. fn runs on the clock's timer goroutine.
func NewDebouncer(c clock.Clock, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{clock: c, delay: delay, fn: fn}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.armed = true
	d.deadline = d.clock.Now().Add(d.delay)
	if d.timer == nil {
		d.timer = d.clock.AfterFunc(d.delay, d.fire)
		return
	}
	d.timer.Reset(d.delay)
}

// Stop cancels a pending call. Returns true if one was pending.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil || !d.armed {
		return false
	}
	d.armed = false
	d.timer.Stop()
	return true
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.armed {
		// Stopped after the timer had already begun firing.
		d.mu.Unlock()
		return
	}
	if d.clock.Now().Before(d.deadline) {
		// A Trigger reset the timer while this fire waited for the lock.
		// The reset timer fires again at the new deadline.
		d.mu.Unlock()
		return
	}
	d.armed = false
	d.mu.Unlock()

	d.fn()
}
