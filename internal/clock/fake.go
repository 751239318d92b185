package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced clock.
//
// Timers never fire on their own. Advance moves time forward and runs every
// timer that becomes due, in deadline order, synchronously on the calling
// goroutine. Timers scheduled by those callbacks also fire if they fall
// inside the advanced window.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks run
// without the clock lock held, so they may call back into the clock.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int64
	timers map[*fakeTimer]struct{}
}

// NewFake creates a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, timers: make(map[*fakeTimer]struct{})}
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, f: f}
	c.scheduleLocked(t, d)
	return t
}

// Advance moves the clock forward by d, firing due timers in order.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)

	for {
		t := c.nextDueLocked(target)
		if t == nil {
			break
		}
		delete(c.timers, t)
		if t.when.After(c.now) {
			c.now = t.when
		}

		c.mu.Unlock()
		t.f()
		c.mu.Lock()
	}

	if target.After(c.now) {
		c.now = target
	}
	c.mu.Unlock()
}

// Pending returns the number of armed timers.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *Fake) scheduleLocked(t *fakeTimer, d time.Duration) {
	c.seq++
	t.when = c.now.Add(d)
	t.seq = c.seq
	c.timers[t] = struct{}{}
}

// nextDueLocked returns the earliest timer due at or before target.
// Ties are broken by scheduling order.
func (c *Fake) nextDueLocked(target time.Time) *fakeTimer {
	due := make([]*fakeTimer, 0, len(c.timers))
	for t := range c.timers {
		if !t.when.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].when.Equal(due[j].when) {
			return due[i].seq < due[j].seq
		}
		return due[i].when.Before(due[j].when)
	})
	return due[0]
}

type fakeTimer struct {
	clock *Fake
	when  time.Time
	seq   int64
	f     func()
}

// Stop disarms the timer. Returns true if it was armed.
func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	_, armed := c.timers[t]
	delete(c.timers, t)
	return armed
}

// Reset re-arms the timer to fire d from now. Returns true if it was armed.
func (t *fakeTimer) Reset(d time.Duration) bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	_, armed := c.timers[t]
	c.scheduleLocked(t, d)
	return armed
}
