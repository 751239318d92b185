package engine

import "sync/atomic"

// versionClock is a monotonic logical counter used to stamp snapshots and
// broadcast events. Safe for concurrent use.
type versionClock struct {
	seq atomic.Int64
}

// Next increments and returns the counter. The first call returns 1.
func (c *versionClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the counter without incrementing.
func (c *versionClock) Current() int64 {
	return c.seq.Load()
}
