package replica

import "sync/atomic"

// Clock is a Lamport clock.
//
// Local writes stamp ops with Next(). Remote ops advance the clock through
// Observe so the next local write always sorts after anything this replica
// has already seen.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next timestamp and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Observe advances the clock to at least remote.
func (c *Clock) Observe(remote int64) {
	for {
		cur := c.seq.Load()
		if remote <= cur {
			return
		}
		if c.seq.CompareAndSwap(cur, remote) {
			return
		}
	}
}

// Current returns the current value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
