package relay

import "time"

// Backoff computes redial delays: Base doubled per consecutive failure,
// capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff is used when no WithBackoff option is given.
var DefaultBackoff = Backoff{Base: 500 * time.Millisecond, Max: 16 * time.Second}

// Delay returns the wait before redial number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max || d <= 0 {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}
