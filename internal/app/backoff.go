package app

import "time"

// Backoff is a doubling retry delay clamped to [min, max].
type Backoff struct {
	min     time.Duration
	max     time.Duration
	current time.Duration
}

func NewBackoff(min, max time.Duration) *Backoff {
	if max < min {
		max = min
	}
	return &Backoff{min: min, max: max, current: min}
}

// Current returns the delay the next failure will wait.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Next returns the delay to wait now and doubles the following one.
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.current = min(b.current*2, b.max)
	return d
}

// Reset drops the delay back to the floor after a clean cycle.
func (b *Backoff) Reset() {
	b.current = b.min
}
