package app

import (
	"math/rand"
	"time"
)

// Default retry delays used when a drain is deferred while still online.
const (
	DefaultRetryInitial = 2 * time.Second
	DefaultRetryMax     = 2 * time.Minute
)

// backoff yields exponentially growing delays with ±20% jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	if max < initial {
		max = initial
	}
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Next returns the delay to wait now and grows the following one.
func (b *backoff) Next() time.Duration {
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	d := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the base of the next delay, before jitter.
func (b *backoff) Current() time.Duration {
	return b.current
}
