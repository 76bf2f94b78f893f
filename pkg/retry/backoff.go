package retry

import (
	"context"
	"math/rand"
	"time"
)

// Default backoff parameters.
const (
	DefaultInitial    = 1 * time.Second
	DefaultMax        = 60 * time.Second
	DefaultMultiplier = 2.0
)

// Backoff implements truncated exponential backoff with ±25% jitter.
// It is not safe for concurrent use.
type Backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	current    time.Duration
}

// NewBackoff returns a Backoff starting at initial and capped at ceiling.
// Non-positive values fall back to the defaults.
func NewBackoff(initial, ceiling time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitial
	}
	if ceiling <= 0 {
		ceiling = DefaultMax
	}
	if ceiling < initial {
		ceiling = initial
	}
	return &Backoff{initial: initial, max: ceiling, multiplier: DefaultMultiplier, current: initial}
}

// Next returns the current backoff duration and advances the internal state.
func (b *Backoff) Next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * b.multiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset restarts the sequence at the initial duration.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Wait sleeps for the next backoff duration. It returns ctx.Err() if ctx is
// done first.
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
