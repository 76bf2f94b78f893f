package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func within(t *testing.T, d, base time.Duration) {
	t.Helper()
	lo := time.Duration(float64(base) * 0.75)
	hi := time.Duration(float64(base) * 1.25)
	assert.True(t, d >= lo && d <= hi, "%v not within 25%% of %v", d, base)
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 500*time.Millisecond)
	within(t, b.Next(), 100*time.Millisecond)
	within(t, b.Next(), 200*time.Millisecond)
	within(t, b.Next(), 400*time.Millisecond)
	within(t, b.Next(), 500*time.Millisecond)
	within(t, b.Next(), 500*time.Millisecond)
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second)
	b.Next()
	b.Next()
	b.Reset()
	within(t, b.Next(), 100*time.Millisecond)
}

func TestBackoff_Defaults(t *testing.T) {
	b := NewBackoff(0, 0)
	within(t, b.Next(), DefaultInitial)
}

func TestBackoff_WaitHonoursContext(t *testing.T) {
	b := NewBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := b.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoff_Wait(t *testing.T) {
	b := NewBackoff(time.Millisecond, time.Millisecond)
	assert.NoError(t, b.Wait(context.Background()))
}
