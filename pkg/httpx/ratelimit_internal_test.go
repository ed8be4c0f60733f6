package httpx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBuckets_RefillAndRetryAfter(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := newBuckets(RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}, clock.now)

	ok, remaining, _ := b.take("ip")
	require.True(t, ok)
	require.Equal(t, 1, remaining)

	ok, remaining, _ = b.take("ip")
	require.True(t, ok)
	require.Equal(t, 0, remaining)

	ok, _, wait := b.take("ip")
	require.False(t, ok)
	require.InDelta(t, float64(30*time.Second), float64(wait), float64(time.Second))

	clock.advance(30 * time.Second)
	ok, _, _ = b.take("ip")
	require.True(t, ok, "one token refills every 30s")
}

func TestBuckets_SweepDropsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := newBuckets(RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}, clock.now)

	b.take("idle")
	clock.advance(sweepEvery - time.Second)
	b.take("busy")
	require.Len(t, b.byKey, 2)

	clock.advance(2 * time.Second)
	b.take("busy")
	require.Len(t, b.byKey, 1)
	require.Contains(t, b.byKey, "busy")
}
