package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBucket(rate float64, burst int) (*TokenBucket, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := NewTokenBucket(rate, burst)
	tb.now = clock.now
	tb.last = clock.now()
	return tb, clock
}

func TestTokenBucketBurstAndRefill(t *testing.T) {
	tb, clock := newTestBucket(2, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "token %d", i+1)
	}
	assert.False(t, tb.Allow())

	clock.advance(500 * time.Millisecond)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	clock.advance(time.Hour)
	assert.Equal(t, 3, tb.Tokens())
}

func TestTokenBucketReset(t *testing.T) {
	tb, _ := newTestBucket(1, 4)
	for tb.Allow() {
	}
	assert.Equal(t, 0, tb.Tokens())

	tb.Reset()
	assert.Equal(t, 4, tb.Tokens())
}

func TestTokenBucketWait(t *testing.T) {
	tb := NewTokenBucket(50, 1)
	require.True(t, tb.Allow())

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := NewTokenBucket(0.001, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMinimumBurst(t *testing.T) {
	tb, _ := newTestBucket(1, 0)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}
