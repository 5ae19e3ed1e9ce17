package ratelimiter

import (
	"AskArchive/backend/go/internal/config"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	c := newFakeClock()
	tb := newTokenBucket(10, 2, c.now)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	c.advance(50 * time.Millisecond)
	assert.False(t, tb.Allow(), "half a token is not enough")

	c.advance(50 * time.Millisecond)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucket_RefillIsCappedAtCapacity(t *testing.T) {
	c := newFakeClock()
	tb := newTokenBucket(10, 2, c.now)
	assert.True(t, tb.Allow())

	c.advance(time.Hour)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucket_RealClock(t *testing.T) {
	tb := NewTokenBucket(1000, 1)
	assert.True(t, tb.Allow())
	time.Sleep(20 * time.Millisecond)
	assert.True(t, tb.Allow())
}

func TestSlidingWindowLog(t *testing.T) {
	c := newFakeClock()
	swl := newSlidingWindowLog(2, 30*time.Second, c.now)

	assert.True(t, swl.Allow())
	c.advance(10 * time.Second)
	assert.True(t, swl.Allow())
	assert.False(t, swl.Allow())

	c.advance(20 * time.Second)
	assert.False(t, swl.Allow(), "a hit exactly window old still counts")

	c.advance(time.Second)
	assert.True(t, swl.Allow(), "the first hit has left the window")
	assert.False(t, swl.Allow())
	assert.LessOrEqual(t, len(swl.hits), 2)
}

func TestKeyed_IsolatesKeys(t *testing.T) {
	k, err := NewKeyed(func() RateLimiter { return NewTokenBucket(0.001, 1) }, 10)
	require.NoError(t, err)

	assert.True(t, k.Allow("alice"))
	assert.False(t, k.Allow("alice"))
	assert.True(t, k.Allow("bob"), "bob has his own bucket")
}

func TestKeyed_EvictionResetsBudget(t *testing.T) {
	k, err := NewKeyed(func() RateLimiter { return NewTokenBucket(0.001, 1) }, 1)
	require.NoError(t, err)

	assert.True(t, k.Allow("alice"))
	assert.True(t, k.Allow("bob"))
	assert.True(t, k.Allow("alice"), "alice was evicted when bob arrived")
}

func TestFactoryFromConfig(t *testing.T) {
	f, err := FactoryFromConfig(config.RateLimiterConfig{TokenBucket: config.TokenBucketConfig{Rate: 1, Capacity: 1}})
	require.NoError(t, err)
	assert.IsType(t, &TokenBucket{}, f())

	f, err = FactoryFromConfig(config.RateLimiterConfig{Algorithm: "slidingLog", SlidingLog: config.SlidingLogConfig{Limit: 3, Window: "1m"}})
	require.NoError(t, err)
	assert.IsType(t, &SlidingWindowLog{}, f())

	_, err = FactoryFromConfig(config.RateLimiterConfig{Algorithm: "slidingLog", SlidingLog: config.SlidingLogConfig{Limit: 3, Window: "soon"}})
	assert.Error(t, err)

	_, err = FactoryFromConfig(config.RateLimiterConfig{Algorithm: "leakyBucket"})
	assert.Error(t, err)
}
