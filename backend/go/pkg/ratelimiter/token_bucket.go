package ratelimiter

import (
	"math"
	"sync"
	"time"
)

// TokenBucket 以 rate 个/秒的速度补充令牌，桶满时允许 capacity 次突发。
type TokenBucket struct {
	mu       sync.Mutex
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
	now      clock
}

// NewTokenBucket 创建一个装满令牌的 TokenBucket。
func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	return newTokenBucket(rate, capacity, time.Now)
}

func newTokenBucket(rate float64, capacity int, now clock) *TokenBucket {
	return &TokenBucket{
		rate:     rate,
		capacity: float64(capacity),
		tokens:   float64(capacity),
		last:     now(),
		now:      now,
	}
}

// Allow 先按流逝时间补充令牌，再尝试取走一个。
func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (b *TokenBucket) refill() {
	t := b.now()
	if elapsed := t.Sub(b.last); elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed.Seconds()*b.rate)
		b.last = t
	}
}
