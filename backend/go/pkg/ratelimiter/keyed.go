package ratelimiter

import (
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/pkg/util"
	"fmt"
	"sync"
	"time"
)

// Factory creates a fresh limiter for a new key.
type Factory func() RateLimiter

// FactoryFromConfig returns a Factory for the configured algorithm.
// An empty algorithm selects the token bucket.
func FactoryFromConfig(cfg config.RateLimiterConfig) (Factory, error) {
	switch cfg.Algorithm {
	case "", "tokenBucket":
		conf := cfg.TokenBucket
		if conf.Rate <= 0 || conf.Capacity <= 0 {
			return nil, fmt.Errorf("tokenBucket needs a positive rate and capacity")
		}
		return func() RateLimiter { return NewTokenBucket(conf.Rate, conf.Capacity) }, nil
	case "slidingLog":
		conf := cfg.SlidingLog
		window, err := time.ParseDuration(conf.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid slidingLog duration: %w", err)
		}
		if conf.Limit <= 0 {
			return nil, fmt.Errorf("slidingLog needs a positive limit")
		}
		return func() RateLimiter { return NewSlidingWindowLog(conf.Limit, window) }, nil
	default:
		return nil, fmt.Errorf("unknown rate limiter algorithm: %s", cfg.Algorithm)
	}
}

// Keyed keeps one limiter per key, such as a user id.
// The least recently seen keys are evicted once maxKeys is reached, which
// resets their budget.
type Keyed struct {
	factory  Factory
	limiters *util.LRUCache[string, RateLimiter]
	mu       sync.Mutex
}

// NewKeyed creates a Keyed limiter holding at most maxKeys limiters.
func NewKeyed(factory Factory, maxKeys int) (*Keyed, error) {
	cache, err := util.NewWithConfig(util.CacheConfig[string, RateLimiter]{Capacity: maxKeys})
	if err != nil {
		return nil, err
	}
	return &Keyed{factory: factory, limiters: cache}, nil
}

// Allow reports whether a request for key is allowed.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	limiter, ok := k.limiters.Get(key)
	if !ok {
		limiter = k.factory()
		k.limiters.Put(key, limiter, 1)
	}
	k.mu.Unlock()
	return limiter.Allow()
}
