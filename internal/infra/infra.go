// Package infra holds the outbound plumbing shared by the FRED client and
// the headline feed: a response cache, a request limiter and a GET helper.
package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// --- Response cache ---

// Cache keeps upstream responses for a fixed TTL and collapses concurrent
// loads of the same key into one upstream call. Derived yield series are
// never cached; they are recomputed from the snapshots on every request.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry[V]
	group   singleflight.Group
	now     func() time.Time
}

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// NewCache creates a cache whose entries live for ttl.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]cacheEntry[V]),
		now:     time.Now,
	}
}

// Get returns the live entry for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores v under key for the cache TTL.
func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: v, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate removes key so the next Load calls upstream.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Load returns the cached value for key or calls fetch to produce it.
// Concurrent misses on one key share a single fetch. Errors are not cached.
func (c *Cache[V]) Load(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err == nil {
			c.Set(key, v)
		}
		return v, err
	})
	return res.(V), err
}

// --- Rate limiter ---

// RateLimiter spaces outbound requests. It wraps a token bucket that refills
// at perMinute/60 tokens a second and allows a burst of one second's worth.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiter allowing perMinute requests a
// minute. A non-positive value disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	burst := perMinute / 60
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)}
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}
