package ratelimit

import (
	"sync"
	"time"
)

// bucket is a token bucket for a single key
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiter applies a token bucket per key. Inactive buckets are
// swept lazily on Allow, so no background goroutine is needed.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   int
	refillRate float64
	ttl        time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

// NewRateLimiter creates a new rate limiter
// capacity: maximum number of requests allowed in a burst per key
// refillRate: number of requests allowed per second per key
// ttl: how long to keep inactive buckets in memory
func NewRateLimiter(capacity int, refillRate float64, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:    make(map[string]*bucket),
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Allow checks if a request for the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(rl.capacity), lastRefill: now}
		rl.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastRefill).Seconds()
		b.tokens = minFloat(float64(rl.capacity), b.tokens+elapsed*rl.refillRate)
		b.lastRefill = now
	}

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}
	return false
}

// Reset restores full capacity for a specific key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, exists := rl.buckets[key]; exists {
		b.tokens = float64(rl.capacity)
		b.lastRefill = rl.now()
	}
}

// Len returns the number of live buckets
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// sweepLocked drops buckets idle longer than ttl. Runs at most once per
// ttl interval. Caller must hold mu.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if rl.ttl <= 0 || now.Sub(rl.lastSweep) < rl.ttl {
		return
	}
	for key, b := range rl.buckets {
		if now.Sub(b.lastRefill) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
	rl.lastSweep = now
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
