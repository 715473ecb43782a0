package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter is implemented by the in-process and the Redis limiters.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int64   // Maximum number of tokens
	tokens     float64 // Current number of tokens
	refillRate int64   // Tokens added per second
	lastRefill time.Time
	lastUsed   time.Time
	now        func() time.Time
}

func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity, refillRate int64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now(),
		lastUsed:   now(),
		now:        now,
	}
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	return tb.take(1).Allowed
}

// AllowN consumes n tokens if all of them are available.
func (tb *TokenBucket) AllowN(n int64) bool {
	return tb.take(n).Allowed
}

func (tb *TokenBucket) take(n int64) Decision {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.lastUsed = tb.lastRefill

	d := Decision{Limit: tb.capacity}
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		d.Allowed = true
	} else if tb.refillRate > 0 {
		missing := float64(n) - tb.tokens
		d.RetryAfter = time.Duration(missing / float64(tb.refillRate) * float64(time.Second))
	}
	d.Remaining = int64(math.Floor(tb.tokens))
	return d
}

// refill adds tokens for the time elapsed since the last refill, fractions
// included.
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}

	tb.tokens = math.Min(float64(tb.capacity), tb.tokens+elapsed.Seconds()*float64(tb.refillRate))
	tb.lastRefill = now
}

func (tb *TokenBucket) full() bool {
	return tb.tokens >= float64(tb.capacity)
}

// RateLimiter manages one bucket per key (client IP, player).
type RateLimiter struct {
	mu              sync.RWMutex
	buckets         map[string]*TokenBucket
	capacity        int64
	refillRate      int64
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRateLimiter starts a limiter with a background cleanup loop. Call Stop
// to end it.
func NewRateLimiter(capacity, refillRate int64) *RateLimiter {
	rl := &RateLimiter{
		buckets:         make(map[string]*TokenBucket),
		capacity:        capacity,
		refillRate:      refillRate,
		cleanupInterval: 10 * time.Minute,
		lastCleanup:     time.Now(),
		now:             time.Now,
		stop:            make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow checks and consumes one token for key. It never fails.
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	return rl.getBucket(key).take(1), nil
}

func (rl *RateLimiter) getBucket(key string) *TokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	bucket, exists = rl.buckets[key]
	if exists {
		return bucket
	}

	bucket = newTokenBucket(rl.capacity, rl.refillRate, rl.now)
	rl.buckets[key] = bucket
	return bucket
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup removes buckets that refilled completely and sat idle for a
// whole interval.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, bucket := range rl.buckets {
		bucket.mu.Lock()
		bucket.refill()
		if bucket.full() && now.Sub(bucket.lastUsed) > rl.cleanupInterval {
			delete(rl.buckets, key)
		}
		bucket.mu.Unlock()
	}

	rl.lastCleanup = now
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Reset resets the rate limit for a given key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// ActiveBuckets returns the number of tracked keys.
func (rl *RateLimiter) ActiveBuckets() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.buckets)
}
