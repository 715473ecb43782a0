package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and takes one token atomically. Times are in
// milliseconds so sub-second refills count.
//
// KEYS[1] bucket hash, ARGV: capacity, refill per second, now (ms)
// returns {allowed, remaining, retry_after_ms}
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local state = redis.call('HMGET', key, 'tokens', 'ts')
	local tokens = tonumber(state[1])
	local ts = tonumber(state[2])
	if tokens == nil or ts == nil then
		tokens = capacity
		ts = now
	end

	local elapsed = math.max(0, now - ts)
	tokens = math.min(capacity, tokens + elapsed * rate / 1000)

	local allowed = 0
	local retry = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	elseif rate > 0 then
		retry = math.ceil((1 - tokens) * 1000 / rate)
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(now))
	local ttl = 60000
	if rate > 0 then
		ttl = math.ceil(capacity * 1000 / rate) + 1000
	end
	redis.call('PEXPIRE', key, ttl)

	return {allowed, math.floor(tokens), retry}
`)

// RedisRateLimiter is a token bucket shared by every server instance.
type RedisRateLimiter struct {
	client     redis.UniversalClient
	keyPrefix  string
	capacity   int64
	refillRate int64
	now        func() time.Time
}

type RedisRateLimiterConfig struct {
	KeyPrefix  string // e.g. "ratelimit:"
	Capacity   int64
	RefillRate int64 // tokens per second
}

func NewRedisRateLimiter(client redis.UniversalClient, config RedisRateLimiterConfig) *RedisRateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit:"
	}
	if config.Capacity <= 0 {
		config.Capacity = 20
	}
	if config.RefillRate < 0 {
		config.RefillRate = 0
	}

	return &RedisRateLimiter{
		client:     client,
		keyPrefix:  config.KeyPrefix,
		capacity:   config.Capacity,
		refillRate: config.RefillRate,
		now:        time.Now,
	}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	nowMs := r.now().UnixMilli()

	result, err := tokenBucketScript.Run(ctx, r.client, []string{r.keyPrefix + key}, r.capacity, r.refillRate, nowMs).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit script failed: %w", err)
	}
	if len(result) < 3 {
		return Decision{}, fmt.Errorf("invalid rate limit script result: %v", result)
	}

	return Decision{
		Allowed:    result[0] == 1,
		Limit:      r.capacity,
		Remaining:  result[1],
		RetryAfter: time.Duration(result[2]) * time.Millisecond,
	}, nil
}

// Reset drops the bucket of key.
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}
