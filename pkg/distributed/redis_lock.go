package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// only the owner may delete or extend a lock
var (
	releaseScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`)
	extendScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// RedisLock is a held SET NX lock.
type RedisLock struct {
	client redis.UniversalClient
	key    string
	value  string
	ttl    time.Duration
}

// LockOptions controls how hard WithLock tries before giving up.
type LockOptions struct {
	TTL           time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

func DefaultLockOptions() LockOptions {
	return LockOptions{
		TTL:           5 * time.Second,
		MaxRetries:    20,
		RetryInterval: 50 * time.Millisecond,
	}
}

type RedisLockManager struct {
	client redis.UniversalClient
	owner  string
}

// NewRedisLockManager creates a manager whose locks carry a per-process owner id.
func NewRedisLockManager(client redis.UniversalClient) *RedisLockManager {
	return &RedisLockManager{
		client: client,
		owner:  uuid.New().String(),
	}
}

// AcquireLock makes a single SET NX attempt.
func (m *RedisLockManager) AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (*RedisLock, error) {
	success, err := m.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, ErrLockNotAcquired
	}

	return &RedisLock{
		client: m.client,
		key:    key,
		value:  value,
		ttl:    ttl,
	}, nil
}

func (m *RedisLockManager) TryLockWithRetry(
	ctx context.Context,
	key, value string,
	ttl time.Duration,
	maxRetries int,
	retryInterval time.Duration,
) (*RedisLock, error) {
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireLock(ctx, key, value, ttl)
		if err == nil {
			return lock, nil
		}

		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}

	return nil, ErrLockNotAcquired
}

// WithLock runs fn while holding key. Each call uses a fresh token so two
// goroutines of the same process cannot release each other's lock.
func (m *RedisLockManager) WithLock(ctx context.Context, key string, opts LockOptions, fn func(ctx context.Context) error) error {
	value := fmt.Sprintf("%s:%s", m.owner, uuid.New().String())

	lock, err := m.TryLockWithRetry(ctx, key, value, opts.TTL, opts.MaxRetries, opts.RetryInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	fnErr := fn(ctx)

	// release on a fresh context so a cancelled caller still frees the key
	releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := lock.Release(releaseCtx); err != nil && fnErr == nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}

	return fnErr
}

func (l *RedisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return err
	}

	if result == 0 {
		return ErrLockNotHeld
	}

	return nil
}

func (l *RedisLock) Extend(ctx context.Context, extension time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.value, extension.Milliseconds()).Int()
	if err != nil {
		return err
	}

	if result == 0 {
		return ErrLockNotHeld
	}

	l.ttl = extension
	return nil
}

// IsHeld reports whether the key still holds this lock's value.
func (l *RedisLock) IsHeld(ctx context.Context) (bool, error) {
	value, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return value == l.value, nil
}
