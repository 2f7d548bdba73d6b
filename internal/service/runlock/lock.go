// Package runlock serializes batch runs across overlapping scheduler
// triggers with a Redis SET NX lock.
package runlock

import (
	"context"
	"time"

	drepo "StockWatch/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// RedisLock implements RunLock on a single Redis key.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedis(addr, password string, db int, key string, ttl time.Duration) drepo.RunLock {
	return &RedisLock{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		key: key,
		ttl: ttl,
	}
}

// Acquire takes the lock if free. The TTL bounds how long a crashed run
// can block the next one.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, "1", l.ttl).Result()
}

func (l *RedisLock) Release(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

// NoopLock is used when no Redis is configured; runs are assumed to be
// serialized by the external scheduler.
type NoopLock struct{}

func NewNoop() drepo.RunLock { return NoopLock{} }

func (NoopLock) Acquire(ctx context.Context) (bool, error) { return true, nil }

func (NoopLock) Release(ctx context.Context) error { return nil }
