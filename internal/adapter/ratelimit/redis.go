package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter allows at most limit requests per key in each fixed window.
type RedisLimiter struct {
	client *redis.Client
	keys   *KeyBuilder
	limit  int64
	window time.Duration
	now    func() time.Time
}

type RedisOption func(*RedisLimiter)

func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) {
		l.now = now
	}
}

func NewRedisLimiter(client *redis.Client, keys *KeyBuilder, limit int, window time.Duration, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		client: client,
		keys:   keys,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow counts the request against the current window of key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	const op = "adapter.ratelimit.RedisLimiter.Allow"

	slot := l.now().UnixNano() / int64(l.window)
	redisKey := l.keys.Build(key, strconv.FormatInt(slot, 10))

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%s: failed to increment counter: %w", op, err)
	}

	return incr.Val() <= l.limit, nil
}

// NewRedisClient connects to addr and checks the connection with a ping.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "adapter.ratelimit.NewRedisClient"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}

	return client, nil
}
