package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBuilder_Build(t *testing.T) {
	assert.Equal(t, "rate:redirect:10.0.0.1", NewKeyBuilder("").Build("redirect", "10.0.0.1"))
	assert.Equal(t, "links:rate:create:10.0.0.1", NewKeyBuilder("links").Build("create", "10.0.0.1"))
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})

	return mr, client
}

func TestRedisLimiter_Allow(t *testing.T) {
	window := time.Minute
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("limit within window", func(t *testing.T) {
		_, client := setupRedis(t)
		l := NewRedisLimiter(client, NewKeyBuilder("test"), 3, window, WithRedisClock(clock))

		for i := 0; i < 3; i++ {
			ok, err := l.Allow(context.Background(), "10.0.0.1")
			require.NoError(t, err)
			assert.True(t, ok, "request %d", i+1)
		}

		ok, err := l.Allow(context.Background(), "10.0.0.1")
		assert.NoError(t, err)
		assert.False(t, ok)

		ok, err = l.Allow(context.Background(), "10.0.0.2")
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("next window", func(t *testing.T) {
		_, client := setupRedis(t)
		current := now
		l := NewRedisLimiter(client, NewKeyBuilder("test"), 1, window, WithRedisClock(func() time.Time { return current }))

		ok, err := l.Allow(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = l.Allow(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, ok)

		current = current.Add(window)

		ok, err = l.Allow(context.Background(), "10.0.0.1")
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("counter expires", func(t *testing.T) {
		mr, client := setupRedis(t)
		keys := NewKeyBuilder("test")
		l := NewRedisLimiter(client, keys, 1, window, WithRedisClock(clock))

		_, err := l.Allow(context.Background(), "10.0.0.1")
		require.NoError(t, err)

		slot := now.UnixNano() / int64(window)
		key := keys.Build("10.0.0.1", formatSlot(slot))

		assert.True(t, mr.Exists(key))
		assert.Equal(t, window, mr.TTL(key))
	})

	t.Run("redis unavailable", func(t *testing.T) {
		mr, client := setupRedis(t)
		l := NewRedisLimiter(client, NewKeyBuilder("test"), 1, window, WithRedisClock(clock))

		mr.Close()

		ok, err := l.Allow(context.Background(), "10.0.0.1")
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestNewRedisClient(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
		require.NoError(t, err)
		client.Close()
	})

	t.Run("unreachable", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		client, err := NewRedisClient(ctx, "127.0.0.1:1", "", 0)
		assert.Error(t, err)
		assert.Nil(t, client)
	})
}

func TestMemoryLimiter_Allow(t *testing.T) {
	t.Run("burst then deny", func(t *testing.T) {
		l := NewMemoryLimiter(1, time.Hour, 2)

		for i := 0; i < 2; i++ {
			ok, err := l.Allow(context.Background(), "10.0.0.1")
			require.NoError(t, err)
			assert.True(t, ok)
		}

		ok, err := l.Allow(context.Background(), "10.0.0.1")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("keys are independent", func(t *testing.T) {
		l := NewMemoryLimiter(1, time.Hour, 1)

		ok, _ := l.Allow(context.Background(), "10.0.0.1")
		assert.True(t, ok)
		ok, _ = l.Allow(context.Background(), "10.0.0.2")
		assert.True(t, ok)
		ok, _ = l.Allow(context.Background(), "10.0.0.1")
		assert.False(t, ok)

		assert.Equal(t, 2, l.size())
	})

	t.Run("idle visitors are swept", func(t *testing.T) {
		l := NewMemoryLimiter(1, time.Hour, 1)

		_, _ = l.Allow(context.Background(), "10.0.0.1")

		l.mu.Lock()
		l.visitors["10.0.0.1"].lastSeen = time.Now().Add(-2 * visitorIdleTTL)
		l.lastSweep = time.Now().Add(-2 * visitorIdleTTL)
		l.mu.Unlock()

		ok, _ := l.Allow(context.Background(), "10.0.0.2")
		assert.True(t, ok)
		assert.Equal(t, 1, l.size())
	})
}

func formatSlot(slot int64) string {
	return strconv.FormatInt(slot, 10)
}
