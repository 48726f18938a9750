package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytesecuritas/sensi-back/internal/config"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLoginLimiter(client, limit, window), mr
}

func TestLoginLimiterBlocksAfterLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "a@x.test")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
		require.NoError(t, limiter.RecordFailure(ctx, "a@x.test"))
	}

	ok, err := limiter.Allow(ctx, "a@x.test")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "b@x.test")
	require.NoError(t, err)
	assert.True(t, ok, "other emails are unaffected")
}

func TestLoginLimiterWindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.RecordFailure(ctx, "a@x.test"))
	ok, _ := limiter.Allow(ctx, "a@x.test")
	assert.False(t, ok)

	mr.FastForward(61 * time.Second)

	ok, err := limiter.Allow(ctx, "a@x.test")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginLimiterReset(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.RecordFailure(ctx, "a@x.test"))
	require.NoError(t, limiter.Reset(ctx, "a@x.test"))

	ok, err := limiter.Allow(ctx, "a@x.test")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, key := range mr.Keys() {
		assert.NotContains(t, key, "a@x.test")
	}
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr(), PoolSize: 4})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, 4, client.Options().PoolSize)

	_, err = NewRedisClient(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1", ConnectAttempts: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis 127.0.0.1:1: ping failed after 2 attempts")
}

func TestNewRedisClientWaitsForLateStart(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Close()
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = mr.Restart()
	}()

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr(), ConnectAttempts: 5})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
}

func TestNewRedisClientStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRedisClient(ctx, config.RedisConfig{Addr: "127.0.0.1:1", ConnectAttempts: 10})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRedisOptionsDefaults(t *testing.T) {
	opts := redisOptions(config.RedisConfig{Addr: "redis:6379", DB: 2})
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 3*time.Second, opts.DialTimeout)
}
