package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	c := NewRedisCache(client, DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func setupMemory(t *testing.T) *MemoryCache {
	t.Helper()

	c := NewMemoryCache(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// backends runs fn against every Cache implementation
func backends(t *testing.T, fn func(t *testing.T, c Cache)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, setupMemory(t))
	})
	t.Run("redis", func(t *testing.T) {
		c, _ := setupTestRedis(t)
		fn(t, c)
	})
}

func TestCache_SetGet(t *testing.T) {
	backends(t, func(t *testing.T, c Cache) {
		ctx := context.Background()

		require.NoError(t, c.Set(ctx, "revoked:abc", []byte("1"), time.Minute))

		got, err := c.Get(ctx, "revoked:abc")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), got)

		ok, err := c.Exists(ctx, "revoked:abc")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestCache_Miss(t *testing.T) {
	backends(t, func(t *testing.T, c Cache) {
		ctx := context.Background()

		_, err := c.Get(ctx, "missing")
		assert.True(t, IsCacheMiss(err))

		_, err = c.Take(ctx, "missing")
		assert.True(t, IsCacheMiss(err))

		ok, err := c.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCache_TakeIsOneShot(t *testing.T) {
	backends(t, func(t *testing.T, c Cache) {
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "oauth:state", []byte("github"), time.Minute))

		got, err := c.Take(ctx, "oauth:state")
		require.NoError(t, err)
		assert.Equal(t, []byte("github"), got)

		_, err = c.Take(ctx, "oauth:state")
		assert.True(t, IsCacheMiss(err))
	})
}

func TestCache_Delete(t *testing.T) {
	backends(t, func(t *testing.T, c Cache) {
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
		require.NoError(t, c.Delete(ctx, "k"))

		ok, err := c.Exists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := setupMemory(t)
	now := time.Now()
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), -1))
	assert.Equal(t, 2, c.Len())

	now = now.Add(2 * time.Second)

	_, err := c.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_CanceledContext(t *testing.T) {
	c := setupMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), context.Canceled)
}

func TestMemoryCache_CloseStopsSweeper(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewMemoryCache(DefaultConfig())
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestRedisCache_TTLAndPrefix(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "revoked:jti", []byte("1"), time.Hour))
	assert.True(t, mr.Exists("egg:revoked:jti"))
	assert.Equal(t, time.Hour, mr.TTL("egg:revoked:jti"))

	mr.FastForward(2 * time.Hour)
	_, err := c.Get(ctx, "revoked:jti")
	assert.True(t, IsCacheMiss(err))
}

func TestRedisCache_ServerError(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.SetError("READONLY")

	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = NewRedisClient(context.Background(), "://bad")
	assert.Error(t, err)
}

func TestIsCacheMiss(t *testing.T) {
	assert.True(t, IsCacheMiss(ErrCacheMiss{Key: "k"}))
	assert.True(t, IsCacheMiss(fmt.Errorf("wrapped: %w", ErrCacheMiss{Key: "k"})))
	assert.False(t, IsCacheMiss(errors.New("boom")))
	assert.False(t, IsCacheMiss(nil))
}
