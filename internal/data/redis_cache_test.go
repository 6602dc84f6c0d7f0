package data

import (
	"context"
	"testing"
	"time"

	"github.com/meridianbank/opsdesk/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cacheConn returns a RedisCache bound to the test Redis, skipping when no
// instance is reachable.
func cacheConn(t *testing.T) (*RedisCache, *redis.Client) {
	t.Helper()
	if testing.Short() {
		t.Skip("redis integration test")
	}

	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), client
}

func TestRedisCache_SetAndGet(t *testing.T) {
	cache, client := cacheConn(t)
	ctx := context.Background()

	payload := []byte(`{"dataset":"accounts","records":[]}`)
	require.NoError(t, cache.Set(ctx, "snapshot:accounts", payload, 5*time.Minute))

	got, err := cache.Get(ctx, "snapshot:accounts")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	ttl := client.TTL(ctx, "snapshot:accounts").Val()
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 5*time.Minute)
}

func TestRedisCache_GetMissing(t *testing.T) {
	cache, _ := cacheConn(t)

	got, err := cache.Get(context.Background(), "snapshot:never-written")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCache_Delete(t *testing.T) {
	cache, _ := cacheConn(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "snapshot:transactions", []byte("stale"), time.Minute))

	deleted, err := cache.Delete(ctx, "snapshot:transactions")
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := cache.Get(ctx, "snapshot:transactions")
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = cache.Delete(ctx, "snapshot:transactions")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete should find nothing")
}

func TestRedisCache_Exists(t *testing.T) {
	cache, _ := cacheConn(t)
	ctx := context.Background()

	exists, err := cache.Exists(ctx, "snapshot:cards")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, cache.Set(ctx, "snapshot:cards", []byte("x"), time.Minute))

	exists, err = cache.Exists(ctx, "snapshot:cards")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRedisCache_SetTTL(t *testing.T) {
	cache, client := cacheConn(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "snapshot:loans", []byte("x"), time.Minute))

	rearmed, err := cache.SetTTL(ctx, "snapshot:loans", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, rearmed)

	ttl := client.TTL(ctx, "snapshot:loans").Val()
	assert.Greater(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, 2*time.Minute)

	rearmed, err = cache.SetTTL(ctx, "snapshot:no-such-key", time.Minute)
	require.NoError(t, err)
	assert.False(t, rearmed)
}

func TestRedisCache_SetIfNotExists(t *testing.T) {
	cache, client := cacheConn(t)
	ctx := context.Background()

	won, err := cache.SetIfNotExists(ctx, "refresh:lock:accounts", []byte("replica-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	// A second contender loses and the holder's value survives.
	won, err = cache.SetIfNotExists(ctx, "refresh:lock:accounts", []byte("replica-2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	got, err := cache.Get(ctx, "refresh:lock:accounts")
	require.NoError(t, err)
	assert.Equal(t, []byte("replica-1"), got)

	ttl := client.TTL(ctx, "refresh:lock:accounts").Val()
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisCache_SetIfNotExists_FloorsTTL(t *testing.T) {
	cache, client := cacheConn(t)
	ctx := context.Background()

	won, err := cache.SetIfNotExists(ctx, "refresh:lock:cards", []byte("replica-1"), 0)
	require.NoError(t, err)
	assert.True(t, won)

	// A zero ttl would leave the lock behind forever; the floor keeps it expiring.
	ttl := client.TTL(ctx, "refresh:lock:cards").Val()
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Second)
}

func TestRedisCache_Health(t *testing.T) {
	cache, _ := cacheConn(t)
	assert.NoError(t, cache.Health(context.Background()))
}

func TestRedisCache_EmptyKey(t *testing.T) {
	// Validation fires before any Redis round trip, so no server is needed.
	cache := NewRedisCache(nil)
	ctx := context.Background()

	calls := map[string]func() error{
		"Set":    func() error { return cache.Set(ctx, "", []byte("v"), time.Minute) },
		"Get":    func() error { _, err := cache.Get(ctx, ""); return err },
		"Delete": func() error { _, err := cache.Delete(ctx, ""); return err },
		"Exists": func() error { _, err := cache.Exists(ctx, ""); return err },
		"SetTTL": func() error { _, err := cache.SetTTL(ctx, "", time.Minute); return err },
		"SetIfNotExists": func() error {
			_, err := cache.SetIfNotExists(ctx, "", []byte("v"), time.Minute)
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), errEmptyKey)
		})
	}
}

func TestNewRedisClient(t *testing.T) {
	client := NewRedisClient(RedisConfig{Addr: "cache.internal:6379", Password: "hunter2", DB: 3})
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, "cache.internal:6379", opts.Addr)
	assert.Equal(t, "hunter2", opts.Password)
	assert.Equal(t, 3, opts.DB)
}
