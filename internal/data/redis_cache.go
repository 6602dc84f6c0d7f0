package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridianbank/opsdesk/internal/core"
	"github.com/redis/go-redis/v9"
)

// errEmptyKey rejects cache calls before they reach Redis; an empty key is a
// caller bug, not a cache miss.
var errEmptyKey = errors.New("key cannot be empty")

// RedisCache backs the snapshot cache and the refresher's locks with Redis.
// Sessions may share the instance but live in their own store.
type RedisCache struct {
	rdb redis.UniversalClient
}

var _ core.CacheRepository = (*RedisCache)(nil)

// NewRedisCache wraps an established Redis client.
func NewRedisCache(rdb redis.UniversalClient) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// Get returns the cached bytes for key, or nil when the key is absent.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errEmptyKey
	}

	val, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return val, nil
}

// Set stores value under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errEmptyKey
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete removes key and reports whether it existed.
func (c *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errEmptyKey
	}

	n, err := c.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache del: %w", err)
	}
	return n > 0, nil
}

// Exists reports whether key is present.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errEmptyKey
	}

	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists: %w", err)
	}
	return n > 0, nil
}

// SetTTL re-arms the expiry on an existing key. Returns false when the key
// is gone.
func (c *RedisCache) SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errEmptyKey
	}

	ok, err := c.rdb.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache expire: %w", err)
	}
	return ok, nil
}

// SetIfNotExists writes key only when absent, in one round trip. The
// refresher uses this as a lock so two replicas never prewarm the same
// dataset at once. A non-positive ttl is raised to one second so an
// abandoned lock still expires.
func (c *RedisCache) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errEmptyKey
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	// SETNX plus EXPIRE is two commands and can race; SET with NX and a TTL
	// is a single atomic command.
	status, err := c.rdb.SetArgs(ctx, key, value, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Nil reply means the key was already there, not a failure.
		return false, nil
	case err != nil:
		return false, fmt.Errorf("cache set nx: %w", err)
	}
	return status == "OK", nil
}

// Health pings Redis.
func (c *RedisCache) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RedisConfig carries connection settings for the snapshot cache Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient builds a client from cfg. The caller owns the connection
// and is expected to ping it before use.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
