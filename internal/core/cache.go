// Package core provides the business logic contracts and shared services for the opsdesk backend.
package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meridianbank/opsdesk/internal/resultset"
)

// CacheRepository defines the interface for caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// SetTTL updates the TTL for an existing key.
	// Returns true if the key exists and TTL was updated.
	SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	// This is useful for implementing distributed locks and deduplication.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// Snapshot is one upstream dataset collection pinned at a fetch instant.
// Every page served from this snapshot shares the same FetchedAt, so a user
// paging through results never sees the set shift underneath them.
type Snapshot struct {
	Dataset   string             `json:"dataset"`
	FetchedAt time.Time          `json:"fetched_at"`
	Records   []resultset.Record `json:"records"`
}

// SnapshotCacheService stores dataset snapshots through a CacheRepository.
// It owns the key layout and serialization; callers deal in Snapshot values.
type SnapshotCacheService struct {
	cache CacheRepository
	ttl   time.Duration
}

// SnapshotCacheConfig holds configuration for snapshot caching.
type SnapshotCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// SnapshotCacheServiceOptions bundles dependencies for NewSnapshotCacheService.
type SnapshotCacheServiceOptions struct {
	Cache  CacheRepository
	Config SnapshotCacheConfig
}

// DefaultSnapshotCacheConfig returns a SnapshotCacheConfig with sensible defaults.
func DefaultSnapshotCacheConfig() SnapshotCacheConfig {
	return SnapshotCacheConfig{
		TTL: 15 * time.Minute,
	}
}

// NewSnapshotCacheService creates a new SnapshotCacheService.
func NewSnapshotCacheService(opts SnapshotCacheServiceOptions) *SnapshotCacheService {
	ttl := opts.Config.TTL
	if ttl <= 0 {
		ttl = DefaultSnapshotCacheConfig().TTL
	}
	return &SnapshotCacheService{
		cache: opts.Cache,
		ttl:   ttl,
	}
}

// Store caches a snapshot for its dataset, replacing any previous one.
func (s *SnapshotCacheService) Store(ctx context.Context, snap Snapshot) error {
	if snap.Dataset == "" {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.cache.Set(ctx, snapshotKey(snap.Dataset), payload, s.ttl)
}

// Load retrieves the cached snapshot for a dataset.
// Returns nil if no snapshot is cached.
func (s *SnapshotCacheService) Load(ctx context.Context, dataset string) (*Snapshot, error) {
	if dataset == "" {
		return nil, nil
	}

	payload, err := s.cache.Get(ctx, snapshotKey(dataset))
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	// Decode with UseNumber so record numbers survive the cache round trip
	// with the same precision they had coming off the wire.
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Invalidate removes the cached snapshot for a dataset.
// This should be called when a forced refresh replaces the collection.
func (s *SnapshotCacheService) Invalidate(ctx context.Context, dataset string) error {
	if dataset == "" {
		return nil
	}

	_, err := s.cache.Delete(ctx, snapshotKey(dataset))
	return err
}

// Age reports how long ago the snapshot was fetched, relative to now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// snapshotKey generates a cache key for a dataset snapshot.
func snapshotKey(dataset string) string {
	return "snapshot:" + dataset
}
