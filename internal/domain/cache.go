package domain

import (
	"context"
	"time"
)

// Cache defines the interface for result caching and live counters.
// Supports a local LRU or Redis, optionally layered (two-phase).
type Cache interface {
	// Get retrieves a value from cache. Returns nil, nil if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetResult retrieves a cached scoring result by transaction id.
	GetResult(ctx context.Context, txID string) (*ScoringResult, error)

	// SetResult caches a scoring result for fast retrieval.
	SetResult(ctx context.Context, txID string, res *ScoringResult, ttl time.Duration) error

	// IncrementCounter atomically increments a windowed counter and
	// returns the new value. Used for live per-user velocity tallies
	// on the ingest path.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     int // seconds

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
