package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU + Redis.
// All methods are scoped by an owner ID (the user) so entries never cross accounts.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, ownerID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, ownerID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, ownerID string, key string) error

	// GetAssessment retrieves a cached assessment.
	// Returns nil, nil on a miss.
	GetAssessment(ctx context.Context, ownerID string, assessmentID string) (*Assessment, error)

	// SetAssessment caches an assessment for subsequent lookups.
	SetAssessment(ctx context.Context, ownerID string, a *Assessment, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for submission velocity checks.
	IncrementCounter(ctx context.Context, ownerID string, key string, window time.Duration) (int64, error)

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
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis

	// AssessmentTTL is how long assessment lookups stay cached.
	AssessmentTTL time.Duration
}
