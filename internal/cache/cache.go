package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

// ErrOwnerRequired is returned when a call omits the owner scope.
var ErrOwnerRequired = errors.New("ownerID is required")

// New creates a new cache based on configuration.
// "memory" returns an LRU cache. "redis" returns Redis, wrapped
// in a TwoPhaseCache when local caching is enabled.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory", "":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// byteStore is the raw get/set surface shared by every backend.
type byteStore interface {
	Get(ctx context.Context, ownerID string, key string) ([]byte, error)
	Set(ctx context.Context, ownerID string, key string, value []byte, ttl time.Duration) error
}

// AssessmentKey is the cache key under which an assessment is stored.
func AssessmentKey(id string) string {
	return "assessment:" + id
}

func loadAssessment(ctx context.Context, s byteStore, ownerID, id string) (*domain.Assessment, error) {
	data, err := s.Get(ctx, ownerID, AssessmentKey(id))
	if err != nil || data == nil {
		return nil, err
	}

	var a domain.Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode cached assessment %s: %w", id, err)
	}
	return &a, nil
}

func storeAssessment(ctx context.Context, s byteStore, ownerID string, a *domain.Assessment, ttl time.Duration) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.Set(ctx, ownerID, AssessmentKey(a.ID), data, ttl)
}

// TwoPhaseCache implements the two-phase caching strategy.
// L1: Local LRU cache for fast reads
// L2: Redis, shared by every replica
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
	l1TTL  time.Duration
}

// NewTwoPhaseCache creates a two-phase cache with LRU + Redis.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}

	l1TTL := cfg.LocalTTL
	if l1TTL == 0 {
		l1TTL = time.Minute
	}

	return &TwoPhaseCache{
		local:  NewLRUCache(cfg.LocalMaxSize),
		remote: remote,
		l1TTL:  l1TTL,
	}, nil
}

// Get retrieves from L1 first, then L2. Populates L1 on L2 hit.
func (c *TwoPhaseCache) Get(ctx context.Context, ownerID string, key string) ([]byte, error) {
	val, err := c.local.Get(ctx, ownerID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		return val, nil
	}

	val, err = c.remote.Get(ctx, ownerID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		_ = c.local.Set(ctx, ownerID, key, val, c.l1TTL)
	}

	return val, nil
}

// Set writes to both L1 and L2. L1 never outlives the requested TTL.
func (c *TwoPhaseCache) Set(ctx context.Context, ownerID string, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, ownerID, key, value, min(ttl, c.l1TTL)); err != nil {
		return err
	}
	return c.remote.Set(ctx, ownerID, key, value, ttl)
}

// Delete removes from both L1 and L2.
func (c *TwoPhaseCache) Delete(ctx context.Context, ownerID string, key string) error {
	if err := c.local.Delete(ctx, ownerID, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, ownerID, key)
}

// GetAssessment retrieves a cached assessment through both tiers.
func (c *TwoPhaseCache) GetAssessment(ctx context.Context, ownerID string, assessmentID string) (*domain.Assessment, error) {
	return loadAssessment(ctx, c, ownerID, assessmentID)
}

// SetAssessment caches an assessment in both tiers.
func (c *TwoPhaseCache) SetAssessment(ctx context.Context, ownerID string, a *domain.Assessment, ttl time.Duration) error {
	return storeAssessment(ctx, c, ownerID, a, ttl)
}

// IncrementCounter uses Redis for distributed atomic counters.
// L1 is not used for counters so every replica sees the same count.
func (c *TwoPhaseCache) IncrementCounter(ctx context.Context, ownerID string, key string, window time.Duration) (int64, error) {
	return c.remote.IncrementCounter(ctx, ownerID, key, window)
}

// Ping checks both L1 and L2 health.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("L1 ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

// Close closes both L1 and L2.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats returns L1 cache statistics.
func (c *TwoPhaseCache) Stats() (size int, capacity int) {
	return c.local.Stats()
}
