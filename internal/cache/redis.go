package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every HeartCare key in a shared Redis.
const keyPrefix = "heartcare:"

// incrWithExpiry starts the expiry only on the first increment of a window.
var incrWithExpiry = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// RedisCache implements Cache using Redis.
// Serves the cluster profile and acts as L2 in two-phase caching.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get returns nil, nil when the key is absent.
func (c *RedisCache) Get(ctx context.Context, ownerID string, key string) ([]byte, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	val, err := c.client.Get(ctx, redisKey(ownerID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value in Redis with TTL.
func (c *RedisCache) Set(ctx context.Context, ownerID string, key string, value []byte, ttl time.Duration) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}
	return c.client.Set(ctx, redisKey(ownerID, key), value, ttl).Err()
}

// Delete removes a value from Redis.
func (c *RedisCache) Delete(ctx context.Context, ownerID string, key string) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}
	return c.client.Del(ctx, redisKey(ownerID, key)).Err()
}

// GetAssessment retrieves a cached assessment.
func (c *RedisCache) GetAssessment(ctx context.Context, ownerID string, assessmentID string) (*domain.Assessment, error) {
	return loadAssessment(ctx, c, ownerID, assessmentID)
}

// SetAssessment caches an assessment.
func (c *RedisCache) SetAssessment(ctx context.Context, ownerID string, a *domain.Assessment, ttl time.Duration) error {
	return storeAssessment(ctx, c, ownerID, a, ttl)
}

// IncrementCounter atomically increments a counter using INCR with PEXPIRE.
func (c *RedisCache) IncrementCounter(ctx context.Context, ownerID string, key string, window time.Duration) (int64, error) {
	if ownerID == "" {
		return 0, ErrOwnerRequired
	}

	fullKey := redisKey(ownerID, "counter:"+key)
	return incrWithExpiry.Run(ctx, c.client, []string{fullKey}, window.Milliseconds()).Int64()
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func redisKey(ownerID, key string) string {
	return keyPrefix + makeKey(ownerID, key)
}
