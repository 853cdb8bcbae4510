// Package cache provides the HeartCare caching backends.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

// LRUCache is a thread-safe LRU cache with TTL support.
// Serves the local profile and acts as L1 in two-phase caching.
type LRUCache struct {
	mu       sync.Mutex
	maxSize  int
	items    map[string]*list.Element
	order    *list.List
	counters map[string]*counterEntry
	now      func() time.Time
}

type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache holding at most maxSize entries.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LRUCache{
		maxSize:  maxSize,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		counters: make(map[string]*counterEntry),
		now:      time.Now,
	}
}

// Get returns nil, nil on a miss or an expired entry.
func (c *LRUCache) Get(ctx context.Context, ownerID string, key string) ([]byte, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[makeKey(ownerID, key)]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, nil
	}

	c.order.MoveToFront(elem)
	return entry.value, nil
}

// Set stores a value and evicts the least recently used entries over capacity.
func (c *LRUCache) Set(ctx context.Context, ownerID string, key string, value []byte, ttl time.Duration) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}

	fullKey := makeKey(ownerID, key)
	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fullKey]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		return nil
	}

	c.items[fullKey] = c.order.PushFront(&cacheEntry{
		key:       fullKey,
		value:     value,
		expiresAt: expiresAt,
	})

	for c.order.Len() > c.maxSize {
		c.removeElement(c.order.Back())
	}

	return nil
}

// Delete removes a value from cache.
func (c *LRUCache) Delete(ctx context.Context, ownerID string, key string) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[makeKey(ownerID, key)]; ok {
		c.removeElement(elem)
	}
	return nil
}

// GetAssessment retrieves a cached assessment.
func (c *LRUCache) GetAssessment(ctx context.Context, ownerID string, assessmentID string) (*domain.Assessment, error) {
	return loadAssessment(ctx, c, ownerID, assessmentID)
}

// SetAssessment caches an assessment.
func (c *LRUCache) SetAssessment(ctx context.Context, ownerID string, a *domain.Assessment, ttl time.Duration) error {
	return storeAssessment(ctx, c, ownerID, a, ttl)
}

// IncrementCounter increments a fixed-window counter.
// The window starts with the first increment and resets once it expires.
func (c *LRUCache) IncrementCounter(ctx context.Context, ownerID string, key string, window time.Duration) (int64, error) {
	if ownerID == "" {
		return 0, ErrOwnerRequired
	}

	fullKey := makeKey(ownerID, "counter:"+key)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.counters[fullKey]
	if !ok || now.After(entry.expiresAt) {
		c.counters[fullKey] = &counterEntry{count: 1, expiresAt: now.Add(window)}
		return 1, nil
	}

	entry.count++
	return entry.count, nil
}

// Ping checks cache health.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops every entry and counter.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	c.counters = make(map[string]*counterEntry)
	return nil
}

// Stats returns cache statistics.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len(), c.maxSize
}

func makeKey(ownerID, key string) string {
	return ownerID + ":" + key
}

func (c *LRUCache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry).key)
}
