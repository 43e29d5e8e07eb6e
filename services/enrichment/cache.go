package enrichment

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/upb/food-enrich/services/providers"
)

// CacheKey builds the cache key for a lookup. Queries that differ only in
// case or spacing share a key.
func CacheKey(lookupCtx providers.LookupContext, query string) string {
	return string(lookupCtx) + ":" + strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

type cacheEntry struct {
	key        string
	response   *EnrichResponse
	insertedAt time.Time
	element    *list.Element
}

func (e *cacheEntry) isExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.insertedAt) > ttl
}

// LookupCache is an in-memory LRU cache with TTL for enrichment responses.
// Stored and returned responses are copies, so callers may mutate them.
type LookupCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
	now     func() time.Time
}

// NewLookupCache creates a new LookupCache with specified max size and TTL
func NewLookupCache(maxSize int, ttl time.Duration) *LookupCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &LookupCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the cached response, or nil if absent or expired
func (c *LookupCache) Get(key string) *EnrichResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || entry.isExpired(c.now(), c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(key)
		}
		return nil
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.response.Clone()
}

// Set stores a copy of the response
func (c *LookupCache) Set(key string, response *EnrichResponse) {
	if response == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[key]; exists {
		entry.response = response.Clone()
		entry.insertedAt = c.now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		key:        key,
		response:   response.Clone(),
		insertedAt: c.now(),
	}
	entry.element = c.lruList.PushFront(key)
	c.entries[key] = entry
}

// Invalidate removes a specific cache entry
func (c *LookupCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(key)
}

// Clear removes all entries from the cache
func (c *LookupCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns cache statistics
func (c *LookupCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rate float64
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: rate,
	}
}

// must be called with lock held
func (c *LookupCache) removeEntry(key string) {
	if entry, exists := c.entries[key]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, key)
	}
}

// must be called with lock held
func (c *LookupCache) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	c.lruList.Remove(back)
	delete(c.entries, key)
}

// CleanupExpired removes all expired entries and reports how many were dropped
func (c *LookupCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if entry.isExpired(now, c.ttl) {
			c.removeEntry(key)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker periodically drops expired entries until stopCh closes
func (c *LookupCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}
