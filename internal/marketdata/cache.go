package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/quantbr/ticksynth/internal/model"
)

// Cache stores candle batches keyed by ticker/interval/date so repeated
// pipeline runs do not refetch the same sessions
type Cache interface {
	Get(ctx context.Context, key string) ([]model.Candle, bool)
	Set(ctx context.Context, key string, candles []model.Candle, ttl time.Duration)
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Entries   int64   `json:"entries"`
	HitRatio  float64 `json:"hit_ratio"`
}

// MemoryCache implements Cache with time-based expiration and LRU
// eviction when full
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	maxEntries int64
	stats      cacheStats

	stopCh chan struct{}
}

type cacheEntry struct {
	candles  []model.Candle
	expires  time.Time
	accessed time.Time
}

type cacheStats struct {
	hits      int64
	misses    int64
	evictions int64
}

// NewMemoryCache creates an in-memory candle cache with the specified
// maximum entry count
func NewMemoryCache(maxEntries int64) *MemoryCache {
	cache := &MemoryCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// Get retrieves a candle batch if present and not expired
func (c *MemoryCache) Get(_ context.Context, key string) ([]model.Candle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expires) {
		c.stats.misses++
		return nil, false
	}

	entry.accessed = time.Now()
	c.stats.hits++
	return entry.candles, true
}

// Set stores a candle batch with a TTL
func (c *MemoryCache) Set(_ context.Context, key string, candles []model.Candle, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if int64(len(c.entries)) >= c.maxEntries {
		c.evictLRU()
	}

	c.entries[key] = &cacheEntry{
		candles:  candles,
		expires:  time.Now().Add(ttl),
		accessed: time.Now(),
	}
}

// Stats returns cache performance statistics
func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	totalRequests := c.stats.hits + c.stats.misses
	hitRatio := 0.0
	if totalRequests > 0 {
		hitRatio = float64(c.stats.hits) / float64(totalRequests)
	}

	return CacheStats{
		Hits:      c.stats.hits,
		Misses:    c.stats.misses,
		Evictions: c.stats.evictions,
		Entries:   int64(len(c.entries)),
		HitRatio:  hitRatio,
	}
}

// Clear removes all entries from the cache
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.stats = cacheStats{}
}

// Stop shuts down the cleanup goroutine
func (c *MemoryCache) Stop() {
	close(c.stopCh)
}

// evictLRU removes the least recently accessed entry (caller must hold
// the write lock)
func (c *MemoryCache) evictLRU() {
	var oldestKey string
	oldestTime := time.Now()

	for key, entry := range c.entries {
		if entry.accessed.Before(oldestTime) {
			oldestTime = entry.accessed
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.evictions++
	}
}

// cleanup runs periodically to remove expired entries
func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}
}
