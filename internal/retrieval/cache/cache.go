// Package cache memoizes ranked result lists per (region, query, category).
package cache

import (
	"context"
	"strings"
	"sync"

	"tourism-retrieval/internal/common/metrics"
	"tourism-retrieval/internal/common/textutil"
	"tourism-retrieval/internal/models"
)

const allCategories = "all"

// Cache is consulted before dispatch and written after ranking. A miss and a
// cached empty list look the same to callers.
type Cache interface {
	Get(ctx context.Context, region, query, category string) []models.SearchResult
	// Put replaces any previous entry for the key wholesale.
	Put(ctx context.Context, region, query, category string, results []models.SearchResult)
	Clear(ctx context.Context) error
	Size(ctx context.Context) int
}

// Key canonicalizes the cache key. Queries are folded, stripped of
// punctuation and whitespace-collapsed so that "Hotel em  Bonito!" and
// "hotel em bonito" share an entry.
func Key(region, query, category string) string {
	cat := textutil.Normalize(category)
	if cat == "" {
		cat = allCategories
	}
	return strings.ToUpper(strings.TrimSpace(region)) + "|" + textutil.Normalize(query) + "|" + cat
}

func clone(results []models.SearchResult) []models.SearchResult {
	if len(results) == 0 {
		return []models.SearchResult{}
	}
	return append([]models.SearchResult(nil), results...)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]models.SearchResult
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]models.SearchResult)}
}

func (c *MemoryCache) Get(_ context.Context, region, query, category string) []models.SearchResult {
	c.mu.RLock()
	results, ok := c.entries[Key(region, query, category)]
	c.mu.RUnlock()

	if !ok {
		metrics.CacheOperations.WithLabelValues("memory", "miss").Inc()
		return []models.SearchResult{}
	}
	metrics.CacheOperations.WithLabelValues("memory", "hit").Inc()
	return clone(results)
}

func (c *MemoryCache) Put(_ context.Context, region, query, category string, results []models.SearchResult) {
	stored := clone(results)
	c.mu.Lock()
	c.entries[Key(region, query, category)] = stored
	c.mu.Unlock()
	metrics.CacheOperations.WithLabelValues("memory", "put").Inc()
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string][]models.SearchResult)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Size(_ context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
