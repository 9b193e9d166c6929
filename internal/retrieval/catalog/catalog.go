// Package catalog is the registry of information sources the engine queries.
package catalog

import (
	"sort"
	"strings"
	"sync"

	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/models"
)

// Catalog holds registered sources in registration order. Duplicate
// registrations (same name and region) are kept and both are queried.
type Catalog struct {
	mu        sync.RWMutex
	sources   []models.Source
	defaults  map[string]string
	knowledge map[string][]models.KnowledgeEntry
	logger    logger.Logger
}

func New(log logger.Logger) *Catalog {
	return &Catalog{
		defaults:  make(map[string]string),
		knowledge: make(map[string][]models.KnowledgeEntry),
		logger:    logger.Component(log, "catalog"),
	}
}

func regionKey(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

// AddSource appends src to the registry.
func (c *Catalog) AddSource(src models.Source) {
	if src.Kind == "" {
		src.Kind = models.KindWebSearch
	}
	src.Categories = append([]string(nil), src.Categories...)

	c.mu.Lock()
	c.sources = append(c.sources, src)
	total := len(c.sources)
	c.mu.Unlock()

	c.logger.Debug("source registered", map[string]interface{}{
		"source": src.Name,
		"region": src.Region,
		"tier":   string(src.Tier),
		"total":  total,
	})
}

// SourcesFor returns the sources of region that serve category, or every
// source of the region when category is empty.
func (c *Catalog) SourcesFor(region, category string) []models.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Source, 0)
	for _, s := range c.sources {
		if s.InRegion(region) && s.Supports(category) {
			out = append(out, s)
		}
	}
	return out
}

// All returns a copy of every registered source.
func (c *Catalog) All() []models.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Source(nil), c.sources...)
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sources)
}

// Regions returns the distinct regions with at least one source, sorted.
func (c *Catalog) Regions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	regions := make([]string, 0)
	for _, s := range c.sources {
		key := regionKey(s.Region)
		if !seen[key] {
			seen[key] = true
			regions = append(regions, key)
		}
	}
	sort.Strings(regions)
	return regions
}

// SetDefaultSource names the most authoritative source of region.
func (c *Catalog) SetDefaultSource(region, name string) {
	c.mu.Lock()
	c.defaults[regionKey(region)] = name
	c.mu.Unlock()
}

// DefaultSource resolves the region's authoritative source: the configured
// default, else the first official high-tier source of the region.
func (c *Catalog) DefaultSource(region string) (models.Source, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if name, ok := c.defaults[regionKey(region)]; ok {
		for _, s := range c.sources {
			if s.Name == name && s.InRegion(region) {
				return s, true
			}
		}
	}
	for _, s := range c.sources {
		if s.InRegion(region) && s.Official && s.Tier == models.TierHigh {
			return s, true
		}
	}
	return models.Source{}, false
}

// AddKnowledge attaches curated entries to a knowledge_base source.
func (c *Catalog) AddKnowledge(source string, entries ...models.KnowledgeEntry) {
	c.mu.Lock()
	c.knowledge[source] = append(c.knowledge[source], entries...)
	c.mu.Unlock()
}

// Knowledge returns the curated entries of source.
func (c *Catalog) Knowledge(source string) []models.KnowledgeEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.KnowledgeEntry(nil), c.knowledge[source]...)
}
