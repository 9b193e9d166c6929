// internal/models/source.go
package models

import "strings"

type ReliabilityTier string

const (
	TierHigh   ReliabilityTier = "high"
	TierMedium ReliabilityTier = "medium"
	TierLow    ReliabilityTier = "low"
)

// Valid reports whether the tier is one of the known values.
func (t ReliabilityTier) Valid() bool {
	switch t {
	case TierHigh, TierMedium, TierLow:
		return true
	}
	return false
}

// SourceKind selects the fetcher used to query a source.
type SourceKind string

const (
	KindWebSearch     SourceKind = "web_search"
	KindSearchIndex   SourceKind = "search_index"
	KindKnowledgeBase SourceKind = "knowledge_base"
)

// Source is a registered information provider.
type Source struct {
	Name       string          `json:"name" yaml:"name"`
	BaseURL    string          `json:"baseUrl" yaml:"base_url"`
	Tier       ReliabilityTier `json:"tier" yaml:"tier"`
	Region     string          `json:"region" yaml:"region"`
	Categories []string        `json:"categories" yaml:"categories"`
	Official   bool            `json:"official" yaml:"official"`
	Kind       SourceKind      `json:"kind" yaml:"kind"`
}

// InRegion matches regions case-insensitively.
func (s Source) InRegion(region string) bool {
	return strings.EqualFold(strings.TrimSpace(s.Region), strings.TrimSpace(region))
}

// Supports reports whether the source serves category. An empty category matches.
func (s Source) Supports(category string) bool {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return true
	}
	for _, c := range s.Categories {
		if strings.ToLower(c) == category {
			return true
		}
	}
	return false
}

// KnowledgeEntry is a curated record served by a knowledge_base source.
type KnowledgeEntry struct {
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Title       string   `json:"title" yaml:"title"`
	URL         string   `json:"url" yaml:"url"`
	Snippet     string   `json:"snippet" yaml:"snippet"`
	Category    string   `json:"category" yaml:"category"`
	LastUpdated string   `json:"lastUpdated" yaml:"last_updated"`
}
