// internal/models/search.go
package models

import "time"

type SearchQuery struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
	Region   string `json:"region,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// RawHit is a record as returned by a source, before normalization.
type RawHit struct {
	Title       string
	URL         string
	Snippet     string
	Category    string
	LastUpdated time.Time
}

type SearchResult struct {
	Title           string          `json:"title"`
	URL             string          `json:"url"`
	Snippet         string          `json:"snippet"`
	Source          string          `json:"source"`
	Reliability     ReliabilityTier `json:"reliability"`
	Category        string          `json:"category"`
	LastUpdated     time.Time       `json:"lastUpdated"`
	Verified        bool            `json:"verified"`
	Confidence      float64         `json:"confidence"`
	CrossReferences int             `json:"crossReferences"`
}

type EngineStats struct {
	TotalSources      int      `json:"totalSources"`
	Regions           []string `json:"regions"`
	CacheSize         int      `json:"cacheSize"`
	AverageConfidence float64  `json:"averageConfidence"`
}
