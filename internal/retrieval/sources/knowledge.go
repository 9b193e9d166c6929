package sources

import (
	"context"
	"time"

	"tourism-retrieval/internal/common/textutil"
	"tourism-retrieval/internal/models"
)

// KnowledgeProvider returns the curated entries of a knowledge_base source.
type KnowledgeProvider interface {
	Knowledge(source string) []models.KnowledgeEntry
}

// KnowledgeBaseFetcher answers from curated entries: an entry matches when
// any of its keywords is a token of the query.
type KnowledgeBaseFetcher struct {
	provider KnowledgeProvider
}

func NewKnowledgeBaseFetcher(provider KnowledgeProvider) *KnowledgeBaseFetcher {
	return &KnowledgeBaseFetcher{provider: provider}
}

func (f *KnowledgeBaseFetcher) Fetch(ctx context.Context, src models.Source, query models.SearchQuery) ([]models.RawHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := make(map[string]bool)
	for _, tok := range textutil.Tokens(query.Text) {
		tokens[tok] = true
	}

	var hits []models.RawHit
	for _, entry := range f.provider.Knowledge(src.Name) {
		if !matches(entry, tokens) {
			continue
		}
		if query.Category != "" && entry.Category != "" && entry.Category != query.Category {
			continue
		}
		hit := models.RawHit{
			Title:    entry.Title,
			URL:      entry.URL,
			Snippet:  entry.Snippet,
			Category: entry.Category,
		}
		if ts, err := time.Parse("2006-01-02", entry.LastUpdated); err == nil {
			hit.LastUpdated = ts
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func matches(entry models.KnowledgeEntry, tokens map[string]bool) bool {
	for _, kw := range entry.Keywords {
		for _, tok := range textutil.Tokens(kw) {
			if tokens[tok] {
				return true
			}
		}
	}
	return false
}
