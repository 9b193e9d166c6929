// Package normalize maps raw source hits onto canonical search results.
package normalize

import (
	"html"
	"strings"
	"time"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/common/metrics"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/dispatch"

	"github.com/microcosm-cc/bluemonday"
)

type Normalizer struct {
	policy     *bluemonday.Policy
	maxSnippet int
	now        func() time.Time
	logger     logger.Logger
}

func New(maxSnippet int, log logger.Logger) *Normalizer {
	return &Normalizer{
		policy:     bluemonday.StrictPolicy(),
		maxSnippet: maxSnippet,
		now:        time.Now,
		logger:     logger.Component(log, "normalizer"),
	}
}

// Normalize flattens the dispatcher output in source order. Failed sources
// contribute nothing and malformed hits are dropped. The second return value
// is the number of dropped hits.
func (n *Normalizer) Normalize(query models.SearchQuery, batches []dispatch.SourceHits) ([]models.SearchResult, int) {
	results := make([]models.SearchResult, 0)
	dropped := 0
	for _, batch := range batches {
		if batch.Err != nil {
			continue
		}
		for _, hit := range batch.Hits {
			r, err := n.NormalizeHit(query, batch.Source, hit)
			if err != nil {
				dropped++
				metrics.MalformedHits.WithLabelValues(batch.Source.Name).Inc()
				n.logger.Debug("dropping malformed hit", map[string]interface{}{
					"source": batch.Source.Name,
					"error":  err.Error(),
				})
				continue
			}
			results = append(results, r)
		}
	}
	return results, dropped
}

// NormalizeHit builds one SearchResult. Hits without a title or locator are
// rejected with a MALFORMED_HIT error.
func (n *Normalizer) NormalizeHit(query models.SearchQuery, src models.Source, hit models.RawHit) (models.SearchResult, error) {
	title := n.clean(hit.Title)
	locator := strings.TrimSpace(hit.URL)

	switch {
	case title == "" && locator == "":
		return models.SearchResult{}, apperrors.NewMalformedHitError(src.Name, "title,url")
	case title == "":
		return models.SearchResult{}, apperrors.NewMalformedHitError(src.Name, "title")
	case locator == "":
		return models.SearchResult{}, apperrors.NewMalformedHitError(src.Name, "url")
	}

	lastUpdated := hit.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = n.now().UTC()
	}

	return models.SearchResult{
		Title:       title,
		URL:         locator,
		Snippet:     truncate(n.clean(hit.Snippet), n.maxSnippet),
		Source:      src.Name,
		Reliability: src.Tier,
		Category:    categoryFor(hit, query),
		LastUpdated: lastUpdated,
		Verified:    src.Official,
	}, nil
}

// categoryFor prefers the source's own label, then the caller's category,
// then the intent inferred from the query text.
func categoryFor(hit models.RawHit, query models.SearchQuery) string {
	if c := strings.ToLower(strings.TrimSpace(hit.Category)); c != "" {
		return c
	}
	if c := strings.ToLower(strings.TrimSpace(query.Category)); c != "" {
		return c
	}
	return models.InferCategory(query.Text)
}

// clean strips markup and returns plain, whitespace-collapsed text.
func (n *Normalizer) clean(s string) string {
	plain := html.UnescapeString(n.policy.Sanitize(s))
	return strings.Join(strings.Fields(plain), " ")
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
