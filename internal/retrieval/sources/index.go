package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// IndexFetcher serves search_index sources from an Elasticsearch index of
// tourism content. Documents carry source, region, category, title, url,
// snippet and last_updated fields.
type IndexFetcher struct {
	client *elasticsearch.Client
	index  string
	size   int
	logger logger.Logger
}

func NewIndexFetcher(client *elasticsearch.Client, index string, size int, log logger.Logger) *IndexFetcher {
	if size <= 0 {
		size = 10
	}
	return &IndexFetcher{
		client: client,
		index:  index,
		size:   size,
		logger: logger.Component(log, "index-search"),
	}
}

type indexDocument struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	Category    string `json:"category"`
	LastUpdated string `json:"last_updated"`
}

type indexResponse struct {
	Hits struct {
		Hits []struct {
			Source indexDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// BuildIndexQuery returns the search body for query against src.
func BuildIndexQuery(src models.Source, query models.SearchQuery) map[string]interface{} {
	filters := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"source": src.Name}},
		map[string]interface{}{"term": map[string]interface{}{"region": src.Region}},
	}
	if query.Category != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"category": query.Category},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  query.Text,
							"fields": []string{"title^3", "snippet^2", "keywords"},
							"type":   "best_fields",
						},
					},
				},
				"filter": filters,
			},
		},
	}
}

func (f *IndexFetcher) Fetch(ctx context.Context, src models.Source, query models.SearchQuery) ([]models.RawHit, error) {
	body, err := json.Marshal(BuildIndexQuery(src, query))
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(src.Name, err)
	}

	size := f.size
	req := esapi.SearchRequest{
		Index: []string{f.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, f.client)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(src.Name, apperrors.NewSearchQueryFailedError(f.index, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewSourceUnavailableError(src.Name,
			apperrors.NewSearchQueryFailedError(f.index, fmt.Errorf("status %s", res.Status())))
	}

	var parsed indexResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSourceUnavailableError(src.Name, fmt.Errorf("decode search response: %w", err))
	}

	hits := make([]models.RawHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		doc := h.Source
		hit := models.RawHit{
			Title:    doc.Title,
			URL:      doc.URL,
			Snippet:  doc.Snippet,
			Category: doc.Category,
		}
		if ts, err := time.Parse(time.RFC3339, doc.LastUpdated); err == nil {
			hit.LastUpdated = ts
		}
		hits = append(hits, hit)
	}

	f.logger.Debug("index search completed", map[string]interface{}{
		"source":      src.Name,
		"index":       f.index,
		"resultCount": len(hits),
	})
	return hits, nil
}
