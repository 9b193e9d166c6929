package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	apperrors "tourism-retrieval/internal/common/errors"
	commonhttp "tourism-retrieval/internal/common/http"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/models"
)

var whitespace = regexp.MustCompile(`\s+`)

type WebSearchConfig struct {
	BaseURL    string
	APIKey     string
	EngineID   string
	MaxResults int
}

// WebSearchFetcher queries a custom-search style JSON API, restricted to the
// source's host.
type WebSearchFetcher struct {
	config WebSearchConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewWebSearchFetcher(cfg WebSearchConfig, client *commonhttp.Client, log logger.Logger) *WebSearchFetcher {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &WebSearchFetcher{
		config: cfg,
		client: client,
		logger: logger.Component(log, "web-search"),
	}
}

type webSearchResponse struct {
	Items []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Mime    string `json:"mime"`
	} `json:"items"`
}

func (f *WebSearchFetcher) Fetch(ctx context.Context, src models.Source, query models.SearchQuery) ([]models.RawHit, error) {
	searchURL, err := f.buildSearchURL(src, query)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(src.Name, err)
	}

	var resp webSearchResponse
	if err := f.client.GetJSON(ctx, searchURL, &resp); err != nil {
		return nil, apperrors.NewSourceUnavailableError(src.Name, err)
	}

	seen := make(map[string]bool, len(resp.Items))
	hits := make([]models.RawHit, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Mime != "" && !strings.Contains(item.Mime, "html") {
			continue
		}
		if seen[item.Link] {
			continue
		}
		seen[item.Link] = true

		hits = append(hits, models.RawHit{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}

	f.logger.Debug("web search completed", map[string]interface{}{
		"source":      src.Name,
		"resultCount": len(hits),
	})
	return hits, nil
}

func (f *WebSearchFetcher) buildSearchURL(src models.Source, query models.SearchQuery) (string, error) {
	base, err := url.Parse(f.config.BaseURL)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("invalid web search base url %q", f.config.BaseURL)
	}

	params := url.Values{}
	params.Set("key", f.config.APIKey)
	params.Set("cx", f.config.EngineID)
	params.Set("q", whitespace.ReplaceAllString(strings.TrimSpace(query.Text), " "))
	params.Set("num", fmt.Sprintf("%d", f.config.MaxResults))
	if site := siteOf(src.BaseURL); site != "" {
		params.Set("siteSearch", site)
		params.Set("siteSearchFilter", "i")
	}
	base.RawQuery = params.Encode()
	return base.String(), nil
}

func siteOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
