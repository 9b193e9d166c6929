// Package engine wires the catalog, cache, dispatcher, normalizer, verifier,
// ranker and learning service into the search pipeline.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tourism-retrieval/internal/common/config"
	"tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/common/metrics"
	"tourism-retrieval/internal/common/observability"
	"tourism-retrieval/internal/learning"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/cache"
	"tourism-retrieval/internal/retrieval/catalog"
	"tourism-retrieval/internal/retrieval/dispatch"
	"tourism-retrieval/internal/retrieval/normalize"
	"tourism-retrieval/internal/retrieval/rank"
	"tourism-retrieval/internal/retrieval/sources"
	"tourism-retrieval/internal/retrieval/verify"

	"go.opentelemetry.io/otel/attribute"
)

const (
	FallbackTitle = "general guidance"

	defaultSourceTimeout = 4 * time.Second
	fallbackSourceName   = "regional tourism office"
)

type Config struct {
	DefaultRegion      string
	DefaultLimit       int
	MaxLimit           int
	SourceTimeout      time.Duration
	FallbackConfidence float64
	FallbackURL        string
	SnippetMaxLength   int
}

// ConfigFrom converts the search section of the service configuration.
func ConfigFrom(cfg config.SearchConfig) Config {
	return Config{
		DefaultRegion:      cfg.DefaultRegion,
		DefaultLimit:       cfg.DefaultLimit,
		MaxLimit:           cfg.MaxLimit,
		SourceTimeout:      config.GetDuration(cfg.SourceTimeout),
		FallbackConfidence: cfg.FallbackConfidence,
		FallbackURL:        cfg.FallbackURL,
		SnippetMaxLength:   cfg.SnippetMaxLength,
	}
}

// SourceStore persists administratively added sources.
type SourceStore interface {
	Save(ctx context.Context, src models.Source) error
}

type Deps struct {
	Catalog *catalog.Catalog
	Cache   cache.Cache
	Fetcher sources.Fetcher
	// Learning defaults to an in-memory service.
	Learning *learning.Service
	// SourceStore is optional.
	SourceStore   SourceStore
	Observability *observability.Observability
	Logger        logger.Logger
}

// Engine is safe for concurrent use. It owns the catalog, cache,
// reliability table and learning state shared by all searches.
type Engine struct {
	cfg         Config
	catalog     *catalog.Catalog
	cache       cache.Cache
	dispatcher  *dispatch.Dispatcher
	normalizer  *normalize.Normalizer
	verifier    *verify.Verifier
	reliability *rank.ReliabilityTable
	ranker      *rank.Ranker
	learning    *learning.Service
	sourceStore SourceStore
	obs         *observability.Observability
	now         func() time.Time
	logger      logger.Logger

	statsMu   sync.Mutex
	confSum   float64
	confCount int
}

func New(cfg Config, deps Deps) *Engine {
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceTimeout
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if cfg.FallbackConfidence == 0 {
		cfg.FallbackConfidence = 75
	}

	cat := deps.Catalog
	if cat == nil {
		cat = catalog.New(deps.Logger)
	}
	c := deps.Cache
	if c == nil {
		c = cache.NewMemoryCache()
	}
	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = sources.NewRouter()
	}
	svc := deps.Learning
	if svc == nil {
		svc = learning.NewService(learning.Options{Logger: deps.Logger})
	}

	reliability := rank.NewReliabilityTable()
	return &Engine{
		cfg:         cfg,
		catalog:     cat,
		cache:       c,
		dispatcher:  dispatch.New(fetcher, cfg.SourceTimeout, deps.Observability, deps.Logger),
		normalizer:  normalize.New(cfg.SnippetMaxLength, deps.Logger),
		verifier:    verify.New(reliability),
		reliability: reliability,
		ranker:      rank.NewRanker(reliability),
		learning:    svc,
		sourceStore: deps.SourceStore,
		obs:         deps.Observability,
		now:         time.Now,
		logger:      logger.Component(deps.Logger, "engine"),
	}
}

// Search answers query with a ranked result list. It never fails because of
// its sources: when nothing usable comes back the answer is a single
// fallback result. Errors are returned only for an empty query text and for
// caller cancellation, in which case nothing is cached.
func (e *Engine) Search(ctx context.Context, query models.SearchQuery) ([]models.SearchResult, error) {
	start := time.Now()
	query, err := e.prepare(query)
	if err != nil {
		e.observe("invalid", start)
		return nil, err
	}

	ctx, end := e.obs.StartSpan(ctx, "search",
		attribute.String("region", query.Region),
		attribute.String("category", query.Category))
	defer end()

	if cached := e.cache.Get(ctx, query.Region, query.Text, query.Category); len(cached) > 0 {
		e.observe("cache_hit", start)
		return e.truncate(ctx, query, cached), nil
	}

	srcs := e.catalog.SourcesFor(query.Region, query.Category)
	stage := time.Now()
	batches, err := e.dispatcher.Dispatch(ctx, query, srcs)
	e.obs.RecordStage(ctx, "dispatch", time.Since(stage))
	if err != nil {
		e.observe("cancelled", start)
		return nil, errors.NewSearchCancelledError(err)
	}

	results, dropped := e.normalizer.Normalize(query, batches)
	if len(results) == 0 {
		e.logger.Warn("no usable results, answering with fallback", map[string]interface{}{
			"errorCode": string(errors.ErrCodeEmptyResultSet),
			"region":    query.Region,
			"sources":   len(srcs),
			"dropped":   dropped,
		})
		e.observe("fallback", start)
		return []models.SearchResult{e.fallback(query)}, nil
	}

	guidance := e.learning.ApplyLearning(query.Text, query.Category)
	stage = time.Now()
	scored := e.verifier.Score(results, guidance.ConfidenceBoost)
	e.obs.RecordStage(ctx, "verify", time.Since(stage))

	if err := ctx.Err(); err != nil {
		e.observe("cancelled", start)
		return nil, errors.NewSearchCancelledError(err)
	}

	ranked := e.ranker.Rank(scored)
	e.cache.Put(ctx, query.Region, query.Text, query.Category, ranked)
	e.recordConfidence(ranked)

	e.logger.Debug("search completed", map[string]interface{}{
		"region":   query.Region,
		"category": query.Category,
		"sources":  len(srcs),
		"results":  len(ranked),
		"dropped":  dropped,
		"boost":    guidance.ConfidenceBoost,
	})
	e.observe("ok", start)
	return e.truncate(ctx, query, ranked), nil
}

func (e *Engine) prepare(query models.SearchQuery) (models.SearchQuery, error) {
	query.Text = strings.TrimSpace(query.Text)
	if query.Text == "" {
		return query, errors.NewInvalidQueryError("query text is required")
	}
	query.Category = strings.ToLower(strings.TrimSpace(query.Category))
	query.Region = strings.ToUpper(strings.TrimSpace(query.Region))
	if query.Region == "" {
		query.Region = strings.ToUpper(e.cfg.DefaultRegion)
	}
	switch {
	case query.Limit <= 0:
		query.Limit = e.cfg.DefaultLimit
	case query.Limit > e.cfg.MaxLimit:
		query.Limit = e.cfg.MaxLimit
	}
	return query, nil
}

func (e *Engine) truncate(ctx context.Context, query models.SearchQuery, results []models.SearchResult) []models.SearchResult {
	n := len(results)
	if n > query.Limit {
		n = query.Limit
	}
	out := append([]models.SearchResult(nil), results[:n]...)
	e.obs.RecordResults(ctx, query.Region, len(out))
	return out
}

// fallback points the caller at the region's most authoritative source.
func (e *Engine) fallback(query models.SearchQuery) models.SearchResult {
	category := query.Category
	if category == "" {
		category = models.InferCategory(query.Text)
	}
	r := models.SearchResult{
		Title:       FallbackTitle,
		URL:         e.cfg.FallbackURL,
		Source:      fallbackSourceName,
		Reliability: models.TierHigh,
		Category:    category,
		LastUpdated: e.now().UTC(),
		Verified:    true,
		Confidence:  verify.Clamp(e.cfg.FallbackConfidence),
	}
	if src, ok := e.catalog.DefaultSource(query.Region); ok {
		r.URL = src.BaseURL
		r.Source = src.Name
		r.Reliability = src.Tier
	}
	r.Snippet = fmt.Sprintf("No source could answer right now. See %s for official tourism information about %s.", r.Source, query.Region)
	return r
}

func (e *Engine) recordConfidence(results []models.SearchResult) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	for _, r := range results {
		e.confSum += r.Confidence
		e.confCount++
	}
}

func (e *Engine) observe(outcome string, start time.Time) {
	metrics.SearchRequests.WithLabelValues(outcome).Inc()
	metrics.SearchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
