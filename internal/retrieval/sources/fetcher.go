// Package sources implements the per-source retrieval calls issued by the
// dispatcher. Each source kind has its own Fetcher.
package sources

import (
	"context"
	"fmt"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/models"
)

// Fetcher retrieves raw hits for one source. Implementations must honour ctx
// cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, src models.Source, query models.SearchQuery) ([]models.RawHit, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, src models.Source, query models.SearchQuery) ([]models.RawHit, error)

func (f FetcherFunc) Fetch(ctx context.Context, src models.Source, query models.SearchQuery) ([]models.RawHit, error) {
	return f(ctx, src, query)
}

// Router picks a Fetcher by source kind.
type Router struct {
	fetchers map[models.SourceKind]Fetcher
}

func NewRouter() *Router {
	return &Router{fetchers: make(map[models.SourceKind]Fetcher)}
}

// Register binds kind to f, replacing any previous binding.
func (r *Router) Register(kind models.SourceKind, f Fetcher) *Router {
	r.fetchers[kind] = f
	return r
}

func (r *Router) Fetch(ctx context.Context, src models.Source, query models.SearchQuery) ([]models.RawHit, error) {
	kind := src.Kind
	if kind == "" {
		kind = models.KindWebSearch
	}
	f, ok := r.fetchers[kind]
	if !ok {
		return nil, apperrors.NewSourceUnavailableError(src.Name, fmt.Errorf("no fetcher for source kind %q", kind))
	}
	return f.Fetch(ctx, src, query)
}
