// Package dispatch fans a query out to every matching source concurrently.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/common/metrics"
	"tourism-retrieval/internal/common/observability"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/sources"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// SourceHits is what one source produced. Err is set when the source failed,
// in which case Hits is empty.
type SourceHits struct {
	Source models.Source
	Hits   []models.RawHit
	Err    error
}

type Dispatcher struct {
	fetcher sources.Fetcher
	timeout time.Duration
	obs     *observability.Observability
	logger  logger.Logger
}

func New(fetcher sources.Fetcher, timeout time.Duration, obs *observability.Observability, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		fetcher: fetcher,
		timeout: timeout,
		obs:     obs,
		logger:  logger.Component(log, "dispatcher"),
	}
}

// Dispatch calls every source in srcs concurrently and waits for all of them.
// A failing or slow source contributes nothing; it never fails the batch.
// Results come back in the order of srcs. The only error is the caller's
// ctx error, in which case all partial results are discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, query models.SearchQuery, srcs []models.Source) ([]SourceHits, error) {
	ctx, end := d.obs.StartSpan(ctx, "search.dispatch",
		attribute.String("region", query.Region),
		attribute.Int("sources", len(srcs)))
	defer end()

	results := make([]SourceHits, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			results[i] = d.callSource(gctx, src, query)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	d.logger.Debug("dispatch finished", map[string]interface{}{
		"sources": len(srcs),
		"failed":  failed,
	})
	return results, nil
}

func (d *Dispatcher) callSource(ctx context.Context, src models.Source, query models.SearchQuery) SourceHits {
	ctx, end := d.obs.StartSpan(ctx, "search.source", attribute.String("source", src.Name))
	defer end()

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	hits, err := d.fetch(callCtx, src, query)
	metrics.SourceLatency.WithLabelValues(src.Name).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.SourceCalls.WithLabelValues(src.Name, "ok").Inc()
		return SourceHits{Source: src, Hits: hits}
	}

	status := "error"
	// a timeout is the source's own deadline expiring, not the caller giving up
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		status = "timeout"
		err = apperrors.NewSourceTimeoutError(src.Name, d.timeout)
	} else if apperrors.CodeOf(err) != apperrors.ErrCodeSourceUnavailable {
		err = apperrors.NewSourceUnavailableError(src.Name, err)
	}
	metrics.SourceCalls.WithLabelValues(src.Name, status).Inc()

	if ctx.Err() == nil {
		d.logger.Warn("source failed, omitting from results", map[string]interface{}{
			"source":    src.Name,
			"errorCode": string(apperrors.CodeOf(err)),
			"error":     err.Error(),
		})
	}
	return SourceHits{Source: src, Err: err}
}

type outcome struct {
	hits []models.RawHit
	err  error
}

// fetch runs the fetcher in its own goroutine so that a fetcher ignoring ctx
// cannot hold the batch past its deadline. Panics become errors.
func (d *Dispatcher) fetch(ctx context.Context, src models.Source, query models.SearchQuery) ([]models.RawHit, error) {
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("fetcher panic: %v", r)}
			}
		}()
		hits, err := d.fetcher.Fetch(ctx, src, query)
		ch <- outcome{hits: hits, err: err}
	}()

	select {
	case o := <-ch:
		if o.err == nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return o.hits, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
