package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/sources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var query = models.SearchQuery{Text: "hotel em Bonito", Category: "hotel", Region: "MS"}

func src(name string) models.Source {
	return models.Source{Name: name, Region: "MS", Tier: models.TierHigh}
}

func newDispatcher(t *testing.T, f sources.FetcherFunc, timeout time.Duration) *Dispatcher {
	return New(f, timeout, nil, logger.NewTestLogger(t))
}

func TestDispatch_IsolatesFailures(t *testing.T) {
	d := newDispatcher(t, func(ctx context.Context, s models.Source, q models.SearchQuery) ([]models.RawHit, error) {
		switch s.Name {
		case "broken":
			return nil, errors.New("connection refused")
		case "panics":
			panic("nil map")
		default:
			return []models.RawHit{{Title: s.Name + " hit", URL: "https://" + s.Name}}, nil
		}
	}, time.Second)

	results, err := d.Dispatch(context.Background(), query, []models.Source{src("a"), src("broken"), src("panics"), src("b")})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "a", results[0].Source.Name, "results keep source order")
	assert.Len(t, results[0].Hits, 1)
	assert.Equal(t, apperrors.ErrCodeSourceUnavailable, apperrors.CodeOf(results[1].Err))
	assert.Error(t, results[2].Err)
	assert.Empty(t, results[2].Hits)
	assert.Equal(t, "b", results[3].Source.Name)
	assert.Len(t, results[3].Hits, 1)
}

func TestDispatch_RunsConcurrently(t *testing.T) {
	var inFlight, peak int32
	d := newDispatcher(t, func(ctx context.Context, s models.Source, q models.SearchQuery) ([]models.RawHit, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil, nil
	}, time.Second)

	_, err := d.Dispatch(context.Background(), query, []models.Source{src("a"), src("b"), src("c")})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&peak))
}

func TestDispatch_PerSourceTimeout(t *testing.T) {
	d := newDispatcher(t, func(ctx context.Context, s models.Source, q models.SearchQuery) ([]models.RawHit, error) {
		if s.Name == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []models.RawHit{{Title: "ok", URL: "https://ok"}}, nil
	}, 20*time.Millisecond)

	start := time.Now()
	results, err := d.Dispatch(context.Background(), query, []models.Source{src("slow"), src("fast")})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, apperrors.ErrCodeSourceTimeout, apperrors.CodeOf(results[0].Err))
	assert.Len(t, results[1].Hits, 1)
}

func TestDispatch_AbandonsFetcherIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	d := newDispatcher(t, func(ctx context.Context, s models.Source, q models.SearchQuery) ([]models.RawHit, error) {
		<-release
		return []models.RawHit{{Title: "late", URL: "https://late"}}, nil
	}, 20*time.Millisecond)

	results, err := d.Dispatch(context.Background(), query, []models.Source{src("stubborn")})
	require.NoError(t, err)
	assert.Equal(t, apperrors.ErrCodeSourceTimeout, apperrors.CodeOf(results[0].Err))
	assert.Empty(t, results[0].Hits)
}

func TestDispatch_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 2)

	d := newDispatcher(t, func(ctx context.Context, s models.Source, q models.SearchQuery) ([]models.RawHit, error) {
		if s.Name == "quick" {
			return []models.RawHit{{Title: "partial", URL: "https://partial"}}, nil
		}
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}, 5*time.Second)

	go func() {
		<-started
		cancel()
	}()

	results, err := d.Dispatch(ctx, query, []models.Source{src("quick"), src("waits")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results, "partial results are discarded")
}

func TestDispatch_NoSources(t *testing.T) {
	d := newDispatcher(t, func(ctx context.Context, s models.Source, q models.SearchQuery) ([]models.RawHit, error) {
		t.Fatal("fetcher must not be called")
		return nil, nil
	}, time.Second)

	results, err := d.Dispatch(context.Background(), query, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
