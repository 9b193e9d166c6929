package engine

import (
	"context"
	"errors"
	"testing"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/learning"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/catalog"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSource(t *testing.T) {
	e, _ := newTestEngine(t, hitsBySource(map[string][]models.RawHit{
		"Visit MS": {{Title: "Hotel Zagaia", URL: "https://zagaia.example"}},
	}))

	err := e.AddSource(context.Background(), models.Source{
		Name: " Visit MS ", BaseURL: "https://visitms.com.br", Tier: models.TierMedium,
		Region: "MS", Categories: []string{"hotel"},
	})
	require.NoError(t, err)

	srcs := e.Sources("ms", "hotel")
	require.Len(t, srcs, 1)
	assert.Equal(t, "Visit MS", srcs[0].Name)
	assert.Equal(t, models.KindWebSearch, srcs[0].Kind)

	results, err := e.Search(context.Background(), hotelQuery)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Visit MS", results[0].Source)
}

func TestAddSource_Invalid(t *testing.T) {
	e, _ := newTestEngine(t, hitsBySource(nil))

	tests := []struct {
		name string
		src  models.Source
	}{
		{"missing name", models.Source{BaseURL: "https://a.example", Tier: models.TierHigh, Region: "MS"}},
		{"missing region", models.Source{Name: "a", BaseURL: "https://a.example", Tier: models.TierHigh}},
		{"bad tier", models.Source{Name: "a", BaseURL: "https://a.example", Tier: "gold", Region: "MS"}},
		{"bad url", models.Source{Name: "a", BaseURL: "ftp://a.example", Tier: models.TierLow, Region: "MS"}},
		{"bad kind", models.Source{Name: "a", BaseURL: "https://a.example", Tier: models.TierLow, Region: "MS", Kind: "rss"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.AddSource(context.Background(), tt.src)
			assert.Equal(t, apperrors.ErrCodeInvalidSource, apperrors.CodeOf(err))
		})
	}
	assert.Empty(t, e.Sources("", ""))
}

func TestAddSource_PersistsToStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := logger.NewTestLogger(t)
	e := New(createTestConfig(), Deps{
		Catalog:     catalog.New(log),
		SourceStore: catalog.NewPostgresSourceStore(db),
		Logger:      log,
	})

	mock.ExpectExec("INSERT INTO tourism_sources").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO tourism_sources").WillReturnError(errors.New("connection reset"))

	require.NoError(t, e.AddSource(context.Background(), fundtur))
	require.NoError(t, e.AddSource(context.Background(), governo), "store failures are logged only")
	assert.Len(t, e.Sources("MS", ""), 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearCacheAndStats(t *testing.T) {
	e, f := newTestEngine(t, hitsBySource(map[string][]models.RawHit{
		"Fundtur MS": {{Title: "Hotel Zagaia", URL: "https://zagaia.example"}},
	}), fundtur, governo, models.Source{Name: "Fundtur MT", BaseURL: "https://mt.example", Tier: models.TierHigh, Region: "mt"})

	stats := e.Stats(context.Background())
	assert.Equal(t, 3, stats.TotalSources)
	assert.Equal(t, []string{"MS", "MT"}, stats.Regions)
	assert.Zero(t, stats.CacheSize)
	assert.Zero(t, stats.AverageConfidence)

	_, err := e.Search(context.Background(), hotelQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Stats(context.Background()).CacheSize)

	require.NoError(t, e.ClearCache(context.Background()))
	assert.Zero(t, e.Stats(context.Background()).CacheSize)

	calls := f.Calls()
	_, err = e.Search(context.Background(), hotelQuery)
	require.NoError(t, err)
	assert.Greater(t, f.Calls(), calls, "cleared entries are recomputed")
}

func TestFeedbackSurfaces(t *testing.T) {
	log := logger.NewTestLogger(t)
	svc := learning.NewService(learning.Options{Logger: log})
	e := New(createTestConfig(), Deps{Learning: svc, Logger: log})

	for i := 0; i < 5; i++ {
		out, err := e.SubmitFeedback(context.Background(), Feedback{
			Question: "restaurantes em Bonito", Answer: "...", Confidence: 0.4,
			Feedback: models.FeedbackNegative, Metadata: models.InteractionMetadata{Category: "restaurant"},
		})
		require.NoError(t, err)
		assert.True(t, out.GapFlagged)
	}

	gaps := e.PriorityKnowledgeGaps()
	require.Len(t, gaps, 1)
	assert.Equal(t, 5, gaps[0].Frequency)

	insights := e.LearningInsights()
	require.Len(t, insights, 1)
	assert.Equal(t, "restaurant", insights[0].Pattern)

	stats := e.LearningStats()
	assert.Equal(t, 5, stats.TotalInteractions)
	assert.Equal(t, 5, stats.NegativeFeedback)

	g := e.Guidance("onde comer", "")
	assert.NotEmpty(t, g.Warnings)
	assert.NotEmpty(t, g.SuggestedSources)

	assert.Zero(t, e.CleanupLearningData(context.Background()))

	_, err := e.SubmitFeedback(context.Background(), Feedback{Question: "x", Feedback: "great"})
	assert.Equal(t, apperrors.ErrCodeInvalidFeedback, apperrors.CodeOf(err))
}
