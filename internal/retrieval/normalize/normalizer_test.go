package normalize

import (
	"errors"
	"testing"
	"time"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/dispatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	official = models.Source{Name: "Fundtur MS", Tier: models.TierHigh, Region: "MS", Official: true}
	blog     = models.Source{Name: "Blog Bonito", Tier: models.TierLow, Region: "MS"}
	fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
)

func newTestNormalizer(t *testing.T, maxSnippet int) *Normalizer {
	n := New(maxSnippet, logger.NewTestLogger(t))
	n.now = func() time.Time { return fixedNow }
	return n
}

func TestNormalizeHit_StampsSourceFields(t *testing.T) {
	n := newTestNormalizer(t, 300)

	r, err := n.NormalizeHit(models.SearchQuery{Text: "hotel em Bonito"}, official, models.RawHit{
		Title:   "<b>Hotel</b> Zagaia &amp; Resort",
		URL:     " https://zagaia.example ",
		Snippet: "<p>Pousada Olho d'Água</p><script>alert(1)</script>",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hotel Zagaia & Resort", r.Title)
	assert.Equal(t, "https://zagaia.example", r.URL)
	assert.Equal(t, "Pousada Olho d'Água", r.Snippet)
	assert.Equal(t, "Fundtur MS", r.Source)
	assert.Equal(t, models.TierHigh, r.Reliability)
	assert.True(t, r.Verified)
	assert.Equal(t, "hotel", r.Category)
	assert.Equal(t, fixedNow, r.LastUpdated)
	assert.Zero(t, r.Confidence)
}

func TestNormalizeHit_Category(t *testing.T) {
	n := newTestNormalizer(t, 0)

	tests := []struct {
		name  string
		hit   models.RawHit
		query models.SearchQuery
		want  string
	}{
		{"hit label wins", models.RawHit{Category: "Event"}, models.SearchQuery{Text: "hotel", Category: "hotel"}, "event"},
		{"query category next", models.RawHit{}, models.SearchQuery{Text: "gruta", Category: "Hotel"}, "hotel"},
		{"inferred from intent", models.RawHit{}, models.SearchQuery{Text: "onde comer em Bonito"}, "restaurant"},
		{"general otherwise", models.RawHit{}, models.SearchQuery{Text: "Bonito"}, "general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.hit.Title = "t"
			tt.hit.URL = "https://u"
			r, err := n.NormalizeHit(tt.query, blog, tt.hit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Category)
			assert.False(t, r.Verified)
		})
	}
}

func TestNormalizeHit_Malformed(t *testing.T) {
	n := newTestNormalizer(t, 0)

	for _, hit := range []models.RawHit{
		{URL: "https://no-title"},
		{Title: "<i></i>", URL: "https://markup-only"},
		{Title: "no url"},
		{},
	} {
		_, err := n.NormalizeHit(models.SearchQuery{}, blog, hit)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeMalformedHit, apperrors.CodeOf(err))
	}
}

func TestNormalize_FlattensInSourceOrder(t *testing.T) {
	n := newTestNormalizer(t, 0)
	updated := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	results, dropped := n.Normalize(models.SearchQuery{Text: "hotel"}, []dispatch.SourceHits{
		{Source: official, Hits: []models.RawHit{{Title: "A1", URL: "https://a1", LastUpdated: updated}, {Title: "", URL: "https://bad"}}},
		{Source: blog, Err: errors.New("down")},
		{Source: blog, Hits: []models.RawHit{{Title: "B1", URL: "https://b1"}}},
	})

	require.Len(t, results, 2)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "A1", results[0].Title)
	assert.Equal(t, updated, results[0].LastUpdated)
	assert.Equal(t, "B1", results[1].Title)
}

func TestNormalize_Empty(t *testing.T) {
	results, dropped := newTestNormalizer(t, 0).Normalize(models.SearchQuery{}, nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Zero(t, dropped)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "Atra…", truncate("Atração", 4))
	assert.Equal(t, "abc", truncate("abc", 0))
}
