package learning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

var baseTime = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu           sync.Mutex
	interactions []models.LearningInteraction
	gaps         map[string]models.KnowledgeGap
	cutoffs      []time.Time
	err          error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{gaps: make(map[string]models.KnowledgeGap)}
}

func (m *memoryStore) SaveInteraction(_ context.Context, in models.LearningInteraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.interactions = append(m.interactions, in)
	return nil
}

func (m *memoryStore) SaveGap(_ context.Context, gap models.KnowledgeGap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.gaps[gap.ID] = gap
	return nil
}

func (m *memoryStore) DeleteInteractionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	return 0, m.err
}

type recordingNotifier struct {
	flagged []models.KnowledgeGap
	err     error
}

func (r *recordingNotifier) GapFlagged(_ context.Context, gap models.KnowledgeGap) error {
	r.flagged = append(r.flagged, gap)
	return r.err
}

func newTestService(t *testing.T, opts Options) *Service {
	opts.Logger = logger.NewTestLogger(t)
	s := NewService(opts)
	s.now = func() time.Time { return baseTime }
	return s
}

func interaction(question, category string, confidence float64, fb models.Feedback) models.LearningInteraction {
	return models.LearningInteraction{
		Question:   question,
		Answer:     "answer",
		Sources:    []string{"Fundtur MS"},
		Confidence: confidence,
		Feedback:   fb,
		Metadata:   models.InteractionMetadata{Category: category},
	}
}

func learn(t *testing.T, s *Service, in models.LearningInteraction) models.InteractionOutcome {
	t.Helper()
	out, err := s.LearnFromInteraction(context.Background(), in)
	require.NoError(t, err)
	return out
}

// ==========================
// LearnFromInteraction Tests
// ==========================

func TestLearnFromInteraction_RepeatedNegativeBecomesHighPriorityGap(t *testing.T) {
	notifier := &recordingNotifier{}
	s := newTestService(t, Options{Notifier: notifier})

	for i := 0; i < 5; i++ {
		out := learn(t, s, interaction("restaurantes abertos hoje em Bonito", "restaurant", 0.4, models.FeedbackNegative))
		assert.True(t, out.GapFlagged)
		assert.True(t, out.InsightUpdated)
		assert.Equal(t, "restaurant", out.Category)
	}

	gaps := s.KnowledgeGaps()
	require.Len(t, gaps, 1)
	assert.Equal(t, "restaurant", gaps[0].Category)
	assert.Equal(t, models.PriorityHigh, gaps[0].Priority)
	assert.Equal(t, 5, gaps[0].Frequency)
	assert.Equal(t, 0.4, gaps[0].CurrentConfidence)
	assert.Equal(t, defaultRemedialSources["restaurant"], gaps[0].SuggestedSources)

	require.Len(t, notifier.flagged, 1, "notified once, when the gap is created")
	assert.Equal(t, 1, notifier.flagged[0].Frequency)

	priority := s.PriorityKnowledgeGaps()
	require.Len(t, priority, 1)
	assert.Equal(t, gaps[0].ID, priority[0].ID)
}

func TestApplyLearning_AfterRepeatedNegatives(t *testing.T) {
	s := newTestService(t, Options{})
	for i := 0; i < 5; i++ {
		learn(t, s, interaction("restaurantes abertos hoje em Bonito", "restaurant", 0.4, models.FeedbackNegative))
	}

	g := s.ApplyLearning("onde jantar em Campo Grande?", "restaurant")
	assert.NotEmpty(t, g.Warnings)
	assert.Contains(t, g.Warnings, "category restaurant has low satisfaction (0%)")
	assert.Equal(t, defaultRemedialSources["restaurant"], g.SuggestedSources)
	assert.Zero(t, g.ConfidenceBoost)
}

func TestLearnFromInteraction_GapDeduplication(t *testing.T) {
	s := newTestService(t, Options{})

	learn(t, s, interaction("hotel barato em Bonito", "hotel", 0.6, models.FeedbackNeutral))
	learn(t, s, interaction("Hotel com piscina", "hotel", 0.3, models.FeedbackNeutral))
	learn(t, s, interaction("pousada no centro", "hotel", 0.65, models.FeedbackNeutral))
	learn(t, s, interaction("hotel perto da gruta", "attraction", 0.2, models.FeedbackNeutral))

	gaps := s.KnowledgeGaps()
	require.Len(t, gaps, 3)

	assert.Equal(t, "hotel barato em Bonito", gaps[0].Question)
	assert.Equal(t, 2, gaps[0].Frequency)
	assert.Equal(t, 0.3, gaps[0].CurrentConfidence, "tracks the minimum confidence")
	assert.Equal(t, models.PriorityHigh, gaps[0].Priority, "escalates with the minimum")

	assert.Equal(t, "pousada no centro", gaps[1].Question)
	assert.Equal(t, models.PriorityMedium, gaps[1].Priority)

	assert.Equal(t, "attraction", gaps[2].Category)
}

func TestLearnFromInteraction_GapCriteria(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		feedback   models.Feedback
		wantGap    bool
		priority   models.GapPriority
	}{
		{"confident and positive", 0.9, models.FeedbackPositive, false, ""},
		{"confident but negative", 0.85, models.FeedbackNegative, true, models.PriorityLow},
		{"just below threshold", 0.69, models.FeedbackPositive, true, models.PriorityMedium},
		{"at threshold", 0.7, models.FeedbackNeutral, false, ""},
		{"percent scale", 45, models.FeedbackNeutral, true, models.PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, Options{})
			out := learn(t, s, interaction("evento de fim de semana", "event", tt.confidence, tt.feedback))
			assert.Equal(t, tt.wantGap, out.GapFlagged)

			gaps := s.KnowledgeGaps()
			if !tt.wantGap {
				assert.Empty(t, gaps)
				return
			}
			require.Len(t, gaps, 1)
			assert.Equal(t, tt.priority, gaps[0].Priority)
		})
	}
}

func TestLearnFromInteraction_InsightRunningAverages(t *testing.T) {
	s := newTestService(t, Options{})

	learn(t, s, interaction("hotel", "hotel", 0.9, models.FeedbackPositive))
	learn(t, s, interaction("hotel", "hotel", 0.5, models.FeedbackNegative))
	in := interaction("hotel", "hotel", 0.8, models.FeedbackNeutral)
	in.Correction = "o hotel fechou"
	learn(t, s, in)
	learn(t, s, in)

	insights := s.Insights()
	require.Len(t, insights, 1)
	got := insights[0]
	assert.Equal(t, "hotel", got.Pattern)
	assert.Equal(t, 4, got.Frequency)
	assert.InDelta(t, 0.75, got.AvgConfidence, 1e-9)
	assert.InDelta(t, 0.5, got.AvgSatisfaction, 1e-9)
	assert.Equal(t, []string{"o hotel fechou"}, got.Corrections, "corrections are deduplicated")
	assert.Equal(t, []string{"correct information reported by users: o hotel fechou"}, got.SuggestedImprovements)
	assert.Equal(t, baseTime, got.LastUpdated)
}

func TestLearnFromInteraction_SuggestedImprovements(t *testing.T) {
	s := newTestService(t, Options{})
	for i := 0; i < 11; i++ {
		learn(t, s, interaction("ônibus para Bonito", "", 0.5, models.FeedbackNegative))
	}

	insights := s.Insights()
	require.Len(t, insights, 1)
	assert.Equal(t, "transport", insights[0].Pattern, "category inferred from the question")
	assert.Equal(t, []string{
		"expand the knowledge base for this category",
		"fully review answers for this category",
	}, insights[0].SuggestedImprovements)
}

func TestLearnFromInteraction_InvalidInput(t *testing.T) {
	s := newTestService(t, Options{})

	_, err := s.LearnFromInteraction(context.Background(), interaction("  ", "hotel", 0.5, models.FeedbackNegative))
	assert.Equal(t, apperrors.ErrCodeInvalidFeedback, apperrors.CodeOf(err))

	_, err = s.LearnFromInteraction(context.Background(), interaction("hotel", "hotel", 0.5, "meh"))
	assert.Equal(t, apperrors.ErrCodeInvalidFeedback, apperrors.CodeOf(err))

	assert.Empty(t, s.Interactions())
}

func TestLearnFromInteraction_PersistenceFailureIsSwallowed(t *testing.T) {
	store := newMemoryStore()
	store.err = apperrors.NewPersistenceFailureError("save interaction", errors.New("connection reset"))
	notifier := &recordingNotifier{err: errors.New("sns down")}
	s := newTestService(t, Options{Store: store, Notifier: notifier})

	out, err := s.LearnFromInteraction(context.Background(), interaction("gruta do lago azul", "attraction", 0.2, models.FeedbackNegative))
	require.NoError(t, err)
	assert.True(t, out.GapFlagged)
	assert.Len(t, s.Interactions(), 1, "in-memory state is kept")
	assert.Len(t, s.KnowledgeGaps(), 1)
}

func TestLearnFromInteraction_Persists(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(t, Options{Store: store})

	out := learn(t, s, interaction("gruta do lago azul", "attraction", 40, models.FeedbackNegative))
	learn(t, s, interaction("passeio de barco", "attraction", 0.95, models.FeedbackPositive))

	require.Len(t, store.interactions, 2)
	assert.Equal(t, out.InteractionID, store.interactions[0].ID)
	assert.Equal(t, 0.4, store.interactions[0].Confidence)
	assert.Equal(t, baseTime, store.interactions[0].Timestamp)
	assert.Len(t, store.gaps, 1)
}

// ==========================
// ApplyLearning Tests
// ==========================

func TestApplyLearning_BoostForSatisfiedCategory(t *testing.T) {
	s := newTestService(t, Options{})
	for i := 0; i < 3; i++ {
		learn(t, s, interaction("festival de inverno", "event", 0.9, models.FeedbackPositive))
	}

	g := s.ApplyLearning("festival de inverno", "")
	assert.Equal(t, 0.1, g.ConfidenceBoost)
	assert.Empty(t, g.Warnings)
	assert.Empty(t, g.SuggestedSources)
	assert.LessOrEqual(t, g.ConfidenceBoost, 0.3)
}

func TestApplyLearning_UnknownCategory(t *testing.T) {
	g := newTestService(t, Options{}).ApplyLearning("qualquer coisa", "transport")
	assert.NotNil(t, g.Warnings)
	assert.NotNil(t, g.SuggestedSources)
	assert.Zero(t, g.ConfidenceBoost)
}

func TestApplyLearning_ConfiguredRemedialSources(t *testing.T) {
	s := newTestService(t, Options{RemedialSources: map[string][]string{
		"Hotel": {"https://hoteis.example"},
		"event": nil,
	}})
	learn(t, s, interaction("hotel", "hotel", 0.1, models.FeedbackNegative))
	learn(t, s, interaction("evento", "event", 0.1, models.FeedbackNegative))

	assert.Equal(t, []string{"https://hoteis.example"}, s.ApplyLearning("hotel", "hotel").SuggestedSources)
	assert.Equal(t, defaultRemedialSources["event"], s.ApplyLearning("evento", "event").SuggestedSources)
}

// ==========================
// Cleanup & Stats Tests
// ==========================

func TestCleanupOldData_KeepsAggregates(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(t, Options{Store: store})

	old := interaction("hotel antigo", "hotel", 0.3, models.FeedbackNegative)
	old.Timestamp = baseTime.Add(-31 * 24 * time.Hour)
	learn(t, s, old)
	edge := interaction("hotel recente", "hotel", 0.9, models.FeedbackPositive)
	edge.Timestamp = baseTime.Add(-29 * 24 * time.Hour)
	learn(t, s, edge)
	learn(t, s, interaction("hotel hoje", "hotel", 0.9, models.FeedbackPositive))

	insightsBefore := s.Insights()
	gapsBefore := s.KnowledgeGaps()

	removed := s.CleanupOldData(context.Background())
	assert.Equal(t, 1, removed)

	for _, in := range s.Interactions() {
		assert.False(t, in.Timestamp.Before(baseTime.Add(-DefaultRetention)))
	}
	assert.Len(t, s.Interactions(), 2)
	assert.Equal(t, insightsBefore, s.Insights())
	assert.Equal(t, gapsBefore, s.KnowledgeGaps())
	assert.Equal(t, []time.Time{baseTime.Add(-DefaultRetention)}, store.cutoffs)
}

func TestCleanupOldData_CustomRetention(t *testing.T) {
	s := newTestService(t, Options{Retention: time.Hour})
	in := interaction("hotel", "hotel", 0.9, models.FeedbackPositive)
	in.Timestamp = baseTime.Add(-2 * time.Hour)
	learn(t, s, in)

	assert.Equal(t, 1, s.CleanupOldData(context.Background()))
	assert.Empty(t, s.Interactions())
}

func TestStats(t *testing.T) {
	s := newTestService(t, Options{})
	assert.Equal(t, models.LearningStats{}, s.Stats())

	learn(t, s, interaction("hotel", "hotel", 0.9, models.FeedbackPositive))
	learn(t, s, interaction("restaurante", "restaurant", 0.4, models.FeedbackNegative))
	learn(t, s, interaction("evento", "event", 0.555, models.FeedbackNeutral))
	learn(t, s, interaction("gruta", "attraction", 0.8, models.FeedbackPositive))

	stats := s.Stats()
	assert.Equal(t, 4, stats.TotalInteractions)
	assert.Equal(t, 2, stats.PositiveFeedback)
	assert.Equal(t, 1, stats.NegativeFeedback)
	assert.Equal(t, 50.0, stats.SatisfactionRate)
	assert.Equal(t, 0.66, stats.AverageConfidence)
	assert.Equal(t, 2, stats.KnowledgeGaps)
	assert.Equal(t, 4, stats.Insights)
}

func TestService_ConcurrentUse(t *testing.T) {
	s := newTestService(t, Options{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = s.LearnFromInteraction(context.Background(), interaction("restaurante no centro", "restaurant", 0.4, models.FeedbackNegative))
				_ = s.ApplyLearning("restaurante", "restaurant")
				_ = s.Stats()
			}
		}()
	}
	wg.Wait()

	gaps := s.KnowledgeGaps()
	require.Len(t, gaps, 1)
	assert.Equal(t, 400, gaps[0].Frequency)
}
