package recordfeedback

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/learning"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{Timeout: 2 * time.Second}
}

func setupEngine(t *testing.T) (*engine.Engine, *learning.Service) {
	log := logger.NewTestLogger(t)
	svc := learning.NewService(learning.Options{Logger: log})
	return engine.New(engine.Config{}, engine.Deps{Learning: svc, Logger: log}), svc
}

type failingSubmitter struct{ err error }

func (f failingSubmitter) SubmitFeedback(context.Context, engine.Feedback) (models.InteractionOutcome, error) {
	return models.InteractionOutcome{}, f.err
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_RecordsInteraction(t *testing.T) {
	e, svc := setupEngine(t)
	h := NewHandler(createTestConfig(), e, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Question:   "melhores hotéis em Bonito",
		Answer:     "Hotel Zagaia",
		Sources:    []string{"https://www.turismo.ms.gov.br"},
		Confidence: 92,
		Feedback:   "positive",
		Category:   "Hotel",
		UserID:     "u-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, out.InteractionID)
	assert.Equal(t, "hotel", out.Category)
	assert.False(t, out.GapFlagged)
	assert.True(t, out.InsightUpdated)

	interactions := svc.Interactions()
	require.Len(t, interactions, 1)
	assert.InDelta(t, 0.92, interactions[0].Confidence, 1e-9)
	assert.Equal(t, "u-1", interactions[0].Metadata.UserID)
}

func TestExecute_FlagsGap(t *testing.T) {
	e, svc := setupEngine(t)
	h := NewHandler(createTestConfig(), e, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Question:      "horário do Aquário do Pantanal",
		Answer:        "não sei",
		Confidence:    0.3,
		Feedback:      "negative",
		CorrectAnswer: "abre às 8h30",
		Category:      "attraction",
	})
	require.NoError(t, err)
	assert.True(t, out.GapFlagged)

	gaps := svc.PriorityKnowledgeGaps()
	require.Len(t, gaps, 1)
	assert.Equal(t, models.PriorityHigh, gaps[0].Priority)
}

func TestExecute_InvalidInput(t *testing.T) {
	e, _ := setupEngine(t)
	h := NewHandler(createTestConfig(), e, logger.NewTestLogger(t))

	tests := []struct {
		name  string
		input *Input
	}{
		{"missing question", &Input{Answer: "a", Confidence: 0.5}},
		{"unknown feedback", &Input{Question: "q", Answer: "a", Confidence: 0.5, Feedback: "great"}},
		{"confidence out of range", &Input{Question: "q", Answer: "a", Confidence: 150}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidFeedback, apperrors.CodeOf(err))
		})
	}
}

func TestExecute_SubmitterError(t *testing.T) {
	h := NewHandler(createTestConfig(), failingSubmitter{err: errors.New("boom")}, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Question: "q", Answer: "a", Confidence: 0.5})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.CodeOf(err))
}
