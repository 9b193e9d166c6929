package engine

import (
	"context"
	"math"
	"strings"

	"tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/validation"
	"tourism-retrieval/internal/models"
)

// Feedback is a caller's report on an answer it received.
type Feedback struct {
	Question   string
	Answer     string
	Sources    []string
	Confidence float64
	Feedback   models.Feedback
	Correction string
	Metadata   models.InteractionMetadata
}

// SubmitFeedback hands feedback to the learning service. Later searches in
// the same category pick up the resulting guidance.
func (e *Engine) SubmitFeedback(ctx context.Context, fb Feedback) (models.InteractionOutcome, error) {
	return e.learning.LearnFromInteraction(ctx, models.LearningInteraction{
		Question:   fb.Question,
		Answer:     fb.Answer,
		Sources:    fb.Sources,
		Confidence: fb.Confidence,
		Feedback:   fb.Feedback,
		Correction: fb.Correction,
		Metadata:   fb.Metadata,
	})
}

// AddSource registers src for all later searches. Duplicates are kept. A
// configured SourceStore failing to save src is logged, not returned.
func (e *Engine) AddSource(ctx context.Context, src models.Source) error {
	src.Name = strings.TrimSpace(src.Name)
	src.Region = strings.TrimSpace(src.Region)
	if src.Kind == "" {
		src.Kind = models.KindWebSearch
	}

	switch {
	case src.Name == "":
		return errors.NewInvalidSourceError("name is required")
	case src.Region == "":
		return errors.NewInvalidSourceError("region is required")
	case !src.Tier.Valid():
		return errors.NewInvalidSourceError("unknown reliability tier " + string(src.Tier))
	case src.Kind == models.KindWebSearch && !validation.ValidateURL(src.BaseURL):
		return errors.NewInvalidSourceError("invalid base url " + src.BaseURL)
	}
	switch src.Kind {
	case models.KindWebSearch, models.KindSearchIndex, models.KindKnowledgeBase:
	default:
		return errors.NewInvalidSourceError("unknown source kind " + string(src.Kind))
	}

	e.catalog.AddSource(src)
	e.logger.Info("source added", map[string]interface{}{
		"source": src.Name,
		"region": src.Region,
		"tier":   string(src.Tier),
	})

	if e.sourceStore != nil {
		if err := e.sourceStore.Save(ctx, src); err != nil {
			e.logger.Error("failed to persist source", map[string]interface{}{
				"source": src.Name,
				"error":  err.Error(),
			})
		}
	}
	return nil
}

// Sources lists registered sources for region and category. An empty region
// lists every source.
func (e *Engine) Sources(region, category string) []models.Source {
	if strings.TrimSpace(region) == "" {
		return e.catalog.All()
	}
	return e.catalog.SourcesFor(region, category)
}

func (e *Engine) ClearCache(ctx context.Context) error {
	if err := e.cache.Clear(ctx); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	e.logger.Info("cache cleared", nil)
	return nil
}

// Stats reports catalog size, regions, cache size and the mean confidence
// of every result produced by a full pipeline run.
func (e *Engine) Stats(ctx context.Context) models.EngineStats {
	e.statsMu.Lock()
	avg := 0.0
	if e.confCount > 0 {
		avg = math.Round(e.confSum/float64(e.confCount)*100) / 100
	}
	e.statsMu.Unlock()

	return models.EngineStats{
		TotalSources:      e.catalog.Len(),
		Regions:           e.catalog.Regions(),
		CacheSize:         e.cache.Size(ctx),
		AverageConfidence: avg,
	}
}

// Reliability returns the current historical reliability of every source
// that has been ranked at least once.
func (e *Engine) Reliability() map[string]float64 {
	return e.reliability.Snapshot()
}

func (e *Engine) Guidance(question, category string) models.LearningGuidance {
	return e.learning.ApplyLearning(question, category)
}

func (e *Engine) LearningInsights() []models.CategoryInsight {
	return e.learning.Insights()
}

func (e *Engine) KnowledgeGaps() []models.KnowledgeGap {
	return e.learning.KnowledgeGaps()
}

func (e *Engine) PriorityKnowledgeGaps() []models.KnowledgeGap {
	return e.learning.PriorityKnowledgeGaps()
}

func (e *Engine) LearningStats() models.LearningStats {
	return e.learning.Stats()
}

// CleanupLearningData applies the interaction retention window.
func (e *Engine) CleanupLearningData(ctx context.Context) int {
	return e.learning.CleanupOldData(ctx)
}
