// Package learning records answered interactions with their feedback and
// turns them into per-category insights, knowledge gaps and guidance for
// later searches.
package learning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/common/metrics"
	"tourism-retrieval/internal/common/textutil"
	"tourism-retrieval/internal/models"

	"github.com/google/uuid"
)

const (
	DefaultRetention = 30 * 24 * time.Hour

	gapConfidenceThreshold  = 0.7
	boostSatisfaction       = 0.8
	boostStep               = 0.1
	maxBoost                = 0.3
	warnSatisfaction        = 0.6
	improvementSatisfaction = 0.7
	improvementConfidence   = 0.7
	fullReviewFrequency     = 10
	fullReviewSatisfaction  = 0.6
)

type Options struct {
	// Store is optional; nil keeps learning in memory only.
	Store Store
	// Notifier is optional.
	Notifier        Notifier
	RemedialSources map[string][]string
	Retention       time.Duration
	Logger          logger.Logger
}

// Service is safe for concurrent use.
type Service struct {
	mu           sync.RWMutex
	interactions []models.LearningInteraction
	insights     map[string]*models.CategoryInsight
	gaps         []*models.KnowledgeGap

	remedial  map[string][]string
	retention time.Duration
	store     Store
	notifier  Notifier
	now       func() time.Time
	logger    logger.Logger
}

func NewService(opts Options) *Service {
	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{
		insights:  make(map[string]*models.CategoryInsight),
		remedial:  mergeRemedial(opts.RemedialSources),
		retention: retention,
		store:     opts.Store,
		notifier:  opts.Notifier,
		now:       time.Now,
		logger:    logger.Component(opts.Logger, "learning"),
	}
}

// LearnFromInteraction appends in to the log, folds it into its category
// insight and flags a knowledge gap when confidence was low or feedback was
// negative. Confidence may be given on a 0-1 or a 0-100 scale. Only invalid
// input is reported as an error; persistence and notification failures are
// logged.
func (s *Service) LearnFromInteraction(ctx context.Context, in models.LearningInteraction) (models.InteractionOutcome, error) {
	if strings.TrimSpace(in.Question) == "" {
		return models.InteractionOutcome{}, errors.NewInvalidFeedbackError("question is required")
	}
	if in.Feedback == "" {
		in.Feedback = models.FeedbackNeutral
	}
	if !in.Feedback.Valid() {
		return models.InteractionOutcome{}, errors.NewInvalidFeedbackError(fmt.Sprintf("unknown feedback %q", in.Feedback))
	}

	in.Confidence = normalizeConfidence(in.Confidence)
	in.Metadata.Category = strings.ToLower(strings.TrimSpace(in.Metadata.Category))
	if in.Metadata.Category == "" {
		in.Metadata.Category = models.InferCategory(in.Question)
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now().UTC()
	}
	in.Sources = append([]string(nil), in.Sources...)

	s.mu.Lock()
	s.interactions = append(s.interactions, in)
	s.updateInsight(in)
	gap, escalated := s.evaluateGap(in)
	s.suggestImprovements(in.Metadata.Category)
	gapCounts := s.gapCountsLocked()
	s.mu.Unlock()

	metrics.LearningInteractions.WithLabelValues(string(in.Feedback)).Inc()
	for priority, n := range gapCounts {
		metrics.KnowledgeGaps.WithLabelValues(string(priority)).Set(float64(n))
	}

	outcome := models.InteractionOutcome{
		InteractionID:  in.ID,
		Category:       in.Metadata.Category,
		InsightUpdated: true,
		GapFlagged:     gap != nil,
	}

	s.persist(ctx, in, gap)
	if escalated && s.notifier != nil {
		if err := s.notifier.GapFlagged(ctx, *gap); err != nil {
			s.logger.Warn("gap notification failed", map[string]interface{}{
				"gapId": gap.ID,
				"error": err.Error(),
			})
		}
	}

	s.logger.Debug("interaction learned", map[string]interface{}{
		"interactionId": in.ID,
		"category":      in.Metadata.Category,
		"feedback":      string(in.Feedback),
		"gapFlagged":    outcome.GapFlagged,
	})
	return outcome, nil
}

// updateInsight applies in to its category's running averages.
func (s *Service) updateInsight(in models.LearningInteraction) {
	category := in.Metadata.Category
	insight, ok := s.insights[category]
	if !ok {
		insight = &models.CategoryInsight{Pattern: category}
		s.insights[category] = insight
	}

	insight.Frequency++
	n := float64(insight.Frequency)
	insight.AvgConfidence += (in.Confidence - insight.AvgConfidence) / n
	insight.AvgSatisfaction += (in.Feedback.Satisfaction() - insight.AvgSatisfaction) / n

	if c := strings.TrimSpace(in.Correction); c != "" && !contains(insight.Corrections, c) {
		insight.Corrections = append(insight.Corrections, c)
	}
	insight.LastUpdated = in.Timestamp
}

// evaluateGap creates or updates the gap for in. It returns a copy of the
// touched gap (nil when in is not gap-worthy) and whether the gap just
// reached high priority.
func (s *Service) evaluateGap(in models.LearningInteraction) (*models.KnowledgeGap, bool) {
	if in.Confidence >= gapConfidenceThreshold && in.Feedback != models.FeedbackNegative {
		return nil, false
	}

	category := in.Metadata.Category
	if existing := s.findGap(category, in.Question); existing != nil {
		wasHigh := existing.Priority == models.PriorityHigh
		existing.Frequency++
		existing.CurrentConfidence = math.Min(existing.CurrentConfidence, in.Confidence)
		existing.Priority = models.PriorityFor(existing.CurrentConfidence)
		existing.LastSeen = in.Timestamp
		snapshot := copyGap(existing)
		return &snapshot, !wasHigh && existing.Priority == models.PriorityHigh
	}

	gap := &models.KnowledgeGap{
		ID:                uuid.NewString(),
		Category:          category,
		Question:          in.Question,
		Frequency:         1,
		CurrentConfidence: in.Confidence,
		SuggestedSources:  s.remedialFor(category),
		Priority:          models.PriorityFor(in.Confidence),
		CreatedAt:         in.Timestamp,
		LastSeen:          in.Timestamp,
	}
	s.gaps = append(s.gaps, gap)
	snapshot := copyGap(gap)
	return &snapshot, gap.Priority == models.PriorityHigh
}

// findGap matches gaps of the same category whose question contains the
// leading token of question.
func (s *Service) findGap(category, question string) *models.KnowledgeGap {
	lead := textutil.LeadingToken(question)
	for _, g := range s.gaps {
		if g.Category == category && textutil.ContainsToken(g.Question, lead) {
			return g
		}
	}
	return nil
}

func (s *Service) suggestImprovements(category string) {
	insight := s.insights[category]
	if insight == nil || insight.AvgSatisfaction >= improvementSatisfaction {
		return
	}

	var improvements []string
	if insight.AvgConfidence < improvementConfidence {
		improvements = append(improvements, "expand the knowledge base for this category")
	}
	if len(insight.Corrections) > 0 {
		improvements = append(improvements, "correct information reported by users: "+strings.Join(insight.Corrections, ", "))
	}
	if insight.Frequency > fullReviewFrequency && insight.AvgSatisfaction < fullReviewSatisfaction {
		improvements = append(improvements, "fully review answers for this category")
	}
	insight.SuggestedImprovements = improvements
}

func (s *Service) persist(ctx context.Context, in models.LearningInteraction, gap *models.KnowledgeGap) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveInteraction(ctx, in); err != nil {
		s.logger.Error("failed to persist interaction", map[string]interface{}{
			"interactionId": in.ID,
			"errorCode":     string(errors.CodeOf(err)),
			"error":         err.Error(),
		})
	}
	if gap == nil {
		return
	}
	if err := s.store.SaveGap(ctx, *gap); err != nil {
		s.logger.Error("failed to persist knowledge gap", map[string]interface{}{
			"gapId":     gap.ID,
			"errorCode": string(errors.CodeOf(err)),
			"error":     err.Error(),
		})
	}
}

// ApplyLearning returns guidance for a question in category. It reads state
// only. An empty category is inferred from the question.
func (s *Service) ApplyLearning(question, category string) models.LearningGuidance {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = models.InferCategory(question)
	}

	guidance := models.LearningGuidance{
		SuggestedSources: []string{},
		Warnings:         []string{},
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if insight, ok := s.insights[category]; ok {
		if insight.AvgSatisfaction > boostSatisfaction {
			guidance.ConfidenceBoost += boostStep
		}
		if insight.AvgSatisfaction < warnSatisfaction {
			guidance.Warnings = append(guidance.Warnings, fmt.Sprintf("category %s has low satisfaction (%d%%)",
				insight.Pattern, int(math.Round(insight.AvgSatisfaction*100))))
		}
	}
	guidance.ConfidenceBoost = math.Min(guidance.ConfidenceBoost, maxBoost)

	seen := make(map[string]bool)
	for _, g := range s.gaps {
		if g.Category != category || g.Priority != models.PriorityHigh {
			continue
		}
		guidance.Warnings = append(guidance.Warnings, "knowledge gap identified: "+g.Question)
		for _, src := range g.SuggestedSources {
			if !seen[src] {
				seen[src] = true
				guidance.SuggestedSources = append(guidance.SuggestedSources, src)
			}
		}
	}
	return guidance
}

// CleanupOldData drops interactions older than the retention window from the
// log and the store. Insights and gaps are cumulative and stay untouched.
// It returns the number of in-memory interactions removed.
func (s *Service) CleanupOldData(ctx context.Context) int {
	cutoff := s.now().Add(-s.retention)

	s.mu.Lock()
	kept := s.interactions[:0]
	for _, in := range s.interactions {
		if !in.Timestamp.Before(cutoff) {
			kept = append(kept, in)
		}
	}
	removed := len(s.interactions) - len(kept)
	for i := len(kept); i < len(s.interactions); i++ {
		s.interactions[i] = models.LearningInteraction{}
	}
	s.interactions = kept
	s.mu.Unlock()

	if s.store != nil {
		if n, err := s.store.DeleteInteractionsBefore(ctx, cutoff); err != nil {
			s.logger.Error("failed to delete old interactions", map[string]interface{}{
				"cutoff": cutoff,
				"error":  err.Error(),
			})
		} else {
			s.logger.Debug("old interactions deleted from store", map[string]interface{}{"rows": n})
		}
	}

	s.logger.Info("learning data cleaned up", map[string]interface{}{
		"removed": removed,
		"cutoff":  cutoff,
	})
	return removed
}

// Insights returns a copy of every category insight, most frequent first.
func (s *Service) Insights() []models.CategoryInsight {
	s.mu.RLock()
	out := make([]models.CategoryInsight, 0, len(s.insights))
	for _, in := range s.insights {
		cp := *in
		cp.Corrections = append([]string(nil), in.Corrections...)
		cp.SuggestedImprovements = append([]string(nil), in.SuggestedImprovements...)
		out = append(out, cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}

// KnowledgeGaps returns a copy of every gap in creation order.
func (s *Service) KnowledgeGaps() []models.KnowledgeGap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.KnowledgeGap, 0, len(s.gaps))
	for _, g := range s.gaps {
		out = append(out, copyGap(g))
	}
	return out
}

// PriorityKnowledgeGaps returns high-priority gaps, most frequent first.
func (s *Service) PriorityKnowledgeGaps() []models.KnowledgeGap {
	out := make([]models.KnowledgeGap, 0)
	for _, g := range s.KnowledgeGaps() {
		if g.Priority == models.PriorityHigh {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frequency > out[j].Frequency })
	return out
}

// RestoreGaps seeds gaps loaded from a store, typically at startup. Gaps
// whose ID is already known are skipped. It returns the number added.
func (s *Service) RestoreGaps(gaps []models.KnowledgeGap) int {
	s.mu.Lock()
	known := make(map[string]bool, len(s.gaps))
	for _, g := range s.gaps {
		known[g.ID] = true
	}
	added := 0
	for _, g := range gaps {
		if g.ID == "" || known[g.ID] {
			continue
		}
		restored := copyGap(&g)
		s.gaps = append(s.gaps, &restored)
		known[g.ID] = true
		added++
	}
	gapCounts := s.gapCountsLocked()
	s.mu.Unlock()

	for priority, n := range gapCounts {
		metrics.KnowledgeGaps.WithLabelValues(string(priority)).Set(float64(n))
	}
	return added
}

// Interactions returns a copy of the retained log.
func (s *Service) Interactions() []models.LearningInteraction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LearningInteraction(nil), s.interactions...)
}

func (s *Service) Stats() models.LearningStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.LearningStats{
		TotalInteractions: len(s.interactions),
		KnowledgeGaps:     len(s.gaps),
		Insights:          len(s.insights),
	}
	var confSum float64
	for _, in := range s.interactions {
		switch in.Feedback {
		case models.FeedbackPositive:
			stats.PositiveFeedback++
		case models.FeedbackNegative:
			stats.NegativeFeedback++
		}
		confSum += in.Confidence
	}
	if stats.TotalInteractions > 0 {
		total := float64(stats.TotalInteractions)
		stats.SatisfactionRate = float64(stats.PositiveFeedback) / total * 100
		stats.AverageConfidence = math.Round(confSum/total*100) / 100
	}
	return stats
}

func (s *Service) gapCountsLocked() map[models.GapPriority]int {
	counts := map[models.GapPriority]int{
		models.PriorityHigh:   0,
		models.PriorityMedium: 0,
		models.PriorityLow:    0,
	}
	for _, g := range s.gaps {
		counts[g.Priority]++
	}
	return counts
}

// normalizeConfidence maps percentages onto [0,1].
func normalizeConfidence(c float64) float64 {
	if c > 1 {
		c /= 100
	}
	return math.Max(0, math.Min(1, c))
}

func copyGap(g *models.KnowledgeGap) models.KnowledgeGap {
	cp := *g
	cp.SuggestedSources = append([]string(nil), g.SuggestedSources...)
	return cp
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
