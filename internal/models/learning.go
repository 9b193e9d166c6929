// internal/models/learning.go
package models

import "time"

type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
	FeedbackNeutral  Feedback = "neutral"
)

func (f Feedback) Valid() bool {
	switch f {
	case FeedbackPositive, FeedbackNegative, FeedbackNeutral:
		return true
	}
	return false
}

// Satisfaction maps feedback onto [0,1].
func (f Feedback) Satisfaction() float64 {
	switch f {
	case FeedbackPositive:
		return 1
	case FeedbackNegative:
		return 0
	default:
		return 0.5
	}
}

type GapPriority string

const (
	PriorityHigh   GapPriority = "high"
	PriorityMedium GapPriority = "medium"
	PriorityLow    GapPriority = "low"
)

// PriorityFor derives a gap priority from a confidence in [0,1].
func PriorityFor(confidence float64) GapPriority {
	switch {
	case confidence < 0.5:
		return PriorityHigh
	case confidence < 0.7:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type InteractionMetadata struct {
	Category  string `json:"category,omitempty"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type LearningInteraction struct {
	ID         string              `json:"id"`
	Question   string              `json:"question"`
	Answer     string              `json:"answer"`
	Sources    []string            `json:"sources"`
	Confidence float64             `json:"confidence"`
	Feedback   Feedback            `json:"feedback"`
	Correction string              `json:"correction,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
	Metadata   InteractionMetadata `json:"metadata"`
}

// CategoryInsight aggregates interactions for one category.
type CategoryInsight struct {
	Pattern               string    `json:"pattern"`
	Frequency             int       `json:"frequency"`
	AvgConfidence         float64   `json:"avgConfidence"`
	AvgSatisfaction       float64   `json:"avgSatisfaction"`
	Corrections           []string  `json:"corrections"`
	SuggestedImprovements []string  `json:"suggestedImprovements"`
	LastUpdated           time.Time `json:"lastUpdated"`
}

type KnowledgeGap struct {
	ID                string      `json:"id"`
	Category          string      `json:"category"`
	Question          string      `json:"question"`
	Frequency         int         `json:"frequency"`
	CurrentConfidence float64     `json:"currentConfidence"`
	SuggestedSources  []string    `json:"suggestedSources"`
	Priority          GapPriority `json:"priority"`
	CreatedAt         time.Time   `json:"createdAt"`
	LastSeen          time.Time   `json:"lastSeen"`
}

// LearningGuidance is the read-only advice derived from accumulated feedback.
type LearningGuidance struct {
	SuggestedSources []string `json:"suggestedSources"`
	ConfidenceBoost  float64  `json:"confidenceBoost"`
	Warnings         []string `json:"warnings"`
}

// InteractionOutcome records which terminal state an interaction reached.
type InteractionOutcome struct {
	InteractionID  string `json:"interactionId"`
	Category       string `json:"category"`
	GapFlagged     bool   `json:"gapFlagged"`
	InsightUpdated bool   `json:"insightUpdated"`
}

type LearningStats struct {
	TotalInteractions int     `json:"totalInteractions"`
	PositiveFeedback  int     `json:"positiveFeedback"`
	NegativeFeedback  int     `json:"negativeFeedback"`
	SatisfactionRate  float64 `json:"satisfactionRate"`
	AverageConfidence float64 `json:"averageConfidence"`
	KnowledgeGaps     int     `json:"knowledgeGaps"`
	Insights          int     `json:"insights"`
}
