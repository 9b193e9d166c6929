package searchtourisminfo

import "tourism-retrieval/internal/models"

type Input struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Region   string `json:"region,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type Output struct {
	Results     []models.SearchResult   `json:"results"`
	BestAnswer  *models.SearchResult    `json:"bestAnswer,omitempty"`
	Confidence  float64                 `json:"confidence"`
	NeedsReview bool                    `json:"needsReview"`
	Fallback    bool                    `json:"fallback"`
	Guidance    models.LearningGuidance `json:"guidance"`
}
