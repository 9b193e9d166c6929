package api

import (
	"net/http"
	"strings"

	"tourism-retrieval/internal/common/validation"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/engine"
)

type searchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Region   string `json:"region"`
	Limit    int    `json:"limit"`
}

type searchResponse struct {
	Results  []models.SearchResult   `json:"results"`
	Count    int                     `json:"count"`
	Guidance models.LearningGuidance `json:"guidance"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, validation.SearchRequestSchema, &req) {
		return
	}

	results, err := s.engine.Search(r.Context(), models.SearchQuery{
		Text:     req.Query,
		Category: req.Category,
		Region:   req.Region,
		Limit:    req.Limit,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Results:  results,
		Count:    len(results),
		Guidance: s.engine.Guidance(req.Query, req.Category),
	})
}

type feedbackRequest struct {
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Sources       []string `json:"sources"`
	Confidence    float64  `json:"confidence"`
	Feedback      string   `json:"feedback"`
	CorrectAnswer string   `json:"correctAnswer"`
	Category      string   `json:"category"`
	UserID        string   `json:"userId"`
	SessionID     string   `json:"sessionId"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decode(w, r, validation.FeedbackSchema, &req) {
		return
	}

	outcome, err := s.engine.SubmitFeedback(r.Context(), engine.Feedback{
		Question:   req.Question,
		Answer:     req.Answer,
		Sources:    req.Sources,
		Confidence: req.Confidence,
		Feedback:   models.Feedback(req.Feedback),
		Correction: req.CorrectAnswer,
		Metadata: models.InteractionMetadata{
			Category:  req.Category,
			UserID:    req.UserID,
			SessionID: req.SessionID,
		},
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, outcome)
}

func (s *Server) handleGuidance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, s.engine.Guidance(q.Get("question"), q.Get("category")))
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	srcs := s.engine.Sources(q.Get("region"), q.Get("category"))
	if srcs == nil {
		srcs = []models.Source{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": srcs,
		"count":   len(srcs),
	})
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var src models.Source
	if !decode(w, r, validation.SourceSchema, &src) {
		return
	}
	if err := s.engine.AddSource(r.Context(), src); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearCache(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statsResponse struct {
	models.EngineStats
	Reliability map[string]float64 `json:"reliability"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		EngineStats: s.engine.Stats(r.Context()),
		Reliability: s.engine.Reliability(),
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"insights": s.engine.LearningInsights(),
	})
}

// handleGaps lists every gap, or only high priority ones with
// ?priority=high.
func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	gaps := s.engine.KnowledgeGaps()
	if strings.EqualFold(r.URL.Query().Get("priority"), string(models.PriorityHigh)) {
		gaps = s.engine.PriorityKnowledgeGaps()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gaps":  gaps,
		"count": len(gaps),
	})
}

func (s *Server) handleLearningStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.LearningStats())
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"removed": s.engine.CleanupLearningData(r.Context()),
	})
}
