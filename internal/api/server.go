// Package api exposes the engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/common/validation"
	"tourism-retrieval/internal/retrieval/engine"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultRequestTimeout = 10 * time.Second

// ReadinessCheck reports whether one backing service is reachable.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	engine         *engine.Engine
	checks         []ReadinessCheck
	requestTimeout time.Duration
	logger         logger.Logger
}

func NewServer(e *engine.Engine, log logger.Logger, checks ...ReadinessCheck) *Server {
	return &Server{
		engine:         e,
		checks:         checks,
		requestTimeout: defaultRequestTimeout,
		logger:         logger.Component(log, "api"),
	}
}

// Routes builds the router. The /v1 routes carry a request timeout; the
// probe and metrics routes do not.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requestLogger)
		r.Use(middleware.Timeout(s.requestTimeout))

		r.Post("/search", s.handleSearch)
		r.Post("/feedback", s.handleFeedback)
		r.Get("/guidance", s.handleGuidance)

		r.Get("/sources", s.handleListSources)
		r.Post("/sources", s.handleAddSource)

		r.Delete("/cache", s.handleClearCache)
		r.Get("/stats", s.handleStats)

		r.Route("/learning", func(r chi.Router) {
			r.Get("/insights", s.handleInsights)
			r.Get("/gaps", s.handleGaps)
			r.Get("/stats", s.handleLearningStats)
			r.Post("/cleanup", s.handleCleanup)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"duration":  time.Since(start).String(),
			"requestId": middleware.GetReqID(r.Context()),
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := map[string]string{}
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			failures[c.Name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not ready",
			"failures": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

type errorResponse struct {
	Error   string                       `json:"error"`
	Code    string                       `json:"code,omitempty"`
	Details []validation.ValidationError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps err onto an HTTP status by its error code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	stdErr := errors.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}
	msg := stdErr.Message
	if stdErr.Details != "" {
		msg += ": " + stdErr.Details
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: string(stdErr.Code)})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidQuery, errors.ErrCodeInvalidFeedback, errors.ErrCodeInvalidSource:
		return http.StatusBadRequest
	case errors.ErrCodeSearchCancelled, errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeCacheUnavailable, errors.ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body, validates it against schema and decodes it into
// dst. It writes the 400 response itself and reports whether to continue.
func decode(w http.ResponseWriter, r *http.Request, schema string, dst interface{}) bool {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}

	result, err := validation.Validate(schema, raw)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return false
	}
	if !result.Valid {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation failed",
			Details: result.Errors,
		})
		return false
	}

	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return false
	}
	return true
}
