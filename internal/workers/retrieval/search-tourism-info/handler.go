package searchtourisminfo

import (
	"context"
	"encoding/json"
	"fmt"

	"tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/common/metrics"
	"tourism-retrieval/internal/common/validation"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/engine"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "search-tourism-info"
)

// Searcher is the part of the engine this worker drives.
type Searcher interface {
	Search(ctx context.Context, query models.SearchQuery) ([]models.SearchResult, error)
	Guidance(question, category string) models.LearningGuidance
}

type Handler struct {
	config       *Config
	searcher     Searcher
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, searcher Searcher, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		searcher:     searcher,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewInvalidQueryError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute validates input, runs the search and picks the best answer.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := validation.Validate(validation.SearchRequestSchema, input)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, errors.NewInvalidQueryError(result.Summary())
	}

	results, err := h.searcher.Search(ctx, models.SearchQuery{
		Text:     input.Query,
		Category: input.Category,
		Region:   input.Region,
		Limit:    input.Limit,
	})
	if err != nil {
		return nil, err
	}

	output := &Output{
		Results:  results,
		Guidance: h.searcher.Guidance(input.Query, input.Category),
	}
	if len(results) > 0 {
		best := results[0]
		output.BestAnswer = &best
		output.Confidence = best.Confidence
		output.Fallback = len(results) == 1 && best.Title == engine.FallbackTitle
	}
	output.NeedsReview = output.Fallback || output.Confidence < h.config.MinConfidence

	h.logger.Info("search completed", map[string]interface{}{
		"results":     len(results),
		"confidence":  output.Confidence,
		"fallback":    output.Fallback,
		"needsReview": output.NeedsReview,
	})
	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.fail(ctx, client, job, errors.NewBusinessRuleError("Output serialization failed", err.Error()))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
