package recordfeedback

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
	TaskType = "record-feedback"
)

type FeedbackSubmitter interface {
	SubmitFeedback(ctx context.Context, fb engine.Feedback) (models.InteractionOutcome, error)
}

type Handler struct {
	config       *Config
	submitter    FeedbackSubmitter
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, submitter FeedbackSubmitter, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		submitter:    submitter,
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
		h.fail(ctx, client, job, errors.NewInvalidFeedbackError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

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

// Execute records one interaction with the learning service.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := validation.Validate(validation.FeedbackSchema, input)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, errors.NewInvalidFeedbackError(result.Summary())
	}

	outcome, err := h.submitter.SubmitFeedback(ctx, engine.Feedback{
		Question:   input.Question,
		Answer:     input.Answer,
		Sources:    input.Sources,
		Confidence: input.Confidence,
		Feedback:   models.Feedback(input.Feedback),
		Correction: input.CorrectAnswer,
		Metadata: models.InteractionMetadata{
			Category:  input.Category,
			UserID:    input.UserID,
			SessionID: input.SessionID,
		},
	})
	if err != nil {
		return nil, err
	}

	if outcome.GapFlagged {
		h.logger.Warn("knowledge gap flagged", map[string]interface{}{
			"category":      outcome.Category,
			"interactionId": outcome.InteractionID,
		})
	}
	return &Output{
		InteractionID:  outcome.InteractionID,
		Category:       outcome.Category,
		GapFlagged:     outcome.GapFlagged,
		InsightUpdated: outcome.InsightUpdated,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
