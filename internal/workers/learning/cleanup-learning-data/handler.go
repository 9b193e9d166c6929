package cleanuplearningdata

import (
	"context"
	"encoding/json"

	"tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/common/metrics"
	"tourism-retrieval/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "cleanup-learning-data"
)

type Cleaner interface {
	CleanupLearningData(ctx context.Context) int
	LearningStats() models.LearningStats
}

type Handler struct {
	config       *Config
	cleaner      Cleaner
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, cleaner Cleaner, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		cleaner:      cleaner,
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

	// Variables are optional for this task.
	var input Input
	if job.Variables != "" {
		_ = json.Unmarshal([]byte(job.Variables), &input)
	}

	output := h.Execute(ctx, &input)

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeInternal)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
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

// Execute applies the retention window. Store failures are logged by the
// learning service and never fail the job.
func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	removed := h.cleaner.CleanupLearningData(ctx)
	stats := h.cleaner.LearningStats()

	h.logger.Info("learning data cleaned up", map[string]interface{}{
		"removed":     removed,
		"remaining":   stats.TotalInteractions,
		"requestedBy": input.RequestedBy,
	})
	return &Output{
		Removed:               removed,
		RemainingInteractions: stats.TotalInteractions,
		KnowledgeGaps:         stats.KnowledgeGaps,
	}
}
