// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"tourism-retrieval/internal/common/config"
	"tourism-retrieval/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"
)

// JobWorkerFactory is the part of zbc.Client needed to open job workers.
type JobWorkerFactory interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

// Instrument wraps a job handler with duration and completion metrics.
// Failure counters are recorded by the handlers themselves, which know the
// error code.
func Instrument(taskType string, handler worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		handler(client, job)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
	}
}

// StartWorker opens a job worker for taskType when it is enabled. The returned
// worker is nil when the worker is disabled.
func StartWorker(client JobWorkerFactory, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler, log *zap.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
	return jobWorker
}
