// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_search_requests_total",
			Help: "Searches served, by outcome (cache_hit, fresh, fallback, cancelled)",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrieval_search_duration_seconds",
			Help:    "End-to-end search latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	SourceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_source_calls_total",
			Help: "Per-source fetches, by status (ok, error, timeout)",
		},
		[]string{"source", "status"},
	)

	SourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrieval_source_latency_seconds",
			Help:    "Per-source fetch latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"source"},
	)

	MalformedHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_malformed_hits_total",
			Help: "Hits dropped during normalization",
		},
		[]string{"source"},
	)

	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_cache_operations_total",
			Help: "Cache lookups and writes, by backend and result",
		},
		[]string{"backend", "result"},
	)

	SourceReliability = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "retrieval_source_reliability",
			Help: "Current reliability EMA per source",
		},
		[]string{"source"},
	)

	LearningInteractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learning_interactions_total",
			Help: "Recorded interactions, by feedback",
		},
		[]string{"feedback"},
	)

	KnowledgeGaps = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "learning_knowledge_gaps",
			Help: "Open knowledge gaps, by priority",
		},
		[]string{"priority"},
	)

	FeedbackEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_events_consumed_total",
			Help: "Feedback events read from the stream, by status (processed, dlq, invalid)",
		},
		[]string{"status"},
	)
)
