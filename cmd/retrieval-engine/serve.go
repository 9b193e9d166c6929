package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tourism-retrieval/internal/api"
	"tourism-retrieval/internal/common/camunda"
	"tourism-retrieval/internal/common/config"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/feedback"
	"tourism-retrieval/internal/retrieval/engine"

	cld "tourism-retrieval/internal/workers/learning/cleanup-learning-data"
	rf "tourism-retrieval/internal/workers/learning/record-feedback"
	sti "tourism-retrieval/internal/workers/retrieval/search-tourism-info"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, feedback consumer and Zeebe workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	zapLog.Info("Starting retrieval engine...", zap.String("environment", cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, zapLog, 15)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	// --- HTTP API, probes and metrics ---
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.NewServer(a.engine, a.log, a.readinessChecks()...).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout:      config.GetDuration(cfg.Server.WriteTimeout),
	}
	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// --- Feedback consumer ---
	if cfg.Kafka.Enabled {
		consumer := feedback.NewKafkaConsumer(cfg.Kafka, a.engine, a.log)
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Run(gctx)
		})
		zapLog.Info("feedback consumer started", zap.String("topic", cfg.Kafka.Topic))
	}

	// --- Zeebe workers ---
	if cfg.Camunda.Enabled {
		workers, closeClient, err := startWorkers(ctx, cfg, a, zapLog)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		defer func() {
			for _, w := range workers {
				w.Close()
				w.AwaitClose()
			}
			if err := closeClient(); err != nil {
				zapLog.Error("Error closing Zeebe client", zap.Error(err))
			}
		}()
	}

	// --- Learning data retention ---
	g.Go(func() error {
		runCleanupLoop(gctx, a.engine, config.GetDuration(cfg.Learning.CleanupInterval), zapLog)
		return nil
	})

	err = g.Wait()
	zapLog.Info("Retrieval engine stopped gracefully")
	return err
}

// startWorkers registers every enabled job worker on one Zeebe client.
func startWorkers(ctx context.Context, cfg *config.Config, a *app, zapLog *zap.Logger) ([]worker.JobWorker, func() error, error) {
	var client *camunda.Client
	err := retryWithBackoff(func() error {
		var err error
		client, err = camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		return nil, nil, err
	}
	zapLog.Info("Zeebe client connected successfully")

	zbc := client.GetClient()
	var workers []worker.JobWorker
	start := func(taskType string, handler worker.JobHandler) {
		if w := camunda.StartWorker(zbc, taskType, cfg.Workers[taskType], handler, zapLog); w != nil {
			workers = append(workers, w)
		}
	}

	searchCfg := sti.LoadConfig()
	if t := cfg.Workers[sti.TaskType].Timeout; t > 0 {
		searchCfg.Timeout = config.GetDuration(t)
	}
	start(sti.TaskType, sti.NewHandler(searchCfg, a.engine, a.log).Handle)

	feedbackCfg := rf.LoadConfig()
	if t := cfg.Workers[rf.TaskType].Timeout; t > 0 {
		feedbackCfg.Timeout = config.GetDuration(t)
	}
	start(rf.TaskType, rf.NewHandler(feedbackCfg, a.engine, a.log).Handle)

	cleanupCfg := cld.LoadConfig()
	if t := cfg.Workers[cld.TaskType].Timeout; t > 0 {
		cleanupCfg.Timeout = config.GetDuration(t)
	}
	start(cld.TaskType, cld.NewHandler(cleanupCfg, a.engine, a.log).Handle)

	zapLog.Info("workers registered", zap.Int("count", len(workers)))
	return workers, client.Close, nil
}

// runCleanupLoop applies the retention window every interval until ctx ends.
func runCleanupLoop(ctx context.Context, e *engine.Engine, interval time.Duration, zapLog *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := e.CleanupLearningData(ctx)
			zapLog.Debug("scheduled learning cleanup", zap.Int("removed", removed))
		}
	}
}
