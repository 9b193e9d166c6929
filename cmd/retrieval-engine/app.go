package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"tourism-retrieval/internal/api"
	awsclients "tourism-retrieval/internal/common/aws"
	"tourism-retrieval/internal/common/config"
	"tourism-retrieval/internal/common/database"
	commonhttp "tourism-retrieval/internal/common/http"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/common/observability"
	"tourism-retrieval/internal/learning"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/cache"
	"tourism-retrieval/internal/retrieval/catalog"
	"tourism-retrieval/internal/retrieval/engine"
	"tourism-retrieval/internal/retrieval/sources"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds the wired engine and the connections it was built on.
type app struct {
	cfg      *config.Config
	zapLog   *zap.Logger
	log      logger.Logger
	obs      *observability.Observability
	engine   *engine.Engine
	learning *learning.Service

	pg    *database.PostgresClient
	redis *redis.Client
	es    *elasticsearch.Client

	closers []func() error
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// newApp connects to whatever cfg enables and builds the engine. Backends
// that are not configured are replaced by in-memory defaults.
func newApp(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, retries int) (*app, error) {
	log := logger.NewZapAdapter(zapLog)
	a := &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
		obs:    observability.New(cfg.App.Name, log),
	}

	if cfg.Learning.Persist || cfg.Search.LoadSourcesFromDB {
		err := retryWithBackoff(func() error {
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			a.pg = pg
			return nil
		}, retries, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.pg.Close)
		if err := a.pg.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		zapLog.Info("PostgreSQL connected successfully")
	}

	cat, err := a.buildCatalog(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	resultCache, err := a.buildCache(ctx, retries)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher, err := a.buildFetcher(ctx, cat, retries)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.learning, err = a.buildLearning(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := engine.Deps{
		Catalog:       cat,
		Cache:         resultCache,
		Fetcher:       fetcher,
		Learning:      a.learning,
		Observability: a.obs,
		Logger:        log,
	}
	if a.pg != nil {
		deps.SourceStore = catalog.NewPostgresSourceStore(a.pg.DB)
	}
	a.engine = engine.New(engine.ConfigFrom(cfg.Search), deps)
	return a, nil
}

func (a *app) buildCatalog(ctx context.Context) (*catalog.Catalog, error) {
	cat := catalog.New(a.log)

	path := a.cfg.Search.RegistryPath
	if _, err := os.Stat(path); err == nil {
		n, err := cat.LoadRegistryFile(path)
		if err != nil {
			return nil, err
		}
		a.zapLog.Info("source registry loaded", zap.String("path", path), zap.Int("sources", n))
	} else {
		a.zapLog.Warn("source registry not found", zap.String("path", path))
	}

	if a.cfg.Search.LoadSourcesFromDB && a.pg != nil {
		n, err := cat.LoadFromStore(ctx, catalog.NewPostgresSourceStore(a.pg.DB))
		if err != nil {
			return nil, err
		}
		a.zapLog.Info("sources loaded from database", zap.Int("sources", n))
	}
	return cat, nil
}

func (a *app) buildCache(ctx context.Context, retries int) (cache.Cache, error) {
	if a.cfg.Search.CacheBackend != "redis" {
		return cache.NewMemoryCache(), nil
	}

	client := database.NewRedis(a.cfg.Database.Redis)
	err := retryWithBackoff(func() error {
		return database.PingRedis(ctx, client)
	}, retries, 2*time.Second, a.zapLog, "Redis connection")
	if err != nil {
		client.Close()
		return nil, err
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	a.zapLog.Info("Redis connected successfully")

	return cache.NewRedisCache(client, a.cfg.Search.CachePrefix, config.GetDuration(a.cfg.Search.CacheTTL), a.log), nil
}

func (a *app) buildFetcher(ctx context.Context, cat *catalog.Catalog, retries int) (sources.Fetcher, error) {
	web := a.cfg.APIs.WebSearch
	router := sources.NewRouter().
		Register(models.KindWebSearch, sources.NewWebSearchFetcher(sources.WebSearchConfig{
			BaseURL:    web.BaseURL,
			APIKey:     web.APIKey,
			EngineID:   web.EngineID,
			MaxResults: web.MaxResults,
		}, commonhttp.NewClient(config.GetDuration(web.Timeout)), a.log)).
		Register(models.KindKnowledgeBase, sources.NewKnowledgeBaseFetcher(cat))

	esCfg := a.cfg.Database.Elasticsearch
	if !esCfg.Enabled() {
		return router, nil
	}

	es, err := database.NewElasticsearch(esCfg, nil)
	if err != nil {
		return nil, err
	}
	err = retryWithBackoff(func() error {
		return database.PingElasticsearch(ctx, es)
	}, retries, 2*time.Second, a.zapLog, "Elasticsearch connection")
	if err != nil {
		return nil, err
	}
	a.es = es
	a.zapLog.Info("Elasticsearch connected successfully")

	router.Register(models.KindSearchIndex, sources.NewIndexFetcher(es, esCfg.Index, web.MaxResults, a.log))
	return router, nil
}

func (a *app) buildLearning(ctx context.Context) (*learning.Service, error) {
	opts := learning.Options{
		RemedialSources: a.cfg.Learning.RemedialSources,
		Retention:       time.Duration(a.cfg.Learning.RetentionDays) * 24 * time.Hour,
		Logger:          a.log,
	}

	var store *learning.PostgresStore
	if a.cfg.Learning.Persist && a.pg != nil {
		store = learning.NewPostgresStore(a.pg.DB)
		opts.Store = store
	}

	if sns := a.cfg.Notifications.SNS; sns.Enabled {
		client, err := awsclients.NewSNSClient(ctx, a.cfg.Notifications.AWS.Region, sns.TopicARN)
		if err != nil {
			return nil, err
		}
		opts.Notifier = learning.NewSNSNotifier(client)
	}

	svc := learning.NewService(opts)
	if store != nil {
		gaps, err := store.LoadGaps(ctx)
		if err != nil {
			a.zapLog.Warn("failed to restore knowledge gaps", zap.Error(err))
		} else {
			a.zapLog.Info("knowledge gaps restored", zap.Int("gaps", svc.RestoreGaps(gaps)))
		}
	}
	return svc, nil
}

// readinessChecks lists a ping per connected backend.
func (a *app) readinessChecks() []api.ReadinessCheck {
	var checks []api.ReadinessCheck
	if a.pg != nil {
		checks = append(checks, api.ReadinessCheck{Name: "postgres", Check: a.pg.Ping})
	}
	if a.redis != nil {
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return database.PingRedis(ctx, a.redis)
		}})
	}
	if a.es != nil {
		checks = append(checks, api.ReadinessCheck{Name: "elasticsearch", Check: func(ctx context.Context) error {
			return database.PingElasticsearch(ctx, a.es)
		}})
	}
	return checks
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	a.obs.Shutdown()
	return errors.Join(errs...)
}
