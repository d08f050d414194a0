package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"HealthIngest/internal/config"
	"HealthIngest/internal/domain"
	"HealthIngest/internal/infrastructure/docstore"
	"HealthIngest/internal/infrastructure/embedding"
	"HealthIngest/internal/infrastructure/parser"
	"HealthIngest/internal/infrastructure/scheduler"
	"HealthIngest/internal/infrastructure/storage"
	"HealthIngest/internal/infrastructure/vectorstore"
	"HealthIngest/internal/logging"
	"HealthIngest/internal/metrics"
	"HealthIngest/internal/normalize"
	"HealthIngest/internal/scanner"
	"HealthIngest/internal/usecase"
)

const (
	pingTimeout     = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Application wires configs to use cases and owns the store clients.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	redis    *redis.Client
	source   *parser.StrategySource
	prober   *usecase.Prober
	pipeline *usecase.Pipeline
	metrics  *metrics.Recorder
	vocabErr error
}

// New builds the store clients and the pipeline. Clients connect lazily, so
// an unreachable store only shows up in Health or in a run's result.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)

	embedder, err := embedding.New(cfg.Embedder, baseLogger)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	relational := storage.NewPostgresRepository(pool, cfg.Postgres.ChunkSize)
	documents := docstore.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
	vectors := vectorstore.NewChromaStore(cfg.Chroma, embedder, baseLogger)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewConditionScanner(nil, baseLogger.With("component", "scanner.condition")))
	source := parser.NewStrategySource(registry, cfg.Sources, baseLogger.With("component", "source"))
	if err := source.Validate(); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("sources: %w", err)
	}

	var normalizer *normalize.Normalizer
	vocab, vocabErr := normalize.LoadVocabulary(cfg.Dataset.VocabularyPath)
	if vocabErr != nil {
		baseLogger.Warn("vocabulary not loaded, dataset ingestion disabled", "path", cfg.Dataset.VocabularyPath, "error", vocabErr)
	} else {
		normalizer = normalize.New(vocab, normalize.Options{
			Placeholders: cfg.Dataset.Placeholders,
			DropColumns:  cfg.Dataset.DropColumns,
		})
	}

	prober := usecase.NewProber(relational, documents, vectors, pingTimeout, baseLogger)
	recorder := metrics.NewRecorder()

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:          source,
		Relational:      relational,
		Documents:       documents,
		Vectors:         vectors,
		Normalizer:      normalizer,
		Prober:          prober,
		Preflight:       cfg.Pipeline.Preflight,
		Metrics:         recorder,
		Logger:          baseLogger,
		Retry:           usecase.RetryPolicy{MaxRetries: cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.BaseDelay},
		StoreTimeout:    cfg.Pipeline.StoreTimeout,
		Web:             target(cfg.Pipeline.Web),
		Dataset:         target(cfg.Pipeline.Dataset),
		AuditCollection: cfg.Pipeline.AuditCollection,
		SampleLimit:     cfg.Dataset.SampleLimit,
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		pool:     pool,
		redis:    redisClient,
		source:   source,
		prober:   prober,
		pipeline: pipeline,
		metrics:  recorder,
		vocabErr: vocabErr,
	}, nil
}

func target(t config.TargetConfig) usecase.Target {
	return usecase.Target{
		Table:              t.Table,
		WriteMode:          domain.WriteMode(t.WriteMode),
		DocumentCollection: t.DocumentCollection,
		VectorCollection:   t.VectorCollection,
	}
}

// SourceRun pairs a configured source with the result of its run.
type SourceRun struct {
	Source string
	Result domain.FanOutResult
}

// RunWeb ingests the named sources, or every configured one when none is given.
func (a *Application) RunWeb(ctx context.Context, sources ...string) ([]SourceRun, error) {
	if len(sources) == 0 {
		sources = a.source.Sources()
	}

	runs := make([]SourceRun, 0, len(sources))
	var errs []error
	for _, name := range sources {
		result, err := a.pipeline.RunWeb(ctx, name)
		runs = append(runs, SourceRun{Source: name, Result: result})
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", name, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return runs, errors.Join(errs...)
}

// RunDataset ingests a CSV file; an empty path uses dataset.path from config.
func (a *Application) RunDataset(ctx context.Context, path string) (domain.FanOutResult, error) {
	if a.vocabErr != nil {
		return domain.SkippedResult(), fmt.Errorf("load vocabulary: %w", a.vocabErr)
	}
	if path == "" {
		path = a.cfg.Dataset.Path
	}
	if path == "" {
		return domain.SkippedResult(), errors.New("no dataset file given")
	}
	return a.pipeline.RunDataset(ctx, path)
}

// Health pings the three stores.
func (a *Application) Health(ctx context.Context) domain.HealthReport {
	return a.prober.Check(ctx)
}

// Watch runs web ingestion on the configured cron schedule until ctx is done,
// serving Prometheus metrics when metrics.addr is set.
func (a *Application) Watch(ctx context.Context, runOnStart bool) error {
	var opts []scheduler.Option
	if runOnStart {
		opts = append(opts, scheduler.WithRunOnStart())
	}
	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger, opts...)
	if err != nil {
		return err
	}

	var server *http.Server
	serverErr := make(chan error, 1)
	if addr := a.cfg.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.logger.Info("metrics endpoint listening", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	jobs := usecase.NewScheduler(driver, a.pipeline, a.source.Sources(), a.logger)
	if err := jobs.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		err = fmt.Errorf("metrics endpoint: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	stopErr := jobs.Stop(shutdownCtx)
	if server != nil {
		stopErr = errors.Join(stopErr, server.Shutdown(shutdownCtx))
	}
	return errors.Join(err, stopErr)
}

// Metrics exposes the recorder shared by every run.
func (a *Application) Metrics() *metrics.Recorder {
	return a.metrics
}

// Close releases the store clients.
func (a *Application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
}
