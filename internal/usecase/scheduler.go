package usecase

import (
	"context"
	"log/slog"
	"time"

	"HealthIngest/internal/ports"
)

// Scheduler wires the cron-like driver with the web ingestion use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	sources  []string
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring web ingestion of sources.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, sources []string, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, sources: sources, logger: log.With("component", "scheduler")}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) { s.RunOnce(ctx, trigger) })
}

// RunOnce ingests every source in turn; one failing source does not stop the rest.
func (s *Scheduler) RunOnce(ctx context.Context, trigger time.Time) {
	for _, source := range s.sources {
		if ctx.Err() != nil {
			return
		}
		result, err := s.pipeline.RunWeb(ctx, source)
		if err != nil {
			s.logger.Error("scheduled run failed", "source", source, "trigger", trigger, "error", err)
			continue
		}
		s.logger.Info("scheduled run done", "source", source, "trigger", trigger, "status", result.Status)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
