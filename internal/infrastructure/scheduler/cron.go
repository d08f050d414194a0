package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"HealthIngest/internal/ports"
)

// CronScheduler triggers a job on a standard five-field cron expression.
type CronScheduler struct {
	spec       string
	loc        *time.Location
	runOnStart bool
	logger     *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// Option tweaks a CronScheduler.
type Option func(*CronScheduler)

// WithRunOnStart fires the job once as soon as Start is called.
func WithRunOnStart() Option {
	return func(c *CronScheduler) { c.runOnStart = true }
}

// NewCronScheduler validates the expression up front.
func NewCronScheduler(spec string, loc *time.Location, log *slog.Logger, opts ...Option) (*CronScheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	c := &CronScheduler{spec: spec, loc: loc, logger: log.With("component", "cron")}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start registers the job; overlapping triggers are skipped while a run is in
// progress. The scheduler stops by itself when ctx is done.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	runner := cron.New(
		cron.WithLocation(c.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now().In(c.loc)) }); err != nil {
		return fmt.Errorf("register cron job: %w", err)
	}
	runner.Start()
	c.cron = runner
	c.logger.Info("scheduler started", "spec", c.spec, "timezone", c.loc.String())

	if c.runOnStart {
		go job(time.Now().In(c.loc))
	}

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Next reports the upcoming trigger time, zero when not started.
func (c *CronScheduler) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron == nil {
		return time.Time{}
	}
	entries := c.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts the scheduler and waits for a running job, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	done := runner.Stop()
	select {
	case <-done.Done():
		c.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
