package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"HealthIngest/internal/domain"
	"HealthIngest/internal/ports"
)

const defaultPingTimeout = 5 * time.Second

// Prober pings the three stores independently.
type Prober struct {
	stores  [3]ports.Pinger
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewProber takes the stores in relational, document, vector order; a nil
// store is reported as failing.
func NewProber(relational, document, vector ports.Pinger, timeout time.Duration, log *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Prober{
		stores:  [3]ports.Pinger{relational, document, vector},
		timeout: timeout,
		logger:  log.With("component", "prober"),
		now:     time.Now,
	}
}

// Check never fails as a whole: each store gets its own verdict.
func (p *Prober) Check(ctx context.Context) domain.HealthReport {
	names := [3]string{domain.StoreRelational, domain.StoreDocument, domain.StoreVector}
	var errs [3]error

	var g errgroup.Group
	for i, store := range p.stores {
		g.Go(func() error {
			errs[i] = p.ping(ctx, store)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.HealthReport{CheckedAt: p.now().UTC()}
	verdicts := [3]*domain.Verdict{&report.Relational, &report.Document, &report.Vector}
	for i, err := range errs {
		*verdicts[i] = domain.VerdictOK
		if err == nil {
			continue
		}
		*verdicts[i] = domain.VerdictFail
		if report.Errors == nil {
			report.Errors = make(map[string]string, len(errs))
		}
		report.Errors[names[i]] = err.Error()
		p.logger.Warn("store unreachable", "store", names[i], "error", err)
	}
	return report
}

func (p *Prober) ping(ctx context.Context, store ports.Pinger) error {
	if store == nil {
		return errors.New("not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return store.Ping(ctx)
}
