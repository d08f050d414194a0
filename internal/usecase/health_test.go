package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"HealthIngest/internal/domain"
	"HealthIngest/internal/logging"
)

type slowPinger struct{}

func (slowPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestProberChecksEveryStore(t *testing.T) {
	p := NewProber(pinger{err: errors.New("refused")}, slowPinger{}, pinger{}, 20*time.Millisecond, logging.Discard())
	fixed := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	p.now = func() time.Time { return fixed }

	report := p.Check(context.Background())

	assert.Equal(t, domain.VerdictFail, report.Relational)
	assert.Equal(t, domain.VerdictFail, report.Document)
	assert.Equal(t, domain.VerdictOK, report.Vector)
	assert.Equal(t, fixed.UTC(), report.CheckedAt)
	assert.Contains(t, report.Errors[domain.StoreRelational], "refused")
	assert.Contains(t, report.Errors[domain.StoreDocument], "deadline")
	assert.False(t, report.Healthy())
}

func TestProberHealthy(t *testing.T) {
	report := NewProber(pinger{}, pinger{}, pinger{}, 0, nil).Check(context.Background())
	assert.True(t, report.Healthy())
	assert.Empty(t, report.Errors)
}

func TestProberReportsMissingStore(t *testing.T) {
	report := NewProber(nil, pinger{}, pinger{}, time.Second, logging.Discard()).Check(context.Background())
	assert.Equal(t, domain.VerdictFail, report.Relational)
	assert.Equal(t, "not configured", report.Errors[domain.StoreRelational])
}
