package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HealthIngest/internal/logging"
)

func TestNewCronSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewCronScheduler("every morning", time.UTC, logging.Discard())
	assert.Error(t, err)
}

func TestRunOnStartAndStop(t *testing.T) {
	s, err := NewCronScheduler("0 6 * * *", time.UTC, logging.Discard(), WithRunOnStart())
	require.NoError(t, err)

	fired := make(chan time.Time, 1)
	require.NoError(t, s.Start(context.Background(), func(at time.Time) { fired <- at }))

	select {
	case at := <-fired:
		assert.Equal(t, time.UTC, at.Location())
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}

	next := s.Next()
	assert.Equal(t, 6, next.Hour())
	assert.Equal(t, 0, next.Minute())

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, s.Next().IsZero())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestStopsWithContext(t *testing.T) {
	s, err := NewCronScheduler("*/5 * * * *", time.UTC, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, func(time.Time) {}))
	cancel()

	assert.Eventually(t, func() bool { return s.Next().IsZero() }, 2*time.Second, 10*time.Millisecond)
}
