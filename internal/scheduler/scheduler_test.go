package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/saadjs/nutrisync/internal/poll"
	"github.com/saadjs/nutrisync/internal/service"
)

type fakeSyncer struct {
	mu    sync.Mutex
	calls [][]string
	limit int
	err   error
}

func (f *fakeSyncer) SyncDays(_ context.Context, days []string, limit int) ([]service.SyncOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), days...))
	f.limit = limit
	out := make([]service.SyncOutcome, len(days))
	for i, d := range days {
		out[i] = service.SyncOutcome{Day: d, Status: poll.StatusComplete}
	}
	return out, f.err
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestDaysCoversLookbackWindowOldestFirst(t *testing.T) {
	s := New(&fakeSyncer{}, Options{LookbackDays: 3, Location: time.UTC})
	s.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }

	require.Equal(t, []string{"2026-02-27", "2026-02-28", "2026-03-01"}, s.Days())
}

func TestDaysUsesConfiguredLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	s := New(&fakeSyncer{}, Options{Location: tokyo})
	s.now = func() time.Time { return time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC) }

	require.Equal(t, []string{"2026-01-11"}, s.Days())
}

func TestRunOncePassesDaysAndConcurrency(t *testing.T) {
	f := &fakeSyncer{err: errors.New("boom")}
	s := New(f, Options{LookbackDays: 2, Concurrency: 4, Location: time.UTC, Logger: zaptest.NewLogger(t)})
	s.now = func() time.Time { return time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC) }

	outcomes, err := s.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, outcomes, 2)
	require.Equal(t, [][]string{{"2026-05-01", "2026-05-02"}}, f.calls)
	require.Equal(t, 4, f.limit)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := New(&fakeSyncer{}, Options{Schedule: "not a schedule"})
	require.Error(t, s.Start(context.Background()))
	s.Stop()
}

func TestStartRunsTicksUntilStopped(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeSyncer{}
	s := New(f, Options{Schedule: "@every 1s", Location: time.UTC, Logger: zaptest.NewLogger(t)})
	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return f.callCount() > 0 }, 5*time.Second, 50*time.Millisecond)
	s.Stop()
	s.Stop()
}
