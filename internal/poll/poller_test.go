package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/saadjs/nutrisync/internal/provider/nutrientapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeResponse struct {
	resp nutrientapi.StatusResponse
	err  error
}

type fakeClient struct {
	mu        sync.Mutex
	startErr  error
	responses []fakeResponse
	fallback  fakeResponse
	calls     int
	onStatus  func(call int)
}

func (f *fakeClient) StartSummary(_ context.Context, date string, _ []nutrientapi.Item) (nutrientapi.JobHandle, error) {
	if f.startErr != nil {
		return nutrientapi.JobHandle{}, f.startErr
	}
	return nutrientapi.JobHandle{UserID: "u1", Date: date}, nil
}

func (f *fakeClient) Status(_ context.Context, _ nutrientapi.JobHandle) (nutrientapi.StatusResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	r := f.fallback
	if call <= len(f.responses) {
		r = f.responses[call-1]
	}
	hook := f.onStatus
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return r.resp, r.err
}

func (f *fakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func pending() fakeResponse {
	return fakeResponse{resp: nutrientapi.StatusResponse{Status: nutrientapi.StatusPending}}
}

func complete() fakeResponse {
	return fakeResponse{resp: nutrientapi.StatusResponse{
		Status: nutrientapi.StatusComplete,
		Summary: &nutrientapi.Summary{
			Parsed: nutrientapi.ParsedSummary{Date: "2024-01-05", Totals: map[string]float64{"calories": 900}},
		},
	}}
}

// newRecordingPoller swaps the real timer for one that records each delay.
func newRecordingPoller(t *testing.T, c Client, cfg Config) (*Poller, *[]time.Duration) {
	t.Helper()
	p := New(c, cfg, zaptest.NewLogger(t))
	delays := make([]time.Duration, 0)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return p, &delays
}

func TestWaitCompletesAfterPendingPolls(t *testing.T) {
	t.Parallel()

	client := &fakeClient{responses: []fakeResponse{pending(), pending(), complete()}}
	cfg := Config{InitialInterval: 1200 * time.Millisecond, MaxInterval: 10 * time.Second, Multiplier: 1.4, MaxAttempts: 10}
	p, delays := newRecordingPoller(t, client, cfg)

	job, summary := p.Run(context.Background(), "2024-01-05", []nutrientapi.Item{{Name: "oats", Quantity: 1}})

	require.Equal(t, StatusComplete, job.Status)
	require.NoError(t, job.Err)
	require.NotNil(t, summary)
	require.Equal(t, 900.0, summary.Parsed.Totals["calories"])
	require.Equal(t, 3, client.Calls())
	require.Equal(t, 3, job.Attempt)

	require.Len(t, *delays, 2)
	require.Equal(t, 1200*time.Millisecond, (*delays)[0])
	for i := 1; i < len(*delays); i++ {
		require.GreaterOrEqual(t, (*delays)[i], (*delays)[i-1])
	}
	for _, d := range *delays {
		require.LessOrEqual(t, d, cfg.MaxInterval)
	}
}

func TestWaitTimesOutWithoutError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fallback: pending()}
	cfg := Config{InitialInterval: time.Second, MaxInterval: 2 * time.Second, Multiplier: 1.4, MaxAttempts: 6}
	p, delays := newRecordingPoller(t, client, cfg)

	job, summary := p.Run(context.Background(), "2024-01-05", nil)

	require.Equal(t, StatusTimedOut, job.Status)
	require.NoError(t, job.Err)
	require.Nil(t, summary)
	require.Equal(t, 6, client.Calls())
	require.Len(t, *delays, 5)
	for i, d := range *delays {
		require.LessOrEqual(t, d, 2*time.Second)
		if i > 0 {
			require.GreaterOrEqual(t, d, (*delays)[i-1])
		}
	}
	require.Equal(t, 2*time.Second, (*delays)[len(*delays)-1])
}

func TestWaitTreatsErrorsAndMalformedAsPending(t *testing.T) {
	t.Parallel()

	client := &fakeClient{responses: []fakeResponse{
		{err: errors.New("connection reset")},
		{resp: nutrientapi.StatusResponse{Status: nutrientapi.StatusComplete}},
		{resp: nutrientapi.StatusResponse{Status: "weird"}},
		complete(),
	}}
	p, _ := newRecordingPoller(t, client, Config{MaxAttempts: 10})

	job, summary := p.Run(context.Background(), "2024-01-05", nil)

	require.Equal(t, StatusComplete, job.Status)
	require.NotNil(t, summary)
	require.Equal(t, 4, client.Calls())
}

func TestServiceReportedFailureIsTerminal(t *testing.T) {
	t.Parallel()

	client := &fakeClient{responses: []fakeResponse{
		pending(),
		{resp: nutrientapi.StatusResponse{Status: nutrientapi.StatusFailed, Error: "llm unavailable"}},
	}}
	p, _ := newRecordingPoller(t, client, Config{MaxAttempts: 10})

	job, summary := p.Run(context.Background(), "2024-01-05", nil)

	require.Equal(t, StatusFailed, job.Status)
	require.ErrorIs(t, job.Err, ErrJobFailed)
	require.Nil(t, summary)
	require.Equal(t, 2, client.Calls())
}

func TestSubmitFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	client := &fakeClient{startErr: errors.New("dial tcp: refused")}
	p, delays := newRecordingPoller(t, client, Config{})

	job, summary := p.Run(context.Background(), "2024-01-05", nil)

	require.Equal(t, StatusFailed, job.Status)
	require.ErrorIs(t, job.Err, ErrSubmitFailed)
	require.Nil(t, summary)
	require.Zero(t, client.Calls())
	require.Empty(t, *delays)
}

func TestCancellationStopsPolling(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &fakeClient{fallback: pending(), onStatus: func(call int) {
		if call == 2 {
			cancel()
		}
	}}
	p, _ := newRecordingPoller(t, client, Config{MaxAttempts: 50})

	job, summary := p.Run(ctx, "2024-01-05", nil)

	require.Equal(t, StatusCancelled, job.Status)
	require.ErrorIs(t, job.Err, context.Canceled)
	require.Nil(t, summary)
	require.Equal(t, 2, client.Calls())
}

func TestWaitWithRealTimer(t *testing.T) {
	t.Parallel()

	client := &fakeClient{responses: []fakeResponse{pending(), complete()}}
	p := New(client, Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      1.4,
		Jitter:          0.2,
		MaxAttempts:     5,
	}, zaptest.NewLogger(t))

	job, summary := p.Run(context.Background(), "2024-01-05", nil)
	require.Equal(t, StatusComplete, job.Status)
	require.NotNil(t, summary)
	require.LessOrEqual(t, job.Interval, 5*time.Millisecond)
}

func TestCancelledDuringRealSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	client := &fakeClient{fallback: pending()}
	p := New(client, Config{InitialInterval: time.Hour, MaxInterval: time.Hour, MaxAttempts: 3}, zaptest.NewLogger(t))

	job, _ := p.Run(ctx, "2024-01-05", nil)
	require.Equal(t, StatusCancelled, job.Status)
	require.ErrorIs(t, job.Err, context.DeadlineExceeded)
	require.Equal(t, 1, client.Calls())
}

func TestJitterStaysUnderCap(t *testing.T) {
	t.Parallel()

	cfg := Config{InitialInterval: time.Second, MaxInterval: 3 * time.Second, Multiplier: 1.4, Jitter: 0.5, MaxAttempts: 30}
	client := &fakeClient{fallback: pending()}
	p, delays := newRecordingPoller(t, client, cfg)

	job, _ := p.Run(context.Background(), "2024-01-05", nil)
	require.Equal(t, StatusTimedOut, job.Status)
	for _, d := range *delays {
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestJitteredDelaysNeverDecrease(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for run := 0; run < 20; run++ {
		client := &fakeClient{fallback: pending()}
		p, delays := newRecordingPoller(t, client, cfg)

		job, _ := p.Run(context.Background(), "2024-01-05", nil)
		require.Equal(t, StatusTimedOut, job.Status)
		require.Len(t, *delays, cfg.MaxAttempts-1)
		require.GreaterOrEqual(t, (*delays)[0], cfg.InitialInterval)
		for i, d := range *delays {
			require.LessOrEqual(t, d, cfg.MaxInterval, "run %d delay %d", run, i)
			if i > 0 {
				require.GreaterOrEqual(t, d, (*delays)[i-1], "run %d delay %d", run, i)
			}
		}
	}
}

func TestJitterIsAddedOnTopOfBase(t *testing.T) {
	t.Parallel()

	cfg := Config{InitialInterval: time.Second, MaxInterval: 10 * time.Second, Multiplier: 2, Jitter: 0.1, MaxAttempts: 3}
	client := &fakeClient{fallback: pending()}
	p, delays := newRecordingPoller(t, client, cfg)
	p.rand = func() float64 { return 1 }

	p.Run(context.Background(), "2024-01-05", nil)
	require.Equal(t, []time.Duration{1100 * time.Millisecond, 2200 * time.Millisecond}, *delays)
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxInterval: time.Millisecond, Jitter: 2}.withDefaults()
	require.Equal(t, 1500*time.Millisecond, cfg.InitialInterval)
	require.Equal(t, cfg.InitialInterval, cfg.MaxInterval)
	require.Equal(t, 1.4, cfg.Multiplier)
	require.Equal(t, 0.1, cfg.Jitter)
	require.Equal(t, 20, cfg.MaxAttempts)
}
