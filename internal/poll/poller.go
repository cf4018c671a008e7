// Package poll drives asynchronous analysis jobs from submission to a
// terminal status under bounded exponential backoff.
package poll

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/saadjs/nutrisync/internal/provider/nutrientapi"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusPolling   Status = "polling"
	StatusComplete  Status = "complete"
	StatusTimedOut  Status = "timed_out"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusTimedOut, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

var (
	// ErrSubmitFailed wraps transport or HTTP errors from the single submit attempt.
	ErrSubmitFailed = errors.New("analysis submit failed")
	// ErrJobFailed is set when the service itself reports the job as failed.
	ErrJobFailed = errors.New("analysis job failed")
)

type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64 // upper bound of added jitter as a fraction of the delay, 0 disables it
	MaxAttempts     int
}

func DefaultConfig() Config {
	return Config{
		InitialInterval: 1500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      1.4,
		Jitter:          0.1,
		MaxAttempts:     20,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialInterval <= 0 {
		c.InitialInterval = def.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.MaxInterval < c.InitialInterval {
		c.MaxInterval = c.InitialInterval
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = def.Jitter
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	return c
}

func (c Config) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          c.Multiplier,
		MaxInterval:         c.MaxInterval,
	}
	b.Reset()
	return b
}

// Job is the value passed into and returned from the poller. Nothing about
// a job is kept by the Poller between calls.
type Job struct {
	Handle      nutrientapi.JobHandle
	Items       []nutrientapi.Item
	Attempt     int
	Interval    time.Duration
	MaxAttempts int
	Status      Status
	Err         error
}

// Client is the subset of the analysis API the poller drives.
type Client interface {
	StartSummary(ctx context.Context, date string, items []nutrientapi.Item) (nutrientapi.JobHandle, error)
	Status(ctx context.Context, job nutrientapi.JobHandle) (nutrientapi.StatusResponse, error)
}

type Poller struct {
	client Client
	cfg    Config
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	rand   func() float64
}

func New(client Client, cfg Config, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger,
		sleep:  sleepContext,
		rand:   rand.Float64,
	}
}

// Submit makes exactly one submission attempt. Failures are returned as a
// Failed job and are never retried here.
func (p *Poller) Submit(ctx context.Context, date string, items []nutrientapi.Item) Job {
	job := Job{
		Items:       items,
		Interval:    p.cfg.InitialInterval,
		MaxAttempts: p.cfg.MaxAttempts,
	}
	handle, err := p.client.StartSummary(ctx, date, items)
	if err != nil {
		job.Status = StatusFailed
		job.Err = fmt.Errorf("%w: %v", ErrSubmitFailed, err)
		p.logger.Warn("analysis submit failed", zap.String("day", date), zap.Error(err))
		return job
	}
	job.Handle = handle
	job.Status = StatusSubmitted
	p.logger.Debug("analysis submitted", zap.String("day", date), zap.Int("items", len(items)))
	return job
}

// PollOnce issues a single status request. Transport errors, malformed
// bodies and pending answers all leave the job Polling.
func (p *Poller) PollOnce(ctx context.Context, job Job) (Job, *nutrientapi.Summary) {
	if job.Status.Terminal() {
		return job, nil
	}
	job.Status = StatusPolling
	job.Attempt++

	resp, err := p.client.Status(ctx, job.Handle)
	if err != nil {
		p.logger.Debug("status poll failed, retrying",
			zap.String("day", job.Handle.Date),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		return job, nil
	}
	switch resp.Status {
	case nutrientapi.StatusComplete:
		if resp.Summary == nil {
			p.logger.Debug("complete status without summary, retrying",
				zap.String("day", job.Handle.Date),
				zap.Int("attempt", job.Attempt),
			)
			return job, nil
		}
		job.Status = StatusComplete
		return job, resp.Summary
	case nutrientapi.StatusFailed:
		job.Status = StatusFailed
		job.Err = fmt.Errorf("%w: %s", ErrJobFailed, resp.Error)
		return job, nil
	}
	return job, nil
}

// Wait polls until the job is terminal, the attempt budget is spent, or ctx
// is cancelled. Timeout and cancellation are reported through job.Status;
// the summary is non-nil only for Complete.
func (p *Poller) Wait(ctx context.Context, job Job) (Job, *nutrientapi.Summary) {
	if job.Status.Terminal() {
		return job, nil
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = p.cfg.MaxAttempts
	}
	b := p.cfg.newBackOff()
	var prev time.Duration

	for {
		if err := ctx.Err(); err != nil {
			return p.cancel(job, err), nil
		}

		var summary *nutrientapi.Summary
		job, summary = p.PollOnce(ctx, job)
		if job.Status.Terminal() {
			p.logger.Info("analysis job finished",
				zap.String("day", job.Handle.Date),
				zap.String("status", string(job.Status)),
				zap.Int("attempt", job.Attempt),
			)
			return job, summary
		}
		if job.Attempt >= job.MaxAttempts {
			job.Status = StatusTimedOut
			p.logger.Warn("analysis job timed out",
				zap.String("day", job.Handle.Date),
				zap.Int("attempt", job.Attempt),
			)
			return job, nil
		}

		job.Interval = p.nextDelay(b, prev)
		prev = job.Interval
		if err := p.sleep(ctx, job.Interval); err != nil {
			return p.cancel(job, err), nil
		}
	}
}

// Run submits and then waits.
func (p *Poller) Run(ctx context.Context, date string, items []nutrientapi.Item) (Job, *nutrientapi.Summary) {
	job := p.Submit(ctx, date, items)
	if job.Status.Terminal() {
		return job, nil
	}
	return p.Wait(ctx, job)
}

// nextDelay adds only positive jitter to the exponential base, caps it at
// MaxInterval and never returns less than the previous delay.
func (p *Poller) nextDelay(b *backoff.ExponentialBackOff, prev time.Duration) time.Duration {
	base := b.NextBackOff()
	d := base + time.Duration(p.rand()*p.cfg.Jitter*float64(base))
	if d > p.cfg.MaxInterval {
		d = p.cfg.MaxInterval
	}
	return max(d, prev)
}

func (p *Poller) cancel(job Job, err error) Job {
	job.Status = StatusCancelled
	job.Err = err
	p.logger.Info("analysis job cancelled",
		zap.String("day", job.Handle.Date),
		zap.Int("attempt", job.Attempt),
	)
	return job
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
