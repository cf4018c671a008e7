// Package scheduler runs the sync pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/saadjs/nutrisync/internal/service"
)

// DaySyncer is the part of service.Syncer the scheduler drives.
type DaySyncer interface {
	SyncDays(ctx context.Context, days []string, limit int) ([]service.SyncOutcome, error)
}

type Options struct {
	Schedule     string
	LookbackDays int
	Concurrency  int
	Location     *time.Location
	Logger       *zap.Logger
}

type Scheduler struct {
	syncer DaySyncer
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	cron *rcron.Cron
}

func New(syncer DaySyncer, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 1
	}
	return &Scheduler{syncer: syncer, opts: opts, logger: opts.Logger, now: time.Now}
}

// Start registers the sync tick and starts the cron loop. Ticks that fire
// while the previous one is still running are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := rcron.New(
		rcron.WithLocation(s.opts.Location),
		rcron.WithChain(rcron.SkipIfStillRunning(cronLogger{s.logger.Sugar()})),
	)
	if _, err := c.AddFunc(s.opts.Schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Warn("scheduled sync finished with errors", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.opts.Schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("scheduler started", zap.String("schedule", s.opts.Schedule), zap.Int("lookback_days", s.opts.LookbackDays))
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Days returns the days covered by one tick, oldest first.
func (s *Scheduler) Days() []string {
	today := s.now().In(s.opts.Location)
	days := make([]string, 0, s.opts.LookbackDays)
	for i := s.opts.LookbackDays - 1; i >= 0; i-- {
		days = append(days, service.DayOf(today.AddDate(0, 0, -i), s.opts.Location))
	}
	return days
}

// RunOnce syncs every day in the lookback window.
func (s *Scheduler) RunOnce(ctx context.Context) ([]service.SyncOutcome, error) {
	days := s.Days()
	s.logger.Debug("sync tick", zap.Strings("days", days))
	outcomes, err := s.syncer.SyncDays(ctx, days, s.opts.Concurrency)
	for _, o := range outcomes {
		s.logger.Info("day synced",
			zap.String("day", o.Day),
			zap.String("status", string(o.Status)),
			zap.Int("submitted", o.Submitted),
			zap.Int("applied", o.Applied),
			zap.Int("dropped", o.Dropped),
		)
	}
	return outcomes, err
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
