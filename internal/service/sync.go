package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/poll"
	"github.com/saadjs/nutrisync/internal/provider/nutrientapi"
)

const (
	SyncModeSync  = "sync"
	SyncModeAsync = "async"
)

// Analyzer is the analysis API used by the sync pipeline.
type Analyzer interface {
	poll.Client
	Analyze(ctx context.Context, items []nutrientapi.Item) (nutrientapi.AnalyzeResponse, error)
}

type EntryStore interface {
	DayMeals(ctx context.Context, day string) ([]model.LogEntry, error)
	ApplyAnalyzed(ctx context.Context, e model.LogEntry) (bool, error)
	RecordSyncRun(ctx context.Context, run model.SyncRun) error
}

// SQLStore adapts a database handle to EntryStore.
type SQLStore struct {
	DB *sql.DB
}

func (s SQLStore) DayMeals(ctx context.Context, day string) ([]model.LogEntry, error) {
	return ListEntriesContext(ctx, s.DB, ListEntriesFilter{Date: day, Category: string(model.CategoryMeal)})
}

func (s SQLStore) ApplyAnalyzed(ctx context.Context, e model.LogEntry) (bool, error) {
	return ApplyAnalyzedNutrition(ctx, s.DB, e)
}

func (s SQLStore) RecordSyncRun(ctx context.Context, run model.SyncRun) error {
	return RecordSyncRun(ctx, s.DB, run)
}

type SyncOutcome struct {
	Day       string
	Mode      string
	Status    poll.Status
	Attempts  int
	Submitted int
	Matched   int
	Applied   int
	Dropped   int
	Matches   []Match
}

type SyncerOptions struct {
	Mode   string
	Poll   poll.Config
	Logger *zap.Logger
}

// Syncer runs the snapshot, submit, poll, reconcile and persist pipeline.
// Jobs for the same day apply their results in submission order.
type Syncer struct {
	store    EntryStore
	analyzer Analyzer
	poller   *poll.Poller
	mode     string
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	tails      map[string]chan struct{}
	submitting map[string]*sync.Mutex
}

func NewSyncer(store EntryStore, analyzer Analyzer, opts SyncerOptions) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := opts.Mode
	if mode != SyncModeSync {
		mode = SyncModeAsync
	}
	return &Syncer{
		store:      store,
		analyzer:   analyzer,
		poller:     poll.New(analyzer, opts.Poll, logger.Named("poll")),
		mode:       mode,
		logger:     logger,
		now:        time.Now,
		tails:      make(map[string]chan struct{}),
		submitting: make(map[string]*sync.Mutex),
	}
}

// SyncDay analyzes the meal entries of day as they exist right now. A timed
// out job is reported through the outcome with a nil error and leaves every
// entry untouched, as do failures and cancellation.
func (s *Syncer) SyncDay(ctx context.Context, day string) (SyncOutcome, error) {
	out := SyncOutcome{Day: day, Mode: s.mode}
	if err := ValidateDay(day); err != nil {
		return out, err
	}
	started := s.now()

	// Snapshot, ticket and submission happen under the day's lock so the
	// ticket order is the order the service received the jobs in.
	unlock := s.lockDay(day)
	snapshot, err := s.store.DayMeals(ctx, day)
	if err != nil {
		unlock()
		return out, fmt.Errorf("snapshot meals for %s: %w", day, err)
	}
	if len(snapshot) == 0 {
		unlock()
		out.Status = poll.StatusComplete
		s.logger.Info("no meals to sync", zap.String("day", day))
		return out, nil
	}
	items := buildItems(snapshot)
	out.Submitted = len(items)

	prev, mine := s.enqueue(day)
	job, results := s.submit(ctx, day, items)
	unlock()

	waited := false
	defer func() {
		if waited {
			s.release(day, mine)
			return
		}
		// Keep later jobs behind the ones queued before this one.
		go func() {
			if prev != nil {
				<-prev
			}
			s.release(day, mine)
		}()
	}()

	if !job.Status.Terminal() {
		var summary *nutrientapi.Summary
		job, summary = s.poller.Wait(ctx, job)
		if summary != nil {
			results = summary.Results
		}
	}
	out.Status = job.Status
	out.Attempts = job.Attempt

	if job.Status == poll.StatusComplete {
		if err := waitTurn(ctx, prev); err != nil {
			job.Status = poll.StatusCancelled
			job.Err = err
			out.Status = job.Status
		} else {
			waited = true
			if err := s.apply(ctx, day, snapshot, results, &out); err != nil {
				s.record(ctx, out, started, err)
				return out, err
			}
		}
	}

	var runErr error
	switch job.Status {
	case poll.StatusFailed:
		runErr = fmt.Errorf("%w for %s: %w", ErrAnalysisFailed, day, job.Err)
	case poll.StatusCancelled:
		runErr = job.Err
	case poll.StatusTimedOut:
		s.logger.Warn("analysis timed out, entries unchanged", zap.String("day", day), zap.Int("attempt", job.Attempt))
	}
	s.record(ctx, out, started, runErr)
	return out, runErr
}

// SyncDays syncs several days with at most limit jobs in flight. Each day's
// outcome is returned in input order; errors are joined.
func (s *Syncer) SyncDays(ctx context.Context, days []string, limit int) ([]SyncOutcome, error) {
	outcomes := make([]SyncOutcome, len(days))
	errs := make([]error, len(days))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, day := range days {
		g.Go(func() error {
			outcomes[i], errs[i] = s.SyncDay(ctx, day)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, errors.Join(errs...)
}

// submit sends items once. Sync mode returns a terminal job with inline
// results; async mode returns a Submitted job for the poller to wait on.
func (s *Syncer) submit(ctx context.Context, day string, items []nutrientapi.Item) (poll.Job, []nutrientapi.Result) {
	if s.mode == SyncModeAsync {
		return s.poller.Submit(ctx, day, items), nil
	}
	job := poll.Job{Items: items, Handle: nutrientapi.JobHandle{Date: day}}
	resp, err := s.analyzer.Analyze(ctx, items)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			job.Status = poll.StatusCancelled
			job.Err = ctxErr
			return job, nil
		}
		job.Status = poll.StatusFailed
		job.Err = fmt.Errorf("%w: %v", poll.ErrSubmitFailed, err)
		return job, nil
	}
	job.Status = poll.StatusComplete
	job.Attempt = 1
	return job, resp.Results
}

func (s *Syncer) apply(ctx context.Context, day string, snapshot []model.LogEntry, results []nutrientapi.Result, out *SyncOutcome) error {
	rec := Reconcile(snapshot, results)
	out.Matches = rec.Matches
	out.Matched = len(rec.Matches)
	out.Dropped = len(rec.Dropped)

	for _, d := range rec.Dropped {
		s.logger.Warn("analysis result matched no entry",
			zap.String("day", day),
			zap.Int("result", d.ResultIndex),
			zap.String("name", d.Name),
		)
	}
	rules := make(map[string]MatchRule, len(rec.Matches))
	for _, m := range rec.Matches {
		rules[m.EntryID] = m.Rule
	}

	for _, e := range rec.Updated {
		ok, err := s.store.ApplyAnalyzed(ctx, e)
		if err != nil {
			return fmt.Errorf("persist analysis for %s: %w", day, err)
		}
		if !ok {
			s.logger.Info("entry changed since submission, skipped",
				zap.String("day", day),
				zap.String("entry_id", e.ID),
			)
			continue
		}
		out.Applied++
		s.logger.Debug("entry updated",
			zap.String("day", day),
			zap.String("entry_id", e.ID),
			zap.String("rule", string(rules[e.ID])),
		)
	}
	return nil
}

func (s *Syncer) record(ctx context.Context, out SyncOutcome, started time.Time, runErr error) {
	run := model.SyncRun{
		Day:        out.Day,
		Mode:       out.Mode,
		Status:     string(out.Status),
		Attempts:   out.Attempts,
		Submitted:  out.Submitted,
		Matched:    out.Matched,
		Dropped:    out.Dropped,
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := s.store.RecordSyncRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("record sync run failed", zap.String("day", out.Day), zap.Error(err))
	}
}

func (s *Syncer) lockDay(day string) func() {
	s.mu.Lock()
	l, ok := s.submitting[day]
	if !ok {
		l = &sync.Mutex{}
		s.submitting[day] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// enqueue appends a ticket for day and returns the previous tail, which is
// closed once the earlier job has applied or abandoned its results.
func (s *Syncer) enqueue(day string) (prev, mine chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.tails[day]
	mine = make(chan struct{})
	s.tails[day] = mine
	return prev, mine
}

func (s *Syncer) release(day string, mine chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(mine)
	if s.tails[day] == mine {
		delete(s.tails, day)
	}
}

func waitTurn(ctx context.Context, prev chan struct{}) error {
	if prev == nil {
		return nil
	}
	select {
	case <-prev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildItems keeps submission order. Entries with a manual override carry
// their calories so the service can account for them.
func buildItems(entries []model.LogEntry) []nutrientapi.Item {
	items := make([]nutrientapi.Item, 0, len(entries))
	for _, e := range entries {
		item := nutrientapi.Item{Name: e.Item, Quantity: e.Quantity}
		if e.ManualOverride && e.Calories != nil {
			kcal := *e.Calories
			item.ManualCalories = &kcal
		}
		items = append(items, item)
	}
	return items
}
