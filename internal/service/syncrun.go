package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/saadjs/nutrisync/internal/model"
)

func RecordSyncRun(ctx context.Context, db *sql.DB, run model.SyncRun) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO sync_runs(day, mode, status, attempts, submitted, matched, dropped, error, started_at, finished_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.Day, run.Mode, run.Status, run.Attempts, run.Submitted, run.Matched, run.Dropped, run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record sync run for %s: %w", run.Day, err)
	}
	return nil
}

// ListSyncRuns returns the newest runs first, optionally for one day.
func ListSyncRuns(db *sql.DB, day string, limit int) ([]model.SyncRun, error) {
	query := `
SELECT id, day, mode, status, attempts, submitted, matched, dropped, error, started_at, finished_at
FROM sync_runs`
	args := make([]any, 0)
	if day != "" {
		if err := ValidateDay(day); err != nil {
			return nil, err
		}
		query += ` WHERE day = ?`
		args = append(args, day)
	}
	query += ` ORDER BY id DESC`
	if limit <= 0 {
		limit = 20
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.SyncRun, 0)
	for rows.Next() {
		var (
			r                 model.SyncRun
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Day, &r.Mode, &r.Status, &r.Attempts, &r.Submitted, &r.Matched, &r.Dropped, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}
	return runs, nil
}
