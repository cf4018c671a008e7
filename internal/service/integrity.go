package service

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

type DoctorReport struct {
	InvalidMacros       int `json:"invalid_macros"`
	EmptyOverrides      int `json:"empty_overrides"`
	AnalyzedWithoutKcal int `json:"analyzed_without_calories"`
	FixedRows           int `json:"fixed_rows,omitempty"`
}

// RunDoctor finds log rows the pipeline cannot reason about: unreadable
// macros, overrides that carry no nutrition, and analyzed rows without
// calories. With fix, those rows are reset so the next sync analyzes them.
func RunDoctor(db *sql.DB, fix bool) (DoctorReport, error) {
	report := DoctorReport{}
	rows, err := db.Query(`SELECT id, IFNULL(macros_json,'') FROM log_entries`)
	if err != nil {
		return report, fmt.Errorf("doctor macros query: %w", err)
	}
	invalidIDs := make([]string, 0)
	for rows.Next() {
		var id, macros string
		if err := rows.Scan(&id, &macros); err != nil {
			_ = rows.Close()
			return report, fmt.Errorf("doctor macros scan: %w", err)
		}
		macros = strings.TrimSpace(macros)
		if macros == "" {
			continue
		}
		if !json.Valid([]byte(macros)) {
			report.InvalidMacros++
			invalidIDs = append(invalidIDs, id)
		}
	}
	_ = rows.Close()

	if err := db.QueryRow(`
SELECT COUNT(1) FROM log_entries
WHERE manual_override = 1 AND calories IS NULL AND macros_json IS NULL
`).Scan(&report.EmptyOverrides); err != nil {
		return report, fmt.Errorf("doctor override query: %w", err)
	}
	if err := db.QueryRow(`
SELECT COUNT(1) FROM log_entries WHERE provenance = 'analyzed' AND calories IS NULL
`).Scan(&report.AnalyzedWithoutKcal); err != nil {
		return report, fmt.Errorf("doctor analyzed query: %w", err)
	}

	if !fix {
		return report, nil
	}
	tx, err := db.Begin()
	if err != nil {
		return report, fmt.Errorf("doctor fix begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range invalidIDs {
		if _, err := tx.Exec(`UPDATE log_entries SET macros_json = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
			return report, fmt.Errorf("doctor fix macros row %s: %w", id, err)
		}
		report.FixedRows++
	}
	for _, stmt := range []string{
		`UPDATE log_entries SET manual_override = 0, provenance = 'unknown', updated_at = CURRENT_TIMESTAMP
WHERE manual_override = 1 AND calories IS NULL AND macros_json IS NULL`,
		`UPDATE log_entries SET provenance = 'unknown', updated_at = CURRENT_TIMESTAMP
WHERE provenance = 'analyzed' AND calories IS NULL`,
	} {
		res, err := tx.Exec(stmt)
		if err != nil {
			return report, fmt.Errorf("doctor fix: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return report, fmt.Errorf("doctor fix rows affected: %w", err)
		}
		report.FixedRows += int(n)
	}
	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("doctor fix commit: %w", err)
	}
	return report, nil
}
