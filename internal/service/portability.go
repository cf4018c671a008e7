package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saadjs/nutrisync/internal/model"
)

const exportVersion = 1

type ExportEntry struct {
	ID             string        `json:"id"`
	Category       string        `json:"category"`
	Item           string        `json:"item"`
	Quantity       float64       `json:"quantity"`
	TimestampMs    int64         `json:"timestamp"`
	Date           string        `json:"date"`
	Calories       *float64      `json:"calories,omitempty"`
	Macros         *model.Macros `json:"macros,omitempty"`
	ManualOverride bool          `json:"manual_override"`
	Provenance     string        `json:"provenance"`
	Notes          string        `json:"notes,omitempty"`
}

type ExportProfile struct {
	Sex           string  `json:"sex"`
	Age           float64 `json:"age"`
	HeightCm      float64 `json:"height_cm"`
	WeightKg      float64 `json:"weight_kg"`
	ActivityLevel string  `json:"activity_level"`
	Goal          string  `json:"goal"`
}

type ExportData struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Profile    *ExportProfile `json:"profile,omitempty"`
	Entries    []ExportEntry  `json:"entries"`
}

type ImportMode string

const (
	ImportModeFail    ImportMode = "fail"
	ImportModeSkip    ImportMode = "skip"
	ImportModeMerge   ImportMode = "merge"
	ImportModeReplace ImportMode = "replace"
)

type ImportOptions struct {
	Mode   ImportMode
	DryRun bool
}

type ImportReport struct {
	Inserted  int      `json:"inserted"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Conflicts int      `json:"conflicts"`
	Warnings  []string `json:"warnings,omitempty"`
}

// ExportDataSnapshot returns the profile and every log entry in creation order.
// Entry dates are exported as stored and are not re-derived on import.
func ExportDataSnapshot(db *sql.DB) (*ExportData, error) {
	out := &ExportData{Version: exportVersion, ExportedAt: time.Now().UTC()}

	p, err := LoadProfile(db)
	if err != nil {
		return nil, err
	}
	if p != nil {
		out.Profile = &ExportProfile{
			Sex:           p.Sex,
			Age:           p.Age,
			HeightCm:      p.HeightCm,
			WeightKg:      p.WeightKg,
			ActivityLevel: p.ActivityLevel,
			Goal:          p.Goal,
		}
	}

	entries, err := ListEntries(db, ListEntriesFilter{})
	if err != nil {
		return nil, err
	}
	out.Entries = make([]ExportEntry, 0, len(entries))
	for _, e := range entries {
		out.Entries = append(out.Entries, ExportEntry{
			ID:             e.ID,
			Category:       string(e.Category),
			Item:           e.Item,
			Quantity:       e.Quantity,
			TimestampMs:    e.Timestamp,
			Date:           e.Date,
			Calories:       e.Calories,
			Macros:         e.Macros,
			ManualOverride: e.ManualOverride,
			Provenance:     string(e.Provenance),
			Notes:          e.Notes,
		})
	}
	return out, nil
}

func ImportDataSnapshot(db *sql.DB, data *ExportData) (ImportReport, error) {
	return ImportDataSnapshotWithOptions(db, data, ImportOptions{Mode: ImportModeMerge})
}

// ImportDataSnapshotWithOptions loads an export inside one transaction.
// Entries are matched by id; mode decides what happens on a collision.
func ImportDataSnapshotWithOptions(db *sql.DB, data *ExportData, opts ImportOptions) (ImportReport, error) {
	report := ImportReport{}
	if data == nil {
		return report, fmt.Errorf("import data is required")
	}
	if data.Version > exportVersion {
		return report, fmt.Errorf("unsupported export version %d", data.Version)
	}
	mode := normalizeImportMode(opts.Mode)

	tx, err := db.Begin()
	if err != nil {
		return report, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if mode == ImportModeReplace && !opts.DryRun {
		if err := clearUserData(tx); err != nil {
			return report, err
		}
	}

	if p := data.Profile; p != nil {
		if opts.DryRun {
			report.Updated++
		} else if _, err := tx.Exec(`
INSERT INTO profile(id, sex, age, height_cm, weight_kg, activity_level, goal, updated_at)
VALUES(1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET sex=excluded.sex, age=excluded.age, height_cm=excluded.height_cm, weight_kg=excluded.weight_kg, activity_level=excluded.activity_level, goal=excluded.goal, updated_at=excluded.updated_at
`, p.Sex, p.Age, p.HeightCm, p.WeightKg, p.ActivityLevel, p.Goal); err != nil {
			return report, fmt.Errorf("import profile: %w", err)
		} else {
			report.Updated++
		}
	}

	for _, e := range data.Entries {
		if err := validateExportEntry(e); err != nil {
			report.Skipped++
			report.Warnings = append(report.Warnings, fmt.Sprintf("entry %q: %v", e.ID, err))
			continue
		}
		macrosJSON, err := encodeMacros(e.Macros)
		if err != nil {
			return report, fmt.Errorf("import entry %s: %w", e.ID, err)
		}

		exists := false
		if mode != ImportModeReplace {
			var found string
			err := tx.QueryRow(`SELECT id FROM log_entries WHERE id = ?`, e.ID).Scan(&found)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return report, fmt.Errorf("find entry %s: %w", e.ID, err)
			}
			exists = err == nil
		}
		if exists {
			switch mode {
			case ImportModeFail:
				report.Conflicts++
				return report, fmt.Errorf("import conflict for entry %s", e.ID)
			case ImportModeSkip:
				report.Skipped++
				continue
			}
			if opts.DryRun {
				report.Updated++
				continue
			}
			if _, err := tx.Exec(`
UPDATE log_entries
SET category=?, item=?, quantity=?, timestamp_ms=?, date=?, calories=?, macros_json=?, manual_override=?, provenance=?, notes=?, updated_at=CURRENT_TIMESTAMP
WHERE id = ?
`, e.Category, e.Item, e.Quantity, e.TimestampMs, e.Date, nullableFloat(e.Calories), macrosJSON, boolInt(e.ManualOverride), e.Provenance, e.Notes, e.ID); err != nil {
				return report, fmt.Errorf("update entry %s: %w", e.ID, err)
			}
			report.Updated++
			continue
		}

		if opts.DryRun {
			report.Inserted++
			continue
		}
		if _, err := tx.Exec(`
INSERT INTO log_entries(id, category, item, quantity, timestamp_ms, date, calories, macros_json, manual_override, provenance, notes, seq)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT IFNULL(MAX(seq), 0) + 1 FROM log_entries))
`, e.ID, e.Category, e.Item, e.Quantity, e.TimestampMs, e.Date, nullableFloat(e.Calories), macrosJSON, boolInt(e.ManualOverride), e.Provenance, e.Notes); err != nil {
			return report, fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
		report.Inserted++
	}

	if opts.DryRun {
		return report, nil
	}
	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("commit import: %w", err)
	}
	return report, nil
}

func validateExportEntry(e ExportEntry) error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if _, err := model.ParseCategory(e.Category); err != nil {
		return err
	}
	if err := validatePositiveFloat("quantity", e.Quantity); err != nil {
		return err
	}
	if err := ValidateDay(e.Date); err != nil {
		return err
	}
	switch model.Provenance(e.Provenance) {
	case model.ProvenanceManual, model.ProvenanceAnalyzed, model.ProvenanceUnknown:
	default:
		return fmt.Errorf("invalid provenance %q", e.Provenance)
	}
	if e.Calories != nil {
		if err := validateNonNegativeFloat("calories", *e.Calories); err != nil {
			return err
		}
	}
	return validateMacros(e.Macros)
}

func normalizeImportMode(mode ImportMode) ImportMode {
	switch ImportMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case ImportModeFail:
		return ImportModeFail
	case ImportModeSkip:
		return ImportModeSkip
	case ImportModeReplace:
		return ImportModeReplace
	}
	return ImportModeMerge
}

func clearUserData(tx *sql.Tx) error {
	for _, stmt := range []string{
		`DELETE FROM log_entries`,
		`DELETE FROM profile`,
		`DELETE FROM sync_runs`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clear user data: %w", err)
		}
	}
	return nil
}
