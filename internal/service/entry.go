package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saadjs/nutrisync/internal/model"
)

type CreateEntryInput struct {
	Category string
	Item     string
	Quantity float64
	At       time.Time
	Location *time.Location
	Calories *float64
	Macros   *model.Macros
	Notes    string
}

type ListEntriesFilter struct {
	Date     string
	FromDate string
	ToDate   string
	Category string
	Limit    int
}

// CreateEntry assigns the id and the calendar day. Supplying calories or
// macros marks the entry as a manual override.
func CreateEntry(db *sql.DB, in CreateEntryInput) (model.LogEntry, error) {
	category, err := model.ParseCategory(strings.ToLower(strings.TrimSpace(in.Category)))
	if err != nil {
		return model.LogEntry{}, err
	}
	in.Item = strings.TrimSpace(in.Item)
	if in.Item == "" {
		if category == model.CategoryMeal {
			return model.LogEntry{}, fmt.Errorf("meal item is required")
		}
		in.Item = string(category)
	}
	if err := validatePositiveFloat("quantity", in.Quantity); err != nil {
		return model.LogEntry{}, err
	}
	if in.Calories != nil {
		if err := validateNonNegativeFloat("calories", *in.Calories); err != nil {
			return model.LogEntry{}, err
		}
	}
	if err := validateMacros(in.Macros); err != nil {
		return model.LogEntry{}, err
	}
	if in.At.IsZero() {
		in.At = time.Now()
	}

	e := model.LogEntry{
		ID:         uuid.NewString(),
		Category:   category,
		Item:       in.Item,
		Quantity:   in.Quantity,
		Timestamp:  in.At.UnixMilli(),
		Date:       DayOf(in.At, in.Location),
		Calories:   in.Calories,
		Macros:     in.Macros,
		Provenance: model.ProvenanceUnknown,
		Notes:      strings.TrimSpace(in.Notes),
	}
	if in.Calories != nil || in.Macros != nil {
		e.ManualOverride = true
		e.Provenance = model.ProvenanceManual
	}

	macrosJSON, err := encodeMacros(e.Macros)
	if err != nil {
		return model.LogEntry{}, err
	}
	_, err = db.Exec(`
INSERT INTO log_entries(id, category, item, quantity, timestamp_ms, date, calories, macros_json, manual_override, provenance, notes, seq)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT IFNULL(MAX(seq), 0) + 1 FROM log_entries))
`, e.ID, string(e.Category), e.Item, e.Quantity, e.Timestamp, e.Date, nullableFloat(e.Calories), macrosJSON, boolInt(e.ManualOverride), string(e.Provenance), e.Notes)
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("insert entry: %w", err)
	}
	return e, nil
}

const entryColumns = `id, category, item, quantity, timestamp_ms, date, calories, IFNULL(macros_json, ''), manual_override, provenance, notes`

func GetEntry(db *sql.DB, id string) (model.LogEntry, error) {
	row := db.QueryRow(`SELECT `+entryColumns+` FROM log_entries WHERE id = ?`, strings.TrimSpace(id))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LogEntry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return e, nil
}

// ListEntries returns entries in creation order.
func ListEntries(db *sql.DB, f ListEntriesFilter) ([]model.LogEntry, error) {
	return ListEntriesContext(context.Background(), db, f)
}

func ListEntriesContext(ctx context.Context, db *sql.DB, f ListEntriesFilter) ([]model.LogEntry, error) {
	if err := validateListEntriesFilter(f); err != nil {
		return nil, err
	}

	query := `SELECT ` + entryColumns + ` FROM log_entries WHERE 1=1`
	args := make([]any, 0)

	if d := strings.TrimSpace(f.Date); d != "" {
		query += ` AND date = ?`
		args = append(args, d)
	}
	if d := strings.TrimSpace(f.FromDate); d != "" {
		query += ` AND date >= ?`
		args = append(args, d)
	}
	if d := strings.TrimSpace(f.ToDate); d != "" {
		query += ` AND date <= ?`
		args = append(args, d)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		category, err := model.ParseCategory(strings.ToLower(c))
		if err != nil {
			return nil, err
		}
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY timestamp_ms ASC, seq ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.LogEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// SetManualNutrition records a user edit; the pipeline will not overwrite it.
func SetManualNutrition(db *sql.DB, id string, calories float64, macros *model.Macros) error {
	if err := validateNonNegativeFloat("calories", calories); err != nil {
		return err
	}
	if err := validateMacros(macros); err != nil {
		return err
	}
	macrosJSON, err := encodeMacros(macros)
	if err != nil {
		return err
	}
	res, err := db.Exec(`
UPDATE log_entries
SET calories = ?, macros_json = ?, manual_override = 1, provenance = 'manual', updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, calories, macrosJSON, id)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// ClearManualOverride lets the next sync replace the entry's nutrition.
func ClearManualOverride(db *sql.DB, id string) error {
	res, err := db.Exec(`
UPDATE log_entries SET manual_override = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?
`, id)
	if err != nil {
		return fmt.Errorf("clear override for entry %s: %w", id, err)
	}
	return requireAffected(res, id)
}

func DeleteEntry(db *sql.DB, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("entry id is required")
	}
	res, err := db.Exec(`DELETE FROM log_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// ApplyAnalyzedNutrition writes reconciled values. It reports false when the
// entry was deleted or switched to a manual override after submission.
func ApplyAnalyzedNutrition(ctx context.Context, db *sql.DB, e model.LogEntry) (bool, error) {
	macrosJSON, err := encodeMacros(e.Macros)
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, `
UPDATE log_entries
SET calories = ?, macros_json = ?, provenance = 'analyzed', updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND manual_override = 0
`, nullableFloat(e.Calories), macrosJSON, e.ID)
	if err != nil {
		return false, fmt.Errorf("apply analysis to entry %s: %w", e.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected for entry %s: %w", e.ID, err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (model.LogEntry, error) {
	var (
		e          model.LogEntry
		category   string
		provenance string
		calories   sql.NullFloat64
		macrosJSON string
		override   int
	)
	if err := row.Scan(&e.ID, &category, &e.Item, &e.Quantity, &e.Timestamp, &e.Date, &calories, &macrosJSON, &override, &provenance, &e.Notes); err != nil {
		return model.LogEntry{}, err
	}
	e.Category = model.Category(category)
	e.Provenance = model.Provenance(provenance)
	e.ManualOverride = override != 0
	if calories.Valid {
		v := calories.Float64
		e.Calories = &v
	}
	if macrosJSON != "" {
		var m model.Macros
		if err := json.Unmarshal([]byte(macrosJSON), &m); err != nil {
			return model.LogEntry{}, fmt.Errorf("decode macros for entry %s: %w", e.ID, err)
		}
		e.Macros = &m
	}
	return e, nil
}

func encodeMacros(m *model.Macros) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal macros: %w", err)
	}
	return string(data), nil
}

func validateMacros(m *model.Macros) error {
	if m == nil {
		return nil
	}
	if err := validateNonNegativeFloat("protein", m.ProteinG); err != nil {
		return err
	}
	if err := validateNonNegativeFloat("carbs", m.CarbsG); err != nil {
		return err
	}
	return validateNonNegativeFloat("fat", m.FatG)
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for entry %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func validateListEntriesFilter(f ListEntriesFilter) error {
	if strings.TrimSpace(f.Date) != "" && (strings.TrimSpace(f.FromDate) != "" || strings.TrimSpace(f.ToDate) != "") {
		return fmt.Errorf("--date cannot be combined with --from or --to")
	}
	for _, d := range []string{f.Date, f.FromDate, f.ToDate} {
		if strings.TrimSpace(d) == "" {
			continue
		}
		if err := ValidateDay(d); err != nil {
			return err
		}
	}
	return nil
}
