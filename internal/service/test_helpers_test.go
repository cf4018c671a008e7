package service_test

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/saadjs/nutrisync/internal/db"
	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/service"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "nutrisync.db"))
}

func openTestDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	sqldb, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return sqldb
}

// at returns noon UTC on day plus offset minutes.
func at(t *testing.T, day string, minutes int) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		t.Fatalf("parse day %q: %v", day, err)
	}
	return d.Add(12*time.Hour + time.Duration(minutes)*time.Minute)
}

func addMeal(t *testing.T, sqldb *sql.DB, day string, minutes int, item string) model.LogEntry {
	t.Helper()
	e, err := service.CreateEntry(sqldb, service.CreateEntryInput{
		Category: "meal",
		Item:     item,
		Quantity: 1,
		At:       at(t, day, minutes),
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("create meal %q: %v", item, err)
	}
	return e
}

func floatPtr(v float64) *float64 {
	return &v
}

func mustList(t *testing.T, sqldb *sql.DB, day string) []model.LogEntry {
	t.Helper()
	entries, err := service.ListEntries(sqldb, service.ListEntriesFilter{Date: day})
	if err != nil {
		t.Fatalf("list entries for %s: %v", day, err)
	}
	return entries
}
