package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	ErrNotFound       = errors.New("not found")
	ErrAnalysisFailed = errors.New("analysis failed")
	ErrNotBackup      = errors.New("not a nutrisync database")
)

func validatePositiveFloat(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return fmt.Errorf("%s must be > 0", name)
	}
	return nil
}

func validateNonNegativeFloat(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return fmt.Errorf("%s must be >= 0", name)
	}
	return nil
}

func parseDay(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(dateLayout)
}

// ValidateDay reports whether value is a YYYY-MM-DD calendar day.
func ValidateDay(value string) error {
	_, err := parseDay(value)
	return err
}

// DaysBetween lists calendar days from..to inclusive.
func DaysBetween(from, to string) ([]string, error) {
	start, err := parseDay(from)
	if err != nil {
		return nil, err
	}
	end, err := parseDay(to)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, fmt.Errorf("from date must be <= to date")
	}
	days := make([]string, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dateLayout))
	}
	return days, nil
}
