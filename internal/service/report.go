package service

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/saadjs/nutrisync/internal/model"
)

const topMealsInReport = 3

type Gaps struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fats_g"`
	WaterMl  float64 `json:"water_ml"`
	SleepH   float64 `json:"sleep_h"`
}

type DayReport struct {
	Date       string         `json:"date"`
	HasProfile bool           `json:"has_profile"`
	Goals      Goals          `json:"goals"`
	Totals     Totals         `json:"totals"`
	Gaps       Gaps           `json:"gaps_vs_target"`
	Habits     Habits         `json:"habits"`
	TopMeals   []MealCalories `json:"top_meals_by_cal"`
	Streak     StreakState    `json:"streak"`
	Pending    int            `json:"pending_analysis"`
}

// BuildDayReport compares day's intake with the profile's targets. Gaps are
// totals minus targets, so a negative value is still to go.
func BuildDayReport(ctx context.Context, db *sql.DB, day, today string) (*DayReport, error) {
	if err := ValidateDay(day); err != nil {
		return nil, err
	}
	if err := ValidateDay(today); err != nil {
		return nil, err
	}

	var (
		profile *model.Profile
		dayLog  []model.LogEntry
		meals   []model.LogEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := LoadProfile(db)
		profile = p
		return err
	})
	g.Go(func() error {
		entries, err := ListEntriesContext(gctx, db, ListEntriesFilter{Date: day})
		dayLog = entries
		return err
	})
	g.Go(func() error {
		entries, err := ListEntriesContext(gctx, db, ListEntriesFilter{ToDate: today, Category: string(model.CategoryMeal)})
		meals = entries
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build report for %s: %w", day, err)
	}

	r := &DayReport{Date: day, HasProfile: profile != nil}
	if profile != nil {
		r.Goals = ComputeGoals(*profile)
	} else {
		r.Goals = ComputeGoals(model.Profile{})
	}
	r.Totals = DailyTotals(dayLog, day)
	r.Habits = DailyHabits(dayLog, day)
	r.TopMeals = TopMeals(dayLog, day, topMealsInReport)
	r.Streak = Streaks(meals, today)
	for _, e := range dayLog {
		if e.IsMeal() && e.Provenance == model.ProvenanceUnknown {
			r.Pending++
		}
	}

	r.Gaps = Gaps{
		Calories: r.Totals.Calories - float64(r.Goals.TDEE),
		ProteinG: r.Totals.ProteinG - float64(r.Goals.Macros.ProteinG),
		CarbsG:   r.Totals.CarbsG - float64(r.Goals.Macros.CarbsG),
		FatG:     r.Totals.FatG - float64(r.Goals.Macros.FatG),
		WaterMl:  r.Habits.WaterMl - float64(r.Goals.WaterTargetMl),
		SleepH:   r.Habits.SleepH - r.Goals.SleepTargetH,
	}
	return r, nil
}
