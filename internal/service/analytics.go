package service

import (
	"context"
	"database/sql"
	"math"
	"sort"

	"github.com/saadjs/nutrisync/internal/model"
)

type DaySummary struct {
	Date     string  `json:"date"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Carbs    float64 `json:"carbs_g"`
	Fat      float64 `json:"fat_g"`
	Meals    int     `json:"meals"`
	WaterMl  float64 `json:"water_ml"`
}

type AnalyticsReport struct {
	FromDate              string           `json:"from_date"`
	ToDate                string           `json:"to_date"`
	TotalCalories         float64          `json:"total_calories"`
	TotalProtein          float64          `json:"total_protein_g"`
	TotalCarbs            float64          `json:"total_carbs_g"`
	TotalFat              float64          `json:"total_fat_g"`
	DaysWithMeals         int              `json:"days_with_meals"`
	AverageCaloriesPerDay float64          `json:"avg_calories_per_day"`
	AverageProteinPerDay  float64          `json:"avg_protein_per_day"`
	AverageCarbsPerDay    float64          `json:"avg_carbs_per_day"`
	AverageFatPerDay      float64          `json:"avg_fat_per_day"`
	HighestDay            *DaySummary      `json:"highest_day,omitempty"`
	LowestDay             *DaySummary      `json:"lowest_day,omitempty"`
	Adherence             AdherenceSummary `json:"adherence"`
	Days                  []DaySummary     `json:"days"`
}

type AdherenceSummary struct {
	EvaluatedDays  int     `json:"evaluated_days"`
	WithinGoalDays int     `json:"within_goal_days"`
	PercentWithin  float64 `json:"percent_within_goal"`
	TargetCalories int     `json:"target_calories"`
}

// AnalyticsRange summarizes every day in from..to that has at least one meal
// and scores each against the current profile's targets. A day is within
// goal when calories do not exceed TDEE and each macro is within tolerance
// (a fraction, e.g. 0.10) of its target.
func AnalyticsRange(ctx context.Context, db *sql.DB, from, to string, tolerance float64) (*AnalyticsReport, error) {
	days, err := DaysBetween(from, to)
	if err != nil {
		return nil, err
	}
	entries, err := ListEntriesContext(ctx, db, ListEntriesFilter{FromDate: from, ToDate: to})
	if err != nil {
		return nil, err
	}
	goals, err := CurrentGoals(db)
	if err != nil {
		return nil, err
	}

	report := &AnalyticsReport{FromDate: from, ToDate: to, Days: summarizeDays(entries, days)}
	report.DaysWithMeals = len(report.Days)
	for _, d := range report.Days {
		report.TotalCalories += d.Calories
		report.TotalProtein += d.Protein
		report.TotalCarbs += d.Carbs
		report.TotalFat += d.Fat
	}
	if report.DaysWithMeals > 0 {
		div := float64(report.DaysWithMeals)
		report.AverageCaloriesPerDay = report.TotalCalories / div
		report.AverageProteinPerDay = report.TotalProtein / div
		report.AverageCarbsPerDay = report.TotalCarbs / div
		report.AverageFatPerDay = report.TotalFat / div
		report.HighestDay, report.LowestDay = extremeDays(report.Days)
	}
	report.Adherence = calculateAdherence(report.Days, goals, tolerance)
	return report, nil
}

func summarizeDays(entries []model.LogEntry, days []string) []DaySummary {
	byDay := make(map[string][]model.LogEntry)
	for _, e := range entries {
		byDay[e.Date] = append(byDay[e.Date], e)
	}
	out := make([]DaySummary, 0)
	for _, day := range days {
		dayEntries := byDay[day]
		meals := 0
		for _, e := range dayEntries {
			if e.IsMeal() {
				meals++
			}
		}
		if meals == 0 {
			continue
		}
		t := DailyTotals(dayEntries, day)
		out = append(out, DaySummary{
			Date:     day,
			Calories: t.Calories,
			Protein:  t.ProteinG,
			Carbs:    t.CarbsG,
			Fat:      t.FatG,
			Meals:    meals,
			WaterMl:  DailyHabits(dayEntries, day).WaterMl,
		})
	}
	return out
}

func calculateAdherence(days []DaySummary, goals Goals, tolerance float64) AdherenceSummary {
	out := AdherenceSummary{TargetCalories: goals.TDEE}
	for _, d := range days {
		out.EvaluatedDays++
		if d.Calories <= float64(goals.TDEE) &&
			adherenceWithin(d.Protein, float64(goals.Macros.ProteinG), tolerance) &&
			adherenceWithin(d.Carbs, float64(goals.Macros.CarbsG), tolerance) &&
			adherenceWithin(d.Fat, float64(goals.Macros.FatG), tolerance) {
			out.WithinGoalDays++
		}
	}
	if out.EvaluatedDays > 0 {
		out.PercentWithin = (float64(out.WithinGoalDays) / float64(out.EvaluatedDays)) * 100
	}
	return out
}

func adherenceWithin(actual, target, tolerance float64) bool {
	if target <= 0 {
		return true
	}
	return math.Abs(actual-target) <= target*tolerance
}

func extremeDays(days []DaySummary) (*DaySummary, *DaySummary) {
	if len(days) == 0 {
		return nil, nil
	}
	copied := make([]DaySummary, len(days))
	copy(copied, days)
	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].Calories < copied[j].Calories
	})
	low := copied[0]
	high := copied[len(copied)-1]
	return &high, &low
}
