package service

import (
	"sort"

	"github.com/saadjs/nutrisync/internal/model"
)

type Totals struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fats_g"`
}

type StreakState struct {
	Current int `json:"current"`
	Best    int `json:"best"`
}

type Habits struct {
	WaterMl         float64 `json:"water_ml"`
	SleepH          float64 `json:"sleep_h"`
	ActivityMinutes float64 `json:"activity_min"`
}

type MealCalories struct {
	EntryID  string  `json:"entry_id"`
	Item     string  `json:"item"`
	Calories float64 `json:"calories"`
}

// DailyTotals sums meal entries logged on day. Missing nutrition counts as zero.
func DailyTotals(entries []model.LogEntry, day string) Totals {
	var t Totals
	for _, e := range entries {
		if !e.IsMeal() || e.Date != day {
			continue
		}
		if e.Calories != nil {
			t.Calories += *e.Calories
		}
		if e.Macros != nil {
			t.ProteinG += e.Macros.ProteinG
			t.CarbsG += e.Macros.CarbsG
			t.FatG += e.Macros.FatG
		}
	}
	return t
}

// Streaks counts consecutive calendar days with at least one meal entry.
// Current ends at today and is 0 when today has no meal; Best is the longest
// run anywhere in the history.
func Streaks(entries []model.LogEntry, today string) StreakState {
	present := make(map[string]struct{})
	for _, e := range entries {
		if !e.IsMeal() {
			continue
		}
		if _, err := parseDay(e.Date); err != nil {
			continue
		}
		present[e.Date] = struct{}{}
	}

	var s StreakState
	if day, err := parseDay(today); err == nil {
		for {
			if _, ok := present[day.Format(dateLayout)]; !ok {
				break
			}
			s.Current++
			day = day.AddDate(0, 0, -1)
		}
	}

	dates := make([]string, 0, len(present))
	for d := range present {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	run := 0
	for i, d := range dates {
		if i > 0 && isNextDay(dates[i-1], d) {
			run++
		} else {
			run = 1
		}
		if run > s.Best {
			s.Best = run
		}
	}
	return s
}

func isNextDay(prev, next string) bool {
	p, err := parseDay(prev)
	if err != nil {
		return false
	}
	return p.AddDate(0, 0, 1).Format(dateLayout) == next
}

// DailyHabits sums water (ml), sleep (hours) and activity (minutes) quantities for day.
func DailyHabits(entries []model.LogEntry, day string) Habits {
	var h Habits
	for _, e := range entries {
		if e.Date != day {
			continue
		}
		switch e.Category {
		case model.CategoryWater:
			h.WaterMl += e.Quantity
		case model.CategorySleep:
			h.SleepH += e.Quantity
		case model.CategoryActivity:
			h.ActivityMinutes += e.Quantity
		}
	}
	return h
}

// TopMeals returns up to k meals of day with the most calories, ties in
// creation order.
func TopMeals(entries []model.LogEntry, day string, k int) []MealCalories {
	meals := make([]MealCalories, 0)
	for _, e := range entries {
		if !e.IsMeal() || e.Date != day {
			continue
		}
		m := MealCalories{EntryID: e.ID, Item: e.Item}
		if e.Calories != nil {
			m.Calories = *e.Calories
		}
		meals = append(meals, m)
	}
	sort.SliceStable(meals, func(i, j int) bool {
		return meals[i].Calories > meals[j].Calories
	})
	if k >= 0 && len(meals) > k {
		meals = meals[:k]
	}
	return meals
}
