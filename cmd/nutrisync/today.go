package nutrisync

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saadjs/nutrisync/internal/service"
)

var (
	todayDate string
	todayJSON bool
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show intake, habits, and gaps against targets for a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := today()
		if err != nil {
			return err
		}
		day, err := dayOrToday(todayDate)
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			r, err := service.BuildDayReport(cmd.Context(), sqldb, day, now)
			if err != nil {
				return err
			}
			if todayJSON {
				b, err := json.MarshalIndent(r, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal report json: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date: %s\n", r.Date)
			fmt.Fprintf(out, "Intake: %.0f / %d kcal (%+.0f)\n", r.Totals.Calories, r.Goals.TDEE, r.Gaps.Calories)
			fmt.Fprintf(out, "Macros: P %.1f/%dg | C %.1f/%dg | F %.1f/%dg\n",
				r.Totals.ProteinG, r.Goals.Macros.ProteinG, r.Totals.CarbsG, r.Goals.Macros.CarbsG, r.Totals.FatG, r.Goals.Macros.FatG)
			fmt.Fprintf(out, "Water: %.0f / %d ml\n", r.Habits.WaterMl, r.Goals.WaterTargetMl)
			fmt.Fprintf(out, "Sleep: %.1f / %g h\n", r.Habits.SleepH, r.Goals.SleepTargetH)
			fmt.Fprintf(out, "Activity: %.0f min\n", r.Habits.ActivityMinutes)
			for i, m := range r.TopMeals {
				fmt.Fprintf(out, "Top meal %d: %s (%.0f kcal)\n", i+1, m.Item, m.Calories)
			}
			fmt.Fprintf(out, "Streak: %d day(s), best %d\n", r.Streak.Current, r.Streak.Best)
			if r.Pending > 0 {
				fmt.Fprintf(out, "Awaiting analysis: %d meal(s); run `nutrisync sync --date %s`\n", r.Pending, r.Date)
			}
			if !r.HasProfile {
				fmt.Fprintln(out, "Profile: not set (default targets)")
			}
			return nil
		})
	},
}

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show current and best meal-logging streaks",
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := today()
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			meals, err := service.ListEntriesContext(cmd.Context(), sqldb, service.ListEntriesFilter{Category: "meal"})
			if err != nil {
				return err
			}
			s := service.Streaks(meals, now)
			fmt.Fprintf(cmd.OutOrStdout(), "Current: %d\nBest: %d\n", s.Current, s.Best)
			return nil
		})
	},
}

var (
	analyticsFrom      string
	analyticsTo        string
	analyticsTolerance float64
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize a date range against targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := dayOrToday(analyticsTo)
		if err != nil {
			return err
		}
		from := analyticsFrom
		if from == "" {
			from = to
		}
		return withDB(func(sqldb *sql.DB) error {
			r, err := service.AnalyticsRange(cmd.Context(), sqldb, from, to, analyticsTolerance)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Range: %s to %s\n", r.FromDate, r.ToDate)
			fmt.Fprintf(out, "Days with meals: %d\n", r.DaysWithMeals)
			fmt.Fprintf(out, "Total: %.0f kcal | P %.1fg | C %.1fg | F %.1fg\n", r.TotalCalories, r.TotalProtein, r.TotalCarbs, r.TotalFat)
			fmt.Fprintf(out, "Average/day: %.0f kcal | P %.1fg | C %.1fg | F %.1fg\n", r.AverageCaloriesPerDay, r.AverageProteinPerDay, r.AverageCarbsPerDay, r.AverageFatPerDay)
			if r.HighestDay != nil {
				fmt.Fprintf(out, "Highest: %s (%.0f kcal)\n", r.HighestDay.Date, r.HighestDay.Calories)
				fmt.Fprintf(out, "Lowest: %s (%.0f kcal)\n", r.LowestDay.Date, r.LowestDay.Calories)
			}
			fmt.Fprintf(out, "Within target: %d/%d days (%.1f%%)\n", r.Adherence.WithinGoalDays, r.Adherence.EvaluatedDays, r.Adherence.PercentWithin)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(todayCmd, streakCmd, analyticsCmd)
	todayCmd.Flags().StringVar(&todayDate, "date", "", "Date YYYY-MM-DD (default today)")
	todayCmd.Flags().BoolVar(&todayJSON, "json", false, "Print the report as JSON")
	analyticsCmd.Flags().StringVar(&analyticsFrom, "from", "", "Start date YYYY-MM-DD (default --to)")
	analyticsCmd.Flags().StringVar(&analyticsTo, "to", "", "End date YYYY-MM-DD (default today)")
	analyticsCmd.Flags().Float64Var(&analyticsTolerance, "tolerance", 0.10, "Macro tolerance as a fraction of target")
}
