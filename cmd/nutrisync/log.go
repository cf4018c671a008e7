package nutrisync

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/service"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Manage meal, water, activity, and sleep entries",
}

var (
	logCategory string
	logItem     string
	logQuantity float64
	logCalories float64
	logProtein  float64
	logCarbs    float64
	logFat      float64
	logDate     string
	logTime     string
	logNotes    string
)

var logAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := location()
		if err != nil {
			return err
		}
		at, err := parseDateTimeOrNow(logDate, logTime, loc)
		if err != nil {
			return err
		}
		in := service.CreateEntryInput{
			Category: logCategory,
			Item:     logItem,
			Quantity: logQuantity,
			At:       at,
			Location: loc,
			Notes:    logNotes,
		}
		if cmd.Flags().Changed("calories") {
			in.Calories = &logCalories
		}
		if macros := macrosFromFlags(cmd); macros != nil {
			in.Macros = macros
		}
		return withDB(func(sqldb *sql.DB) error {
			e, err := service.CreateEntry(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s entry %s for %s\n", e.Category, e.ID, e.Date)
			return nil
		})
	},
}

var (
	listDate     string
	listFromDate string
	listToDate   string
	listCategory string
	listLimit    int
	listJSON     bool
)

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := service.ListEntriesFilter{
			Date:     listDate,
			FromDate: listFromDate,
			ToDate:   listToDate,
			Category: listCategory,
			Limit:    listLimit,
		}
		return withDB(func(sqldb *sql.DB) error {
			entries, err := service.ListEntries(sqldb, filter)
			if err != nil {
				return err
			}
			if listJSON {
				b, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal entries json: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tDATE\tCATEGORY\tITEM\tQTY\tKCAL\tP\tC\tF\tSOURCE")
			for _, e := range entries {
				var p, c, f float64
				if e.Macros != nil {
					p, c, f = e.Macros.ProteinG, e.Macros.CarbsG, e.Macros.FatG
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%g\t%s\t%.1f\t%.1f\t%.1f\t%s\n",
					e.ID, e.Date, e.Category, e.Item, e.Quantity, formatOptionalFloat(e.Calories), p, c, f, e.Provenance)
			}
			return nil
		})
	},
}

var logShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			e, err := service.GetEntry(sqldb, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID: %s\n", e.ID)
			fmt.Fprintf(out, "Date: %s (%s)\n", e.Date, e.CreatedAt().Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "Category: %s\n", e.Category)
			fmt.Fprintf(out, "Item: %s\n", e.Item)
			fmt.Fprintf(out, "Quantity: %g\n", e.Quantity)
			fmt.Fprintf(out, "Calories: %s\n", formatOptionalFloat(e.Calories))
			if e.Macros != nil {
				fmt.Fprintf(out, "Protein: %.1f\nCarbs: %.1f\nFat: %.1f\n", e.Macros.ProteinG, e.Macros.CarbsG, e.Macros.FatG)
				for k, v := range e.Macros.Other {
					fmt.Fprintf(out, "%s: %g\n", k, v)
				}
			}
			fmt.Fprintf(out, "Manual override: %t\n", e.ManualOverride)
			fmt.Fprintf(out, "Source: %s\n", e.Provenance)
			fmt.Fprintf(out, "Notes: %s\n", e.Notes)
			return nil
		})
	},
}

var logEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Set nutrition by hand; sync will not overwrite it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("calories") {
			return fmt.Errorf("--calories is required")
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.SetManualNutrition(sqldb, args[0], logCalories, macrosFromFlags(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated entry %s\n", args[0])
			return nil
		})
	},
}

var logClearOverrideCmd = &cobra.Command{
	Use:   "clear-override <id>",
	Short: "Let the next sync replace an entry's nutrition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.ClearManualOverride(sqldb, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared override on entry %s\n", args[0])
			return nil
		})
	},
}

var logDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteEntry(sqldb, strings.TrimSpace(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %s\n", args[0])
			return nil
		})
	},
}

func macrosFromFlags(cmd *cobra.Command) *model.Macros {
	f := cmd.Flags()
	if !f.Changed("protein") && !f.Changed("carbs") && !f.Changed("fat") {
		return nil
	}
	return &model.Macros{ProteinG: logProtein, CarbsG: logCarbs, FatG: logFat}
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logAddCmd, logListCmd, logShowCmd, logEditCmd, logClearOverrideCmd, logDeleteCmd)

	logAddCmd.Flags().StringVar(&logCategory, "category", "meal", "meal, water, activity, or sleep")
	logAddCmd.Flags().StringVar(&logItem, "item", "", "What was eaten or done")
	logAddCmd.Flags().Float64Var(&logQuantity, "quantity", 1, "Servings, ml, minutes, or hours depending on category")
	logAddCmd.Flags().StringVar(&logDate, "date", "", "Date YYYY-MM-DD (default now)")
	logAddCmd.Flags().StringVar(&logTime, "time", "", "Time HH:MM (requires --date)")
	logAddCmd.Flags().StringVar(&logNotes, "notes", "", "Optional notes")
	for _, c := range []*cobra.Command{logAddCmd, logEditCmd} {
		c.Flags().Float64Var(&logCalories, "calories", 0, "Calories (marks the entry as a manual override)")
		c.Flags().Float64Var(&logProtein, "protein", 0, "Protein grams")
		c.Flags().Float64Var(&logCarbs, "carbs", 0, "Carbs grams")
		c.Flags().Float64Var(&logFat, "fat", 0, "Fat grams")
	}

	logListCmd.Flags().StringVar(&listDate, "date", "", "Filter by date YYYY-MM-DD")
	logListCmd.Flags().StringVar(&listFromDate, "from", "", "Filter from date YYYY-MM-DD")
	logListCmd.Flags().StringVar(&listToDate, "to", "", "Filter to date YYYY-MM-DD")
	logListCmd.Flags().StringVar(&listCategory, "category", "", "Filter by category")
	logListCmd.Flags().IntVar(&listLimit, "limit", 0, "Max entries (0 = all)")
	logListCmd.Flags().BoolVar(&listJSON, "json", false, "Print entries as JSON")
}
