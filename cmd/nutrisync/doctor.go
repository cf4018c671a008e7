package nutrisync

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saadjs/nutrisync/internal/db"
	"github.com/saadjs/nutrisync/internal/service"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run data integrity checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			version, err := db.SchemaVersion(sqldb)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d\n", version)

			report, err := service.RunDoctor(sqldb, doctorFix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invalid macros rows: %d\n", report.InvalidMacros)
			fmt.Fprintf(cmd.OutOrStdout(), "Overrides without calories: %d\n", report.EmptyOverrides)
			fmt.Fprintf(cmd.OutOrStdout(), "Analyzed rows without calories: %d\n", report.AnalyzedWithoutKcal)
			if doctorFix {
				fmt.Fprintf(cmd.OutOrStdout(), "Fixed rows: %d\n", report.FixedRows)
				// Re-check so the exit status reflects the final state.
				report, err = service.RunDoctor(sqldb, false)
				if err != nil {
					return err
				}
			}
			if report.InvalidMacros > 0 || report.EmptyOverrides > 0 || report.AnalyzedWithoutKcal > 0 {
				return fmt.Errorf("doctor found integrity issues")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Attempt safe auto-fixes")
}
