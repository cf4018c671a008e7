package nutrisync

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saadjs/nutrisync/internal/service"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the body profile used for targets",
}

var profileInput service.SetProfileInput

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.SaveProfile(sqldb, profileInput); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Saved profile")
			return nil
		})
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			p, err := service.LoadProfile(sqldb)
			if err != nil {
				return err
			}
			if p == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Profile: not set (defaults apply)")
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sex: %s\n", p.Sex)
			fmt.Fprintf(out, "Age: %g\n", p.Age)
			fmt.Fprintf(out, "Height: %g cm\n", p.HeightCm)
			fmt.Fprintf(out, "Weight: %g kg\n", p.WeightKg)
			fmt.Fprintf(out, "Activity: %s\n", p.ActivityLevel)
			fmt.Fprintf(out, "Goal: %s\n", p.Goal)
			fmt.Fprintf(out, "Updated: %s\n", p.UpdatedAt.Format("2006-01-02 15:04"))
			return nil
		})
	},
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Show BMR, TDEE, and macro targets for the saved profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			g, err := service.CurrentGoals(sqldb)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "BMR: %d kcal\n", g.BMR)
			fmt.Fprintf(out, "Maintenance: %d kcal\n", g.MaintenanceCalories)
			fmt.Fprintf(out, "Target (%s): %d kcal\n", g.Profile.Goal, g.TDEE)
			fmt.Fprintf(out, "Macros: P %dg | C %dg | F %dg\n", g.Macros.ProteinG, g.Macros.CarbsG, g.Macros.FatG)
			fmt.Fprintf(out, "Water: %d ml | Sleep: %g h\n", g.WaterTargetMl, g.SleepTargetH)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(profileCmd, targetsCmd)
	profileCmd.AddCommand(profileSetCmd, profileShowCmd)

	profileSetCmd.Flags().StringVar(&profileInput.Sex, "sex", "male", "male or female")
	profileSetCmd.Flags().Float64Var(&profileInput.Age, "age", 0, "Age in years")
	profileSetCmd.Flags().Float64Var(&profileInput.HeightCm, "height", 0, "Height in cm")
	profileSetCmd.Flags().Float64Var(&profileInput.WeightKg, "weight", 0, "Weight in kg")
	profileSetCmd.Flags().StringVar(&profileInput.ActivityLevel, "activity", service.ActivityModeratelyActive, "sedentary, lightly_active, moderately_active, very_active, or athlete")
	profileSetCmd.Flags().StringVar(&profileInput.Goal, "goal", service.GoalMaintenance, "weight_loss, maintenance, or weight_gain")
	_ = profileSetCmd.MarkFlagRequired("age")
	_ = profileSetCmd.MarkFlagRequired("height")
	_ = profileSetCmd.MarkFlagRequired("weight")
}
