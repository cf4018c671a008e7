package nutrisync

import (
	"database/sql"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saadjs/nutrisync/internal/scheduler"
)

var (
	daemonSchedule string
	daemonLookback int
	daemonOnce     bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync recent days on a cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		loc, err := location()
		if err != nil {
			return err
		}
		opts := scheduler.Options{
			Schedule:     c.Daemon.Schedule,
			LookbackDays: c.Daemon.LookbackDays,
			Concurrency:  c.Daemon.Concurrency,
			Location:     loc,
			Logger:       logger.Named("daemon"),
		}
		if s := strings.TrimSpace(daemonSchedule); s != "" {
			opts.Schedule = s
		}
		if daemonLookback > 0 {
			opts.LookbackDays = daemonLookback
		}

		return withDB(func(sqldb *sql.DB) error {
			s := scheduler.New(newSyncer(sqldb, c, ""), opts)
			if daemonOnce {
				_, err := s.RunOnce(cmd.Context())
				return err
			}
			if err := s.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			logger.Info("shutting down", zap.Error(cmd.Context().Err()))
			s.Stop()
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().StringVar(&daemonSchedule, "schedule", "", "Cron expression (default from config)")
	daemonCmd.Flags().IntVar(&daemonLookback, "lookback", 0, "Days ending today to sync on each tick (default from config)")
	daemonCmd.Flags().BoolVar(&daemonOnce, "once", false, "Run a single tick and exit")
}
