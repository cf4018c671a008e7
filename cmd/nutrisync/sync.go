package nutrisync

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/saadjs/nutrisync/internal/service"
)

var (
	syncDate     string
	syncFrom     string
	syncTo       string
	syncMode     string
	syncParallel int

	historyDate  string
	historyLimit int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Send meal entries to the analysis service and apply the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, err := syncDays()
		if err != nil {
			return err
		}
		c := currentConfig()
		mode := strings.ToLower(strings.TrimSpace(syncMode))
		if mode != "" && mode != service.SyncModeSync && mode != service.SyncModeAsync {
			return fmt.Errorf("invalid --mode %q (expected sync or async)", syncMode)
		}
		parallel := syncParallel
		if parallel <= 0 {
			parallel = c.Daemon.Concurrency
		}
		return withDB(func(sqldb *sql.DB) error {
			syncer := newSyncer(sqldb, c, mode)
			outcomes, err := syncer.SyncDays(cmd.Context(), days, parallel)
			fmt.Fprintln(cmd.OutOrStdout(), "DAY\tSTATUS\tATTEMPTS\tSUBMITTED\tAPPLIED\tDROPPED")
			for _, o := range outcomes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t%d\t%d\t%d\n", o.Day, o.Status, o.Attempts, o.Submitted, o.Applied, o.Dropped)
			}
			return err
		})
	},
}

var syncHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			runs, err := service.ListSyncRuns(sqldb, historyDate, historyLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tDAY\tMODE\tSTATUS\tATTEMPTS\tSUBMITTED\tMATCHED\tDROPPED\tSTARTED\tERROR")
			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
					r.ID, r.Day, r.Mode, r.Status, r.Attempts, r.Submitted, r.Matched, r.Dropped, r.StartedAt.Local().Format(time.RFC3339), r.Error)
			}
			return nil
		})
	},
}

func syncDays() ([]string, error) {
	if strings.TrimSpace(syncFrom) != "" || strings.TrimSpace(syncTo) != "" {
		if strings.TrimSpace(syncDate) != "" {
			return nil, fmt.Errorf("--date cannot be combined with --from or --to")
		}
		to, err := dayOrToday(syncTo)
		if err != nil {
			return nil, err
		}
		from := strings.TrimSpace(syncFrom)
		if from == "" {
			from = to
		}
		return service.DaysBetween(from, to)
	}
	day, err := dayOrToday(syncDate)
	if err != nil {
		return nil, err
	}
	return []string{day}, nil
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncHistoryCmd)

	syncCmd.Flags().StringVar(&syncDate, "date", "", "Day to sync YYYY-MM-DD (default today)")
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "First day of a range YYYY-MM-DD")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "Last day of a range YYYY-MM-DD (default today)")
	syncCmd.Flags().StringVar(&syncMode, "mode", "", "sync or async (default from config)")
	syncCmd.Flags().IntVar(&syncParallel, "parallel", 0, "Days analyzed at once (default from config)")

	syncHistoryCmd.Flags().StringVar(&historyDate, "date", "", "Only runs for this day")
	syncHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Max runs to show")
}
