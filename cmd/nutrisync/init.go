package nutrisync

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saadjs/nutrisync/internal/app"
	"github.com/saadjs/nutrisync/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the local database and config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		if err := app.EnsureDBDir(path); err != nil {
			return err
		}

		sqldb, err := db.Open(path)
		if err != nil {
			return err
		}
		defer sqldb.Close()

		if err := db.ApplyMigrations(sqldb); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized nutrisync database at %s\n", path)

		cfgPath, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			if err := currentConfig().Save(cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", cfgPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
