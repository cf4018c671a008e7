package nutrisync

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/service"
)

var (
	exportFormat string
	exportOut    string
	importIn     string
	importMode   string
	importDryRun bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export local data (json or csv)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(exportOut) == "" {
			return fmt.Errorf("--out is required")
		}
		return withDB(func(sqldb *sql.DB) error {
			switch strings.ToLower(strings.TrimSpace(exportFormat)) {
			case "json":
				data, err := service.ExportDataSnapshot(sqldb)
				if err != nil {
					return err
				}
				b, err := json.MarshalIndent(data, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal export json: %w", err)
				}
				if err := os.WriteFile(exportOut, b, 0o644); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
			case "csv":
				entries, err := service.ListEntries(sqldb, service.ListEntriesFilter{})
				if err != nil {
					return err
				}
				if err := writeEntriesCSV(exportOut, entries); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported --format %q (use json or csv)", exportFormat)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported data to %s\n", exportOut)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a JSON export",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(importIn) == "" {
			return fmt.Errorf("--in is required")
		}
		raw, err := os.ReadFile(importIn)
		if err != nil {
			return fmt.Errorf("read import file: %w", err)
		}
		var payload service.ExportData
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("parse import json: %w", err)
		}
		return withDB(func(sqldb *sql.DB) error {
			report, err := service.ImportDataSnapshotWithOptions(sqldb, &payload, service.ImportOptions{
				Mode:   service.ImportMode(importMode),
				DryRun: importDryRun,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Import report: inserted=%d updated=%d skipped=%d conflicts=%d\n", report.Inserted, report.Updated, report.Skipped, report.Conflicts)
			for _, w := range report.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
			}
			if importDryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "Dry-run import validated %s\n", importIn)
			}
			return nil
		})
	},
}

func writeEntriesCSV(path string, entries []model.LogEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "date", "timestamp", "category", "item", "quantity", "calories", "protein_g", "carbs_g", "fat_g", "manual_override", "provenance", "notes"}); err != nil {
		return fmt.Errorf("write export csv header: %w", err)
	}
	for _, e := range entries {
		protein, carbs, fat := "", "", ""
		if e.Macros != nil {
			protein = strconv.FormatFloat(e.Macros.ProteinG, 'f', -1, 64)
			carbs = strconv.FormatFloat(e.Macros.CarbsG, 'f', -1, 64)
			fat = strconv.FormatFloat(e.Macros.FatG, 'f', -1, 64)
		}
		calories := ""
		if e.Calories != nil {
			calories = strconv.FormatFloat(*e.Calories, 'f', -1, 64)
		}
		record := []string{
			e.ID,
			e.Date,
			e.CreatedAt().UTC().Format(time.RFC3339),
			string(e.Category),
			e.Item,
			strconv.FormatFloat(e.Quantity, 'f', -1, 64),
			calories,
			protein,
			carbs,
			fat,
			strconv.FormatBool(e.ManualOverride),
			string(e.Provenance),
			e.Notes,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write export csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export csv: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json or csv")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file path")
	importCmd.Flags().StringVar(&importIn, "in", "", "Input file path")
	importCmd.Flags().StringVar(&importMode, "mode", "merge", "Import mode: fail|skip|merge|replace")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate and report without writing data")
}
