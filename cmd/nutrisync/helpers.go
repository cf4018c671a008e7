package nutrisync

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/saadjs/nutrisync/internal/app"
	"github.com/saadjs/nutrisync/internal/config"
	"github.com/saadjs/nutrisync/internal/db"
	"github.com/saadjs/nutrisync/internal/poll"
	"github.com/saadjs/nutrisync/internal/provider/nutrientapi"
	"github.com/saadjs/nutrisync/internal/service"
)

func withDB(run func(*sql.DB) error) error {
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
	return run(sqldb)
}

func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	return app.DefaultDBPath()
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return app.DefaultConfigPath()
}

func currentConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

func location() (*time.Location, error) {
	return currentConfig().Location()
}

func today() (string, error) {
	loc, err := location()
	if err != nil {
		return "", err
	}
	return service.DayOf(time.Now(), loc), nil
}

// dayOrToday validates value, falling back to the current calendar day.
func dayOrToday(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return today()
	}
	if err := service.ValidateDay(value); err != nil {
		return "", fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", value)
	}
	return value, nil
}

func parseDateTimeOrNow(date, timeStr string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	timeStr = strings.TrimSpace(timeStr)
	if date == "" && timeStr == "" {
		return time.Now(), nil
	}
	if date == "" {
		return time.Time{}, fmt.Errorf("--date is required when --time is set")
	}
	if timeStr == "" {
		t, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", date)
		}
		return t.Add(12 * time.Hour), nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeStr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date/--time (expected YYYY-MM-DD and HH:MM)")
	}
	return t, nil
}

func newAnalysisClient(c *config.Config) *nutrientapi.Client {
	return &nutrientapi.Client{
		BaseURL:    c.Analysis.BaseURL,
		UserID:     c.Analysis.UserID,
		HTTPClient: &http.Client{Timeout: c.RequestTimeout()},
	}
}

func newSyncer(sqldb *sql.DB, c *config.Config, mode string) *service.Syncer {
	if strings.TrimSpace(mode) == "" {
		mode = c.Analysis.Mode
	}
	return service.NewSyncer(service.SQLStore{DB: sqldb}, newAnalysisClient(c), service.SyncerOptions{
		Mode: mode,
		Poll: poll.Config{
			InitialInterval: c.InitialInterval(),
			MaxInterval:     c.MaxInterval(),
			Multiplier:      c.Poll.Multiplier,
			Jitter:          c.Poll.Jitter,
			MaxAttempts:     c.Poll.MaxAttempts,
		},
		Logger: logger.Named("sync"),
	})
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}
