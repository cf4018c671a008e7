package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAnalysisURL     = "http://localhost:8000"
	DefaultUserID          = "local"
	DefaultAnalysisMode    = ModeAsync
	DefaultRequestTimeout  = "15s"
	DefaultInitialInterval = "1500ms"
	DefaultMaxInterval     = "10s"
	DefaultMultiplier      = 1.4
	DefaultJitter          = 0.1
	DefaultMaxAttempts     = 20
	DefaultSchedule        = "*/30 * * * *"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultSyncConcurrency = 2
	DefaultLookbackDays    = 2
)

const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// Config is the on-disk YAML configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Poll     PollConfig     `yaml:"poll"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Timezone is an IANA name used to assign calendar days to new entries.
	// Empty means the machine's local zone.
	Timezone string `yaml:"timezone"`
}

type AnalysisConfig struct {
	BaseURL string `yaml:"base_url"`
	UserID  string `yaml:"user_id"`
	Mode    string `yaml:"mode"` // sync or async
	Timeout string `yaml:"timeout"`
}

type PollConfig struct {
	InitialInterval string  `yaml:"initial_interval"`
	MaxInterval     string  `yaml:"max_interval"`
	Multiplier      float64 `yaml:"multiplier"`
	Jitter          float64 `yaml:"jitter"`
	MaxAttempts     int     `yaml:"max_attempts"`
}

type DaemonConfig struct {
	Schedule    string `yaml:"schedule"`
	Concurrency int    `yaml:"concurrency"`
	// LookbackDays is how many days, ending today, each tick re-syncs.
	LookbackDays int `yaml:"lookback_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			BaseURL: DefaultAnalysisURL,
			UserID:  DefaultUserID,
			Mode:    DefaultAnalysisMode,
			Timeout: DefaultRequestTimeout,
		},
		Poll: PollConfig{
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
			Multiplier:      DefaultMultiplier,
			Jitter:          DefaultJitter,
			MaxAttempts:     DefaultMaxAttempts,
		},
		Daemon: DaemonConfig{
			Schedule:     DefaultSchedule,
			Concurrency:  DefaultSyncConcurrency,
			LookbackDays: DefaultLookbackDays,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NUTRISYNC_ANALYSIS_URL"); v != "" {
		c.Analysis.BaseURL = v
	}
	if v := os.Getenv("NUTRISYNC_USER_ID"); v != "" {
		c.Analysis.UserID = v
	}
	if v := os.Getenv("NUTRISYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NUTRISYNC_TIMEZONE"); v != "" {
		c.Timezone = v
	}
}

func (c *Config) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.Analysis.Mode))
	switch mode {
	case "":
		c.Analysis.Mode = DefaultAnalysisMode
	case ModeSync, ModeAsync:
		c.Analysis.Mode = mode
	default:
		return fmt.Errorf("invalid analysis mode %q (expected sync or async)", c.Analysis.Mode)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone, defaulting to time.Local.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

func (c *Config) RequestTimeout() time.Duration {
	return parseDuration(c.Analysis.Timeout, 15*time.Second)
}

func (c *Config) InitialInterval() time.Duration {
	return parseDuration(c.Poll.InitialInterval, 1500*time.Millisecond)
}

func (c *Config) MaxInterval() time.Duration {
	return parseDuration(c.Poll.MaxInterval, 10*time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
