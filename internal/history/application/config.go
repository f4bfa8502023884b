package application

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Config defines history build configuration.
type Config struct {
	FeedDir       string         `yaml:"feed_dir"`
	WorkbookPath  string         `yaml:"workbook_path"`
	StartDate     string         `yaml:"start_date"`
	EndDate       string         `yaml:"end_date"`
	IncludeTopUps bool           `yaml:"include_topups"`
	IncludeFailed bool           `yaml:"include_failed"`
	Workers       int            `yaml:"workers"`
	ProgressEvery int            `yaml:"progress_every"`
	Schedule      ScheduleConfig `yaml:"schedule"`
	WebhookURL    string         `yaml:"webhook_url"`
}

// ScheduleConfig defines the nightly build schedule.
type ScheduleConfig struct {
	DailyAt string `yaml:"daily_at"`
	Mode    string `yaml:"mode"`
}

// LoadConfig reads the optional yaml file named by HISTORY_CONFIG and applies
// environment overrides on top.
func LoadConfig() (Config, error) {
	cfg := Config{
		FeedDir:       filepath.FromSlash("var/feeds/translog"),
		Workers:       4,
		ProgressEvery: 100,
	}

	if path := os.Getenv("HISTORY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	overrideString(&cfg.FeedDir, "HISTORY_FEED_DIR")
	overrideString(&cfg.WorkbookPath, "HISTORY_WORKBOOK")
	overrideString(&cfg.StartDate, "HISTORY_START_DATE")
	overrideString(&cfg.EndDate, "HISTORY_END_DATE")
	overrideBool(&cfg.IncludeTopUps, "HISTORY_INCLUDE_TOPUPS")
	overrideBool(&cfg.IncludeFailed, "HISTORY_INCLUDE_FAILED")
	overrideInt(&cfg.Workers, "HISTORY_WORKERS")
	overrideInt(&cfg.ProgressEvery, "HISTORY_PROGRESS_EVERY")
	overrideString(&cfg.WebhookURL, "HISTORY_WEBHOOK_URL")
	overrideString(&cfg.Schedule.DailyAt, "HISTORY_DAILY_AT")
	overrideString(&cfg.Schedule.Mode, "HISTORY_SCHEDULE_MODE")

	if cfg.Schedule.DailyAt == "" {
		cfg.Schedule.DailyAt = "02:30"
	}
	if cfg.Schedule.Mode == "" {
		cfg.Schedule.Mode = JobTypeAppend
	}
	if cfg.Schedule.Mode != JobTypeRebuild && cfg.Schedule.Mode != JobTypeAppend {
		return cfg, fmt.Errorf("history: unknown schedule mode %q", cfg.Schedule.Mode)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 100
	}
	if _, _, err := cfg.Bounds(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Bounds returns the configured axis overrides. A zero time means the bound
// is derived from the feed.
func (c Config) Bounds() (time.Time, time.Time, error) {
	start, err := parseDate(c.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(c.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("history: parse date %q: %w", value, err)
	}
	return parsed.UTC(), nil
}

func overrideString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func overrideInt(dst *int, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		*dst = parsed
	}
}

func overrideBool(dst *bool, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseBool(value); err == nil {
		*dst = parsed
	}
}
