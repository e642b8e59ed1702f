// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Environment     string
	DBPath          string
	BlueBaseURL     string
	YellowBaseURL   string
	SyncInterval    time.Duration
	SyncWorkers     int
	ExcludedRepoURL string
	SpecialProject  string
	SpecialRepoURL  string
}

// HasRegionEndpoints returns true when both region base URLs are configured.
// Used by the composition root to decide whether gate resolution runs against
// live region clients or stays dormant.
func (c *Config) HasRegionEndpoints() bool {
	return c.BlueBaseURL != "" && c.YellowBaseURL != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// Region endpoints (GATEBOARD_BLUE_BASE_URL, GATEBOARD_YELLOW_BASE_URL) are optional;
// if absent, the app starts but gate resolution is inactive.
// Optional variables with defaults: GATEBOARD_ENVIRONMENT (production),
// GATEBOARD_SYNC_INTERVAL (1h), GATEBOARD_SYNC_WORKERS (0 = NumCPU),
// GATEBOARD_DB_PATH (gateboard.db).
func Load() (*Config, error) {
	environment := "production"
	if v, ok := os.LookupEnv("GATEBOARD_ENVIRONMENT"); ok && v != "" {
		environment = v
	}

	dbPath := "gateboard.db"
	if v, ok := os.LookupEnv("GATEBOARD_DB_PATH"); ok {
		dbPath = v
	}

	syncInterval := time.Hour
	if v, ok := os.LookupEnv("GATEBOARD_SYNC_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("GATEBOARD_SYNC_INTERVAL has invalid duration %q: %w", v, err)
		}
		syncInterval = parsed
	}

	syncWorkers := 0
	if v, ok := os.LookupEnv("GATEBOARD_SYNC_WORKERS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("GATEBOARD_SYNC_WORKERS has invalid count %q", v)
		}
		syncWorkers = parsed
	}

	return &Config{
		Environment:     environment,
		DBPath:          dbPath,
		BlueBaseURL:     strings.TrimSuffix(os.Getenv("GATEBOARD_BLUE_BASE_URL"), "/"),
		YellowBaseURL:   strings.TrimSuffix(os.Getenv("GATEBOARD_YELLOW_BASE_URL"), "/"),
		SyncInterval:    syncInterval,
		SyncWorkers:     syncWorkers,
		ExcludedRepoURL: os.Getenv("GATEBOARD_EXCLUDED_REPO_URL"),
		SpecialProject:  os.Getenv("GATEBOARD_SPECIAL_PROJECT"),
		SpecialRepoURL:  os.Getenv("GATEBOARD_SPECIAL_REPO_URL"),
	}, nil
}
