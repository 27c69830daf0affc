package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roadweather/roadweather/internal/database"
	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/session"
	"github.com/roadweather/roadweather/internal/warehouse"
	"github.com/roadweather/roadweather/internal/worker"
)

// Warehouse modes.
const (
	modePostgres = "postgres"
	modeMemory   = "memory"
)

// config is the process configuration read from the environment.
type config struct {
	Port       string
	Env        string
	LogLevel   string
	RequireTLS bool

	WarehouseMode string
	Dataset       warehouse.PostgresConfig
	Database      database.Config

	CacheSize      int
	SessionIdleTTL time.Duration
	SweepInterval  time.Duration
	WarmRanges     []hours.Range

	PubSubProject      string
	PubSubSubscription string
}

func loadConfig() (config, error) {
	cfg := config{
		Port:          getEnvOrDefault("APP_PORT", "8080"),
		Env:           getEnvOrDefault("APP_ENV", "development"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		RequireTLS:    os.Getenv("REQUIRE_TLS") == "true",
		WarehouseMode: getEnvOrDefault("WAREHOUSE_MODE", modePostgres),
		Dataset: warehouse.PostgresConfig{
			City:         os.Getenv("TARGET_CITY"),
			HighwayTable: os.Getenv("HIGHWAY_TABLE"),
			WeatherTable: os.Getenv("WEATHER_TABLE"),
		},
		Database:           database.ConfigFromEnv(),
		PubSubProject:      os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
	}

	if cfg.Dataset.City == "" {
		cfg.Dataset.City = warehouse.DefaultPostgresConfig().City
	}

	switch cfg.WarehouseMode {
	case modePostgres, modeMemory:
	default:
		return config{}, fmt.Errorf("WAREHOUSE_MODE must be %q or %q, got %q", modePostgres, modeMemory, cfg.WarehouseMode)
	}

	var err error
	if cfg.CacheSize, err = intFromEnv("CACHE_SIZE", 64); err != nil {
		return config{}, err
	}
	if cfg.SessionIdleTTL, err = durationFromEnv("SESSION_IDLE_TTL", session.DefaultIdleTTL); err != nil {
		return config{}, err
	}
	if cfg.SweepInterval, err = durationFromEnv("SESSION_SWEEP_INTERVAL", worker.DefaultSweepInterval); err != nil {
		return config{}, err
	}

	if v := os.Getenv("WARM_PRESETS"); v != "" {
		ids := strings.Split(v, ",")
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
		if cfg.WarmRanges, err = worker.RangesForPresets(ids); err != nil {
			return config{}, fmt.Errorf("WARM_PRESETS: %w", err)
		}
	}

	if (cfg.PubSubProject == "") != (cfg.PubSubSubscription == "") {
		return config{}, fmt.Errorf("PUBSUB_PROJECT_ID and PUBSUB_SUBSCRIPTION must be set together")
	}

	return cfg, nil
}

func intFromEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
