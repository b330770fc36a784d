package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultMinInterval    = 5 * time.Minute
	defaultRequestTimeout = 30 * time.Second
	defaultUserAgent      = "swl-web-sdr-watcher/1.0"
)

// Config holds runtime configuration for the watcher service.
type Config struct {
	DatabaseURL     string
	SourcesFile     string
	GeocoderDataset string
	GeocoderCache   string
	UserAgent       string
	MinInterval     time.Duration
	RequestTimeout  time.Duration
	UsersEpsilon    float64
	DryRun          bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{}

	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" && !cfg.DryRun {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.SourcesFile = strings.TrimSpace(os.Getenv("SOURCES_FILE"))
	cfg.GeocoderDataset = strings.TrimSpace(os.Getenv("GEOCODER_DATASET"))
	cfg.GeocoderCache = strings.TrimSpace(os.Getenv("GEOCODER_CACHE_PATH"))

	cfg.UserAgent = strings.TrimSpace(os.Getenv("USER_AGENT"))
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	cfg.MinInterval = defaultMinInterval
	if v := strings.TrimSpace(os.Getenv("WATCHER_MIN_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid WATCHER_MIN_INTERVAL: %w", err)
		}
		cfg.MinInterval = d
	}

	cfg.RequestTimeout = defaultRequestTimeout
	if v := strings.TrimSpace(os.Getenv("WATCHER_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid WATCHER_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("WATCHER_USERS_EPSILON")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid WATCHER_USERS_EPSILON: %w", err)
		}
		if f < 0 {
			return cfg, errors.New("WATCHER_USERS_EPSILON must not be negative")
		}
		cfg.UsersEpsilon = f
	}

	return cfg, nil
}
