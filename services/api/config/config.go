package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the REST API.
type Config struct {
	DatabaseURL     string
	Port            int
	BearerToken     string
	SourcesFile     string
	GeocoderDataset string
	GeocoderCache   string
	UserAgent       string
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	DefaultLimit    int
	DefaultDays     int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:            8080,
		UserAgent:       "swl-web-sdr/1.0",
		RefreshInterval: 15 * time.Minute,
		RequestTimeout:  30 * time.Second,
		DefaultLimit:    200,
		DefaultDays:     7,
	}

	// optional: the history endpoints answer 501 without it
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid REFRESH_INTERVAL: %s", v)
		}
		cfg.RefreshInterval = d
	}

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid REQUEST_TIMEOUT: %s", v)
		}
		cfg.RequestTimeout = d
	}

	if limitStr := os.Getenv("API_DEFAULT_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.DefaultLimit = limit
		} else {
			return cfg, fmt.Errorf("invalid API_DEFAULT_LIMIT: %s", limitStr)
		}
	}

	if daysStr := os.Getenv("API_DEFAULT_DAYS"); daysStr != "" {
		if days, err := strconv.Atoi(daysStr); err == nil && days > 0 {
			cfg.DefaultDays = days
		} else {
			return cfg, fmt.Errorf("invalid API_DEFAULT_DAYS: %s", daysStr)
		}
	}

	if ua := os.Getenv("USER_AGENT"); ua != "" {
		cfg.UserAgent = ua
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")
	cfg.SourcesFile = os.Getenv("SOURCES_FILE")
	cfg.GeocoderDataset = os.Getenv("GEOCODER_DATASET")
	cfg.GeocoderCache = os.Getenv("GEOCODER_CACHE_PATH")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
