package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds collector configuration, loaded from the environment.
type Config struct {
	OutputCSV    string
	FailedFile   string
	DebugDir     string
	ImageDir     string
	Headless     bool
	NavTimeout   time.Duration
	PollInterval time.Duration
	PollAttempts int
	Concurrency  int
}

// Load reads configuration from environment variables with defaults
// matching the collector's standard file layout.
func Load() Config {
	return Config{
		OutputCSV:    getEnv("OUTPUT_CSV", "all_minifig_value_sales.csv"),
		FailedFile:   getEnv("FAILED_FILE", "failed_minifigs.txt"),
		DebugDir:     getEnv("DEBUG_DIR", "debug_blocks"),
		ImageDir:     getEnv("IMG_DIR", "assets/images"),
		Headless:     getEnvBool("HEADLESS", true),
		NavTimeout:   getEnvDuration("NAV_TIMEOUT", 60*time.Second),
		PollInterval: getEnvDuration("POLL_INTERVAL", time.Second),
		PollAttempts: getEnvInt("POLL_ATTEMPTS", 30),
		Concurrency:  clamp(getEnvInt("SCRAPE_CONCURRENCY", 1), 1, 4),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
