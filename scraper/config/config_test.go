package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "all_minifig_value_sales.csv", cfg.OutputCSV)
	assert.Equal(t, "failed_minifigs.txt", cfg.FailedFile)
	assert.Equal(t, "debug_blocks", cfg.DebugDir)
	assert.Equal(t, 30, cfg.PollAttempts)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.True(t, cfg.Headless)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OUTPUT_CSV", "other.csv")
	t.Setenv("POLL_ATTEMPTS", "5")
	t.Setenv("POLL_INTERVAL", "10ms")
	t.Setenv("HEADLESS", "false")

	cfg := Load()
	assert.Equal(t, "other.csv", cfg.OutputCSV)
	assert.Equal(t, 5, cfg.PollAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval)
	assert.False(t, cfg.Headless)
}

func TestConcurrencyIsClamped(t *testing.T) {
	t.Setenv("SCRAPE_CONCURRENCY", "99")
	assert.Equal(t, 4, Load().Concurrency)

	t.Setenv("SCRAPE_CONCURRENCY", "0")
	assert.Equal(t, 1, Load().Concurrency)
}
