package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "BTC/USD:Binance", cfg.Market.Symbol)
	assert.Equal(t, 2.0, cfg.Signals.MinRR)
	assert.True(t, cfg.Signals.RequireOrderedLevels)
	assert.False(t, cfg.Signals.InvalidateOnStopLoss)

	exp, err := cfg.Signals.ExpiryDuration()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, exp)
	assert.Equal(t, "Asia/Jakarta", cfg.Signals.DisplayLocation().String())
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
market:
  symbol: "EUR/USD"
  interval: "5min"
  output_size: 200
signals:
  expiry: "90m"
  min_rr: 3
store:
  json_file: "./out.json"
replay:
  output_file: "./re.json"
  batch_size: 25
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR/USD", cfg.Market.Symbol)
	assert.Equal(t, 3.0, cfg.Signals.MinRR)
	assert.Equal(t, 25, cfg.Replay.BatchSize)

	exp, err := cfg.Signals.ExpiryDuration()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, exp)
}

func TestLoadFromFileRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"config.yaml", "config.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Default().SaveToFile(path))

		cfg, err := LoadFromFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, Default(), cfg, name)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing_symbol", func(c *Config) { c.Market.Symbol = "" }},
		{"missing_interval", func(c *Config) { c.Market.Interval = "" }},
		{"zero_output_size", func(c *Config) { c.Market.OutputSize = 0 }},
		{"negative_min_rr", func(c *Config) { c.Signals.MinRR = -1 }},
		{"bad_expiry", func(c *Config) { c.Signals.Expiry = "soon" }},
		{"bad_zone", func(c *Config) { c.Signals.DisplayZone = "Mars/Olympus" }},
		{"missing_json_file", func(c *Config) { c.Store.JSONFile = "" }},
		{"zero_batch_size", func(c *Config) { c.Replay.BatchSize = 0 }},
		{"missing_output_file", func(c *Config) { c.Replay.OutputFile = "" }},
		{"bad_poll_interval", func(c *Config) { c.Live.PollInterval = "every minute" }},
		{"bad_lookahead", func(c *Config) { c.Replay.Lookahead = "1 day" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurations(t *testing.T) {
	t.Parallel()

	cfg := Default()
	poll, retry, idle, fetchDelay := cfg.Live.Durations()
	assert.Equal(t, time.Minute, poll)
	assert.Equal(t, 30*time.Second, retry)
	assert.Equal(t, time.Minute, idle)
	assert.Equal(t, 5*time.Second, fetchDelay)

	lookahead, throttle, _ := cfg.Replay.Durations()
	assert.Equal(t, 24*time.Hour, lookahead)
	assert.Equal(t, 8*time.Second, throttle)
}

func TestDisplayLocationFallsBackToUTC(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.UTC, SignalsConfig{}.DisplayLocation())
}
