package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete bot configuration. API keys are not part of
// it; they come from the environment (TWELVE_DATA_API_KEY, LLM_API_KEY).
type Config struct {
	Market  MarketConfig  `json:"market" yaml:"market"`
	LLM     LLMConfig     `json:"llm" yaml:"llm"`
	Signals SignalsConfig `json:"signals" yaml:"signals"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Live    LiveConfig    `json:"live" yaml:"live"`
	Replay  ReplayConfig  `json:"replay" yaml:"replay"`
}

// MarketConfig selects the instrument and candle windows to fetch.
type MarketConfig struct {
	Symbol          string `json:"symbol" yaml:"symbol"`
	Interval        string `json:"interval" yaml:"interval"`
	OutputSize      int    `json:"output_size" yaml:"output_size"`
	TrendInterval   string `json:"trend_interval" yaml:"trend_interval"`
	TrendOutputSize int    `json:"trend_output_size" yaml:"trend_output_size"`
}

// LLMConfig contains the generator endpoint parameters.
type LLMConfig struct {
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	// HistoryLimit is how many resolved signals the prompt gets to see.
	HistoryLimit int `json:"history_limit" yaml:"history_limit"`
}

// SignalsConfig contains lifecycle and admission parameters.
type SignalsConfig struct {
	Expiry string  `json:"expiry" yaml:"expiry"` // e.g. "60m"
	MinRR  float64 `json:"min_rr" yaml:"min_rr"`
	// InvalidateOnStopLoss selects the stricter pre-fill invalidation rule
	// (discard on stop touch as well as target touch).
	InvalidateOnStopLoss bool `json:"invalidate_on_stop_loss" yaml:"invalidate_on_stop_loss"`
	RequireOrderedLevels bool `json:"require_ordered_levels" yaml:"require_ordered_levels"`
	// DisplayZone is the IANA zone used when formatting timestamps for
	// humans. Storage is always UTC.
	DisplayZone string `json:"display_zone" yaml:"display_zone"`
}

// StoreConfig contains persistence paths.
type StoreConfig struct {
	JSONFile string `json:"json_file" yaml:"json_file"`
	CSVFile  string `json:"csv_file,omitempty" yaml:"csv_file,omitempty"`
	// DBPath enables the SQLite journal of resolved signals when set.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LiveConfig contains polling loop intervals.
type LiveConfig struct {
	PollInterval    string `json:"poll_interval" yaml:"poll_interval"`
	RetryInterval   string `json:"retry_interval" yaml:"retry_interval"`     // after a failed fetch
	IdleInterval    string `json:"idle_interval" yaml:"idle_interval"`       // no new candle yet
	FetchRetries    int    `json:"fetch_retries" yaml:"fetch_retries"`       // attempts per fetch
	FetchRetryDelay string `json:"fetch_retry_delay" yaml:"fetch_retry_delay"`
}

// ReplayConfig contains historical re-evaluation parameters.
type ReplayConfig struct {
	OutputFile      string `json:"output_file" yaml:"output_file"`
	BatchSize       int    `json:"batch_size" yaml:"batch_size"`
	Lookahead       string `json:"lookahead" yaml:"lookahead"` // candle window per signal
	Throttle        string `json:"throttle" yaml:"throttle"`   // delay between historical fetches
	FetchRetries    int    `json:"fetch_retries" yaml:"fetch_retries"`
	FetchRetryDelay string `json:"fetch_retry_delay" yaml:"fetch_retry_delay"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Market.Symbol == "" {
		return fmt.Errorf("market.symbol is required")
	}
	if c.Market.Interval == "" {
		return fmt.Errorf("market.interval is required")
	}
	if c.Market.OutputSize <= 0 {
		return fmt.Errorf("market.output_size must be positive")
	}
	if c.Signals.MinRR < 0 {
		return fmt.Errorf("signals.min_rr must not be negative")
	}
	if _, err := c.Signals.ExpiryDuration(); err != nil {
		return fmt.Errorf("signals.expiry: %w", err)
	}
	if c.Signals.DisplayZone != "" {
		if _, err := time.LoadLocation(c.Signals.DisplayZone); err != nil {
			return fmt.Errorf("signals.display_zone: %w", err)
		}
	}
	if c.Store.JSONFile == "" {
		return fmt.Errorf("store.json_file is required")
	}
	if c.Replay.BatchSize <= 0 {
		return fmt.Errorf("replay.batch_size must be positive")
	}
	if c.Replay.OutputFile == "" {
		return fmt.Errorf("replay.output_file is required")
	}
	for name, d := range map[string]string{
		"live.poll_interval":       c.Live.PollInterval,
		"live.retry_interval":      c.Live.RetryInterval,
		"live.idle_interval":       c.Live.IdleInterval,
		"live.fetch_retry_delay":   c.Live.FetchRetryDelay,
		"replay.lookahead":         c.Replay.Lookahead,
		"replay.throttle":          c.Replay.Throttle,
		"replay.fetch_retry_delay": c.Replay.FetchRetryDelay,
	} {
		if _, err := parseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// ExpiryDuration parses the configured signal time budget.
func (c SignalsConfig) ExpiryDuration() (time.Duration, error) {
	return parseDuration(c.Expiry)
}

// DisplayLocation resolves the configured IANA display zone, defaulting to UTC.
func (c SignalsConfig) DisplayLocation() *time.Location {
	if c.DisplayZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.DisplayZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Durations returns the live loop intervals in parsed form. Validate has
// already vetted the strings, so errors here collapse to zero.
func (c LiveConfig) Durations() (poll, retry, idle, fetchDelay time.Duration) {
	poll, _ = parseDuration(c.PollInterval)
	retry, _ = parseDuration(c.RetryInterval)
	idle, _ = parseDuration(c.IdleInterval)
	fetchDelay, _ = parseDuration(c.FetchRetryDelay)
	return
}

// Durations returns the replay pacing in parsed form.
func (c ReplayConfig) Durations() (lookahead, throttle, fetchDelay time.Duration) {
	lookahead, _ = parseDuration(c.Lookahead)
	throttle, _ = parseDuration(c.Throttle)
	fetchDelay, _ = parseDuration(c.FetchRetryDelay)
	return
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Market: MarketConfig{
			Symbol:          "BTC/USD:Binance",
			Interval:        "15min",
			OutputSize:      100,
			TrendInterval:   "1h",
			TrendOutputSize: 50,
		},
		LLM: LLMConfig{
			Model:        "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free",
			Temperature:  0.7,
			HistoryLimit: 5,
		},
		Signals: SignalsConfig{
			Expiry:               "60m",
			MinRR:                2,
			RequireOrderedLevels: true,
			DisplayZone:          "Asia/Jakarta",
		},
		Store: StoreConfig{
			JSONFile: "./signals.json",
			CSVFile:  "./signals.csv",
		},
		Live: LiveConfig{
			PollInterval:    "60s",
			RetryInterval:   "30s",
			IdleInterval:    "60s",
			FetchRetries:    3,
			FetchRetryDelay: "5s",
		},
		Replay: ReplayConfig{
			OutputFile:      "./signals_reevaluated.json",
			BatchSize:       50,
			Lookahead:       "24h",
			Throttle:        "8s",
			FetchRetries:    3,
			FetchRetryDelay: "5s",
		},
	}
}
