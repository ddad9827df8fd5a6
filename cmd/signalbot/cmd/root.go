package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/signalbot/config"
)

var rootCmd = &cobra.Command{
	Use:   "signalbot",
	Short: "An LLM-driven trading signal bot with deterministic replay",
	Long: `Signalbot polls market data, asks a language model for limit-order trade
setups, and tracks each signal through its pending/active/resolved lifecycle.

It provides tools for:
  - Running the live polling loop against TwelveData candles
  - Gating new signals on risk/reward and level coherence
  - Persisting the signal history as JSON with a CSV export
  - Re-evaluating the recorded history over historical candles
  - Journaling resolved signals into SQLite`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

var (
	cfgPath string
	verbose bool
)

func init() {
	// API keys live in the environment; a .env next to the binary is enough.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(level)
}

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("%s is not set", name)
	}
	return v, nil
}
