package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/signalbot/live"
	"github.com/rustyeddy/signalbot/llm"
	"github.com/rustyeddy/signalbot/risk"
	"github.com/rustyeddy/signalbot/signal"
	"github.com/rustyeddy/signalbot/store"
	"github.com/rustyeddy/signalbot/twelvedata"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live polling loop",
	Long: `Run the live signal loop: poll candles, advance the in-flight signal,
ask the model for a new setup when nothing is in flight, persist the history.

The loop runs until the process is stopped. Requires TWELVE_DATA_API_KEY and
LLM_API_KEY in the environment (or a .env file).

Example:
  signalbot run -f configs/btcusd.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	marketKey, err := requireEnv("TWELVE_DATA_API_KEY")
	if err != nil {
		return err
	}
	llmKey, err := requireEnv("LLM_API_KEY")
	if err != nil {
		return err
	}

	poll, retry, idle, fetchDelay := cfg.Live.Durations()
	expiry, _ := cfg.Signals.ExpiryDuration()

	feed := &live.MarketFeed{
		Client:          twelvedata.NewClient(marketKey),
		Symbol:          cfg.Market.Symbol,
		Interval:        twelvedata.Interval(cfg.Market.Interval),
		OutputSize:      cfg.Market.OutputSize,
		TrendInterval:   twelvedata.Interval(cfg.Market.TrendInterval),
		TrendOutputSize: cfg.Market.TrendOutputSize,
		Attempts:        cfg.Live.FetchRetries,
		RetryDelay:      fetchDelay,
	}

	genOpts := []llm.Option{
		llm.WithModel(cfg.LLM.Model),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithLogger(log),
	}
	if cfg.LLM.BaseURL != "" {
		genOpts = append(genOpts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	gen := llm.NewClient(llmKey, genOpts...)

	ctrl := live.NewController(feed, gen, store.NewJSON(cfg.Store.JSONFile), live.Config{
		Symbol:        cfg.Market.Symbol,
		Expiry:        expiry,
		Policy:        signal.Policy{InvalidateOnStopLoss: cfg.Signals.InvalidateOnStopLoss},
		Admission:     risk.Policy{MinRR: cfg.Signals.MinRR, RequireOrderedLevels: cfg.Signals.RequireOrderedLevels},
		HistoryLimit:  cfg.LLM.HistoryLimit,
		PollInterval:  poll,
		RetryInterval: retry,
		IdleInterval:  idle,
		DisplayZone:   cfg.Signals.DisplayLocation(),
	}, log)

	ctrl.CSVFile = cfg.Store.CSVFile

	if cfg.Store.DBPath != "" {
		j, err := store.NewSQLite(cfg.Store.DBPath)
		if err != nil {
			return fmt.Errorf("open signal journal: %w", err)
		}
		defer j.Close()
		ctrl.Journal = j
	}

	return ctrl.Run(context.Background())
}
