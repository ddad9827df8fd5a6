package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/signalbot/replay"
	"github.com/rustyeddy/signalbot/signal"
	"github.com/rustyeddy/signalbot/store"
	"github.com/rustyeddy/signalbot/twelvedata"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-evaluate the recorded signal history over historical candles",
	Long: `Replay the recorded signals through the lifecycle evaluator against
historical candle windows and write the corrected outcomes to a checkpoint file.

Each invocation processes at most one batch; progress resumes from the
checkpoint, so rerun the command until it reports completion. A provider
rate limit stops the batch early without losing work.

Examples:
  signalbot replay -f configs/btcusd.yaml
  signalbot replay --batch 10`,
	RunE: runReplay,
}

var replayBatchSize int

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().IntVar(&replayBatchSize, "batch", 0, "override configured batch size")
}

func runReplay(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	marketKey, err := requireEnv("TWELVE_DATA_API_KEY")
	if err != nil {
		return err
	}

	lookahead, throttle, fetchDelay := cfg.Replay.Durations()
	expiry, _ := cfg.Signals.ExpiryDuration()

	batch := cfg.Replay.BatchSize
	if replayBatchSize > 0 {
		batch = replayBatchSize
	}

	source := &replay.Feed{
		Client:     twelvedata.NewClient(marketKey),
		Symbol:     cfg.Market.Symbol,
		Interval:   twelvedata.Interval(cfg.Market.Interval),
		Attempts:   cfg.Replay.FetchRetries,
		RetryDelay: fetchDelay,
	}

	ctrl := replay.NewController(
		source,
		store.NewJSON(cfg.Store.JSONFile),
		store.NewJSON(cfg.Replay.OutputFile),
		replay.Config{
			BatchSize: batch,
			Lookahead: lookahead,
			Expiry:    expiry,
			Throttle:  throttle,
			Policy:    signal.Policy{InvalidateOnStopLoss: cfg.Signals.InvalidateOnStopLoss},
		}, log)

	res, err := ctrl.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Re-evaluated %d signal(s), %d/%d done.\n", res.Processed, res.Done, res.Total)
	if res.RateLimited {
		fmt.Println("Stopped early on the provider rate limit; rerun in a minute to continue.")
	} else if res.Done < res.Total {
		fmt.Println("Rerun to process the next batch.")
	}
	fmt.Printf("Checkpoint: %s\n", cfg.Replay.OutputFile)
	return nil
}
