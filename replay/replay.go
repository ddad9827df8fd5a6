// Package replay re-derives signal lifecycles over historical candle windows.
// It exists to audit the live loop: for the same candles it must land on
// exactly the same status and outcome, and it must survive the provider's
// per-minute rate limit by checkpointing between batches.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/signalbot/market"
	"github.com/rustyeddy/signalbot/signal"
	"github.com/rustyeddy/signalbot/twelvedata"
)

// HistoricalSource fetches the candle window for one signal. Implementations
// retry transient failures internally and pass twelvedata.ErrRateLimited
// through untouched so the batch can abort.
type HistoricalSource interface {
	Window(ctx context.Context, start, end time.Time) ([]market.Candle, error)
}

// Store is the subset of the signal store replay needs.
type Store interface {
	Load() ([]signal.Signal, error)
	Save([]signal.Signal) error
}

// Config carries the replay pacing and lifecycle parameters.
type Config struct {
	// BatchSize caps how many signals one invocation processes.
	BatchSize int
	// Lookahead bounds the candle window fetched per signal.
	Lookahead time.Duration
	// Expiry is the signal time budget, same value the live loop uses.
	Expiry time.Duration
	// Throttle is the self-imposed delay between historical fetches.
	Throttle time.Duration

	Policy signal.Policy
}

// Controller reads the recorded history, re-evaluates a batch and appends
// the results to the checkpoint store.
type Controller struct {
	source HistoricalSource
	input  Store
	output Store
	cfg    Config
	log    zerolog.Logger
}

func NewController(source HistoricalSource, input, output Store, cfg Config, log zerolog.Logger) *Controller {
	return &Controller{
		source: source,
		input:  input,
		output: output,
		cfg:    cfg,
		log:    log,
	}
}

// Result summarizes one invocation.
type Result struct {
	Total       int  // signals in the input history
	Done        int  // signals in the checkpoint store afterwards
	Processed   int  // signals handled by this invocation
	RateLimited bool // batch aborted early on the provider rate limit
}

// Run processes the next batch. The number of records already checkpointed
// is the resume offset into the chronologically sorted input, so repeated
// invocations make monotonic progress without reprocessing.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	input, err := c.input.Load()
	if err != nil {
		return Result{}, fmt.Errorf("load input history: %w", err)
	}
	sort.SliceStable(input, func(i, j int) bool {
		return input[i].CreatedAt.Before(input[j].CreatedAt)
	})

	done, err := c.output.Load()
	if err != nil {
		return Result{}, fmt.Errorf("load checkpoint store: %w", err)
	}

	res := Result{Total: len(input), Done: len(done)}
	if len(done) >= len(input) {
		c.log.Info().Int("signals", len(done)).Msg("all signals already re-evaluated")
		return res, nil
	}

	start := len(done)
	end := start + c.cfg.BatchSize
	if end > len(input) {
		end = len(input)
	}
	c.log.Info().Int("from", start+1).Int("to", end).Int("total", len(input)).Msg("processing batch")

	for i := start; i < end; i++ {
		replayed, err := c.reevaluate(ctx, input[i])
		switch {
		case errors.Is(err, twelvedata.ErrRateLimited):
			// Abort the whole batch; everything processed so far is kept.
			c.log.Warn().Msg("provider rate limit hit, stopping batch")
			res.RateLimited = true
		case err != nil:
			// Couldn't rebuild this one; keep its original recorded outcome.
			c.log.Warn().Err(err).Str("id", input[i].ID).Msg("window fetch failed, keeping original record")
			done = append(done, input[i])
			res.Processed++
		default:
			c.log.Info().
				Str("id", replayed.ID).
				Str("old_outcome", string(input[i].Outcome)).
				Str("new_outcome", string(replayed.Outcome)).
				Msg("signal re-evaluated")
			done = append(done, replayed)
			res.Processed++
		}

		if res.RateLimited {
			break
		}
		if i+1 < end && c.cfg.Throttle > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(c.cfg.Throttle):
			}
		}
	}

	if err := c.output.Save(done); err != nil {
		return res, fmt.Errorf("persist checkpoint store: %w", err)
	}
	res.Done = len(done)
	return res, nil
}

// reevaluate rebuilds one signal's lifecycle from scratch against its
// historical candle window.
func (c *Controller) reevaluate(ctx context.Context, orig signal.Signal) (signal.Signal, error) {
	// Working copy back to the initial state; the original stays untouched
	// until the result is committed.
	s := orig
	s.Status = signal.StatusPending
	s.Outcome = signal.OutcomeNone

	winStart := orig.CreatedAt
	winEnd := winStart.Add(c.cfg.Lookahead)
	candles, err := c.source.Window(ctx, winStart, winEnd)
	if err != nil {
		return signal.Signal{}, err
	}

	for _, candle := range market.Chronological(candles) {
		next, outcome := c.cfg.Policy.Step(s, candle)
		s = next
		if outcome != signal.OutcomeNone {
			break
		}
	}

	// Window exhausted without a resolution. If the data provably covers the
	// expiry horizon, the live loop would have expired it by now.
	if !s.Terminal() {
		horizon := orig.CreatedAt.Add(c.cfg.Expiry)
		if len(candles) == 0 || lastTime(candles).After(horizon) {
			s = signal.Expire(s)
		}
	}

	return s, nil
}

func lastTime(candles []market.Candle) time.Time {
	last := candles[0].Time
	for _, c := range candles[1:] {
		if c.Time.After(last) {
			last = c.Time
		}
	}
	return last
}
