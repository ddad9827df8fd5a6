// Package live drives the polling loop: one fetch, one evaluation pass, at
// most one new signal, one persist — per tick.
package live

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/signalbot/llm"
	"github.com/rustyeddy/signalbot/market"
	"github.com/rustyeddy/signalbot/pkg/id"
	"github.com/rustyeddy/signalbot/risk"
	"github.com/rustyeddy/signalbot/signal"
	"github.com/rustyeddy/signalbot/store"
)

// Feed supplies the candle windows a tick needs.
type Feed interface {
	// Latest returns the newest candle window, newest first.
	Latest(ctx context.Context) ([]market.Candle, error)
	// TrendSummary classifies the coarser-timeframe direction for the prompt.
	TrendSummary(ctx context.Context) (string, error)
}

// Generator proposes the next trade setup. nil, nil means "no signal".
type Generator interface {
	Propose(ctx context.Context, mc llm.MarketContext) (*signal.Candidate, error)
}

// Store persists the full signal history on every tick.
type Store interface {
	Load() ([]signal.Signal, error)
	Save([]signal.Signal) error
}

// Journal optionally records terminal transitions.
type Journal interface {
	RecordResolved(signal.Signal) error
}

// Config carries the tick parameters; all durations are already parsed.
type Config struct {
	Symbol string

	Expiry       time.Duration
	Policy       signal.Policy
	Admission    risk.Policy
	HistoryLimit int

	PollInterval  time.Duration
	RetryInterval time.Duration
	IdleInterval  time.Duration

	DisplayZone *time.Location
}

// Controller owns the signal history and the last-processed candle stamp.
// Both are plain fields, not globals, so a tick can be tested in isolation.
type Controller struct {
	feed  Feed
	gen   Generator
	store Store
	cfg   Config
	log   zerolog.Logger

	// CSVFile mirrors the history into a tabular export when set.
	CSVFile string
	// Journal receives resolved signals when set. Journal errors are logged,
	// not fatal: the JSON store remains the source of truth.
	Journal Journal
	// Now is the tick clock, replaceable in tests.
	Now func() time.Time

	signals       []signal.Signal
	lastProcessed time.Time
}

func NewController(feed Feed, gen Generator, st Store, cfg Config, log zerolog.Logger) *Controller {
	if cfg.DisplayZone == nil {
		cfg.DisplayZone = time.UTC
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}
	return &Controller{
		feed:  feed,
		gen:   gen,
		store: st,
		cfg:   cfg,
		log:   log,
		Now:   time.Now,
	}
}

// TickResult summarizes what one tick did.
type TickResult struct {
	FetchFailed bool
	Stale       bool // newest candle was already processed

	Resolved *signal.Signal // in-flight signal that reached a terminal state
	Admitted *signal.Signal // freshly admitted signal, if any
	Rejected bool           // generator candidate discarded by the gate
}

// Signals returns a copy of the in-memory history, for inspection.
func (c *Controller) Signals() []signal.Signal {
	out := make([]signal.Signal, len(c.signals))
	copy(out, c.signals)
	return out
}

// Run polls forever. It returns only on context cancellation or on a
// persistence failure, which must surface to the operator rather than
// silently dropping lifecycle updates.
func (c *Controller) Run(ctx context.Context) error {
	sigs, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("load signal store: %w", err)
	}
	c.signals = sigs
	c.log.Info().Int("signals", len(sigs)).Str("symbol", c.cfg.Symbol).Msg("live loop started")

	for {
		res, err := c.Tick(ctx)
		if err != nil {
			return err
		}

		wait := c.cfg.PollInterval
		switch {
		case res.FetchFailed:
			wait = c.cfg.RetryInterval
		case res.Stale:
			wait = c.cfg.IdleInterval
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Tick runs one poll cycle. A fetch failure is reported in the result and
// retried next tick; nothing has been mutated by then. Errors are reserved
// for persistence failures and cancellation.
func (c *Controller) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult

	candles, err := c.feed.Latest(ctx)
	if err != nil || len(candles) == 0 {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		c.log.Warn().Err(err).Msg("market data fetch failed")
		res.FetchFailed = true
		return res, nil
	}

	newest := candles[0]
	if !c.lastProcessed.IsZero() && newest.Time.Equal(c.lastProcessed) {
		// The newest candle may still be forming; evaluating it twice could
		// resolve a signal on prices that later change.
		c.log.Debug().Time("candle", newest.Time).Msg("no new candle yet")
		res.Stale = true
		return res, nil
	}

	now := c.Now().UTC()
	c.advance(&res, newest, now)
	c.lastProcessed = newest.Time

	if flight := c.inFlight(); flight != nil {
		c.log.Info().
			Str("direction", string(flight.Direction)).
			Float64("entry", flight.Entry).
			Str("status", string(flight.Status)).
			Msg("waiting on in-flight signal")
	} else {
		c.generate(ctx, &res, candles, now)
	}

	if err := c.persist(); err != nil {
		return res, err
	}
	return res, nil
}

// advance applies expiry then the price evaluator to every in-flight signal.
// The single-flight rule means at most one should need it; the loop covers
// all of them anyway so a corrupted store cannot wedge the tick.
func (c *Controller) advance(res *TickResult, newest market.Candle, now time.Time) {
	for i, s := range c.signals {
		if !s.InFlight() {
			continue
		}

		if signal.Expired(s, now, c.cfg.Expiry) {
			c.signals[i] = signal.Expire(s)
			c.resolved(res, c.signals[i])
			continue
		}

		next, outcome := c.cfg.Policy.Step(s, newest)
		c.signals[i] = next
		if outcome != signal.OutcomeNone {
			c.resolved(res, next)
		} else if next.Status == signal.StatusActive && s.Status == signal.StatusPending {
			c.log.Info().
				Str("direction", string(next.Direction)).
				Float64("entry", next.Entry).
				Msg("signal filled")
		}
	}
}

func (c *Controller) resolved(res *TickResult, s signal.Signal) {
	c.log.Info().
		Str("direction", string(s.Direction)).
		Float64("entry", s.Entry).
		Str("outcome", string(s.Outcome)).
		Msg("signal resolved")
	res.Resolved = &s

	if c.Journal != nil {
		if err := c.Journal.RecordResolved(s); err != nil {
			c.log.Warn().Err(err).Msg("journal write failed")
		}
	}
}

// generate asks the model for a candidate and runs it through the admission
// gate. Rejected candidates are discarded, never persisted; the next tick
// asks again independently.
func (c *Controller) generate(ctx context.Context, res *TickResult, candles []market.Candle, now time.Time) {
	trend, err := c.feed.TrendSummary(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("trend fetch failed")
		trend = "Unknown"
	}

	cand, err := c.gen.Propose(ctx, llm.MarketContext{
		Symbol:  c.cfg.Symbol,
		Candles: candles,
		Trend:   trend,
		History: signal.LastResolved(c.signals, c.cfg.HistoryLimit),
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("generator call failed")
		return
	}
	if cand == nil {
		c.log.Info().Msg("no setup proposed")
		return
	}

	// Models occasionally answer probability on a 0-100 scale.
	if cand.Probability > 1 {
		cand.Probability /= 100
	}

	decision := risk.Evaluate(c.cfg.Admission, *cand)
	if !decision.Allowed {
		for _, v := range decision.Violations {
			c.log.Warn().
				Str("code", v.Code).
				Float64("rr", decision.RR).
				Msg("candidate rejected: " + v.Msg)
		}
		res.Rejected = true
		return
	}

	s := signal.Promote(*cand, id.New(), now)
	c.signals = append(c.signals, s)
	res.Admitted = &s

	c.log.Info().
		Str("id", s.ID).
		Str("direction", string(s.Direction)).
		Float64("entry", s.Entry).
		Float64("stop_loss", s.StopLoss).
		Float64("take_profit", s.TakeProfit).
		Float64("probability", s.Probability).
		Str("created_at", s.CreatedAt.In(c.cfg.DisplayZone).Format(time.RFC3339)).
		Msg("new signal admitted")
}

// persist rewrites the store and the CSV mirror unconditionally, whether or
// not the tick changed anything.
func (c *Controller) persist() error {
	if err := c.store.Save(c.signals); err != nil {
		return fmt.Errorf("persist signals: %w", err)
	}
	if c.CSVFile != "" {
		if err := store.WriteCSV(c.CSVFile, c.signals, c.cfg.DisplayZone); err != nil {
			return fmt.Errorf("export signals: %w", err)
		}
	}
	return nil
}

func (c *Controller) inFlight() *signal.Signal {
	var best *signal.Signal
	for i := range c.signals {
		s := &c.signals[i]
		if !s.InFlight() {
			continue
		}
		if best == nil || s.Probability > best.Probability {
			best = s
		}
	}
	return best
}
