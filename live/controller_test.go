package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/signalbot/llm"
	"github.com/rustyeddy/signalbot/market"
	"github.com/rustyeddy/signalbot/risk"
	"github.com/rustyeddy/signalbot/signal"
)

type fakeFeed struct {
	candles []market.Candle
	trend   string
	err     error
}

func (f *fakeFeed) Latest(ctx context.Context) ([]market.Candle, error) {
	return f.candles, f.err
}

func (f *fakeFeed) TrendSummary(ctx context.Context) (string, error) {
	if f.trend == "" {
		return "", errors.New("trend unavailable")
	}
	return f.trend, nil
}

type fakeGen struct {
	cand  *signal.Candidate
	err   error
	calls int
	last  llm.MarketContext
}

func (g *fakeGen) Propose(ctx context.Context, mc llm.MarketContext) (*signal.Candidate, error) {
	g.calls++
	g.last = mc
	if g.err != nil {
		return nil, g.err
	}
	if g.cand == nil {
		return nil, nil
	}
	c := *g.cand
	return &c, nil
}

type fakeStore struct {
	loaded []signal.Signal
	saved  [][]signal.Signal
	err    error
}

func (s *fakeStore) Load() ([]signal.Signal, error) { return s.loaded, nil }

func (s *fakeStore) Save(sigs []signal.Signal) error {
	if s.err != nil {
		return s.err
	}
	cp := make([]signal.Signal, len(sigs))
	copy(cp, sigs)
	s.saved = append(s.saved, cp)
	return nil
}

type fakeJournal struct {
	recorded []signal.Signal
	err      error
}

func (j *fakeJournal) RecordResolved(s signal.Signal) error {
	if j.err != nil {
		return j.err
	}
	j.recorded = append(j.recorded, s)
	return nil
}

func testConfig() Config {
	return Config{
		Symbol:       "BTC/USD:Binance",
		Expiry:       time.Hour,
		Admission:    risk.Policy{MinRR: 2, RequireOrderedLevels: true},
		HistoryLimit: 5,
	}
}

func newTestController(feed Feed, gen Generator, st Store) *Controller {
	c := NewController(feed, gen, st, testConfig(), zerolog.Nop())
	c.Now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return c
}

func candle(ts time.Time, high, low float64) market.Candle {
	return market.Candle{Time: ts, Open: low, High: high, Low: low, Close: high}
}

func goodCandidate() *signal.Candidate {
	return &signal.Candidate{
		Direction:   signal.BuyLimit,
		Entry:       100,
		StopLoss:    95,
		TakeProfit:  110,
		Probability: 0.8,
		Rationale:   "sweep",
	}
}

func TestTickAdmitsCandidate(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	feed := &fakeFeed{candles: []market.Candle{candle(ts, 105, 102)}, trend: "Uptrend"}
	gen := &fakeGen{cand: goodCandidate()}
	st := &fakeStore{}

	ctrl := newTestController(feed, gen, st)
	ctrl.signals = nil

	res, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Admitted)
	assert.Equal(t, signal.StatusPending, res.Admitted.Status)
	assert.NotEmpty(t, res.Admitted.ID)
	assert.Equal(t, "Uptrend", gen.last.Trend)

	// Persisted in the same tick.
	require.Len(t, st.saved, 1)
	require.Len(t, st.saved[0], 1)
	assert.Equal(t, res.Admitted.ID, st.saved[0][0].ID)
}

func TestTickRejectsLowRR(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	cand := goodCandidate()
	cand.TakeProfit = 104 // rr below the floor

	feed := &fakeFeed{candles: []market.Candle{candle(ts, 105, 102)}, trend: "Uptrend"}
	st := &fakeStore{}
	ctrl := newTestController(feed, &fakeGen{cand: cand}, st)

	res, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Nil(t, res.Admitted)

	// Rejected candidates never reach the store.
	require.Len(t, st.saved, 1)
	assert.Empty(t, st.saved[0])
}

func TestTickNormalizesProbabilityScale(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	cand := goodCandidate()
	cand.Probability = 80

	feed := &fakeFeed{candles: []market.Candle{candle(ts, 105, 102)}, trend: "Uptrend"}
	ctrl := newTestController(feed, &fakeGen{cand: cand}, &fakeStore{})

	res, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Admitted)
	assert.InDelta(t, 0.8, res.Admitted.Probability, 1e-9)
}

func TestTickSingleFlight(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	feed := &fakeFeed{candles: []market.Candle{candle(ts, 105, 102)}, trend: "Uptrend"}
	gen := &fakeGen{cand: goodCandidate()}
	ctrl := newTestController(feed, gen, &fakeStore{})
	ctrl.signals = []signal.Signal{{
		ID:         "inflight",
		Direction:  signal.BuyLimit,
		Entry:      90, // no touch on this candle
		StopLoss:   85,
		TakeProfit: 120,
		CreatedAt:  ts.Add(-5 * time.Minute),
		Status:     signal.StatusPending,
	}}

	res, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Admitted)
	assert.Zero(t, gen.calls, "the generator must not run while a signal is in flight")
}

func TestTickResolvesThenAllowsNext(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	// Candle hits the active signal's target, freeing the slot in the same
	// tick; the generator then runs.
	feed := &fakeFeed{candles: []market.Candle{candle(ts, 111, 101)}, trend: "Uptrend"}
	gen := &fakeGen{cand: nil}
	journal := &fakeJournal{}

	ctrl := newTestController(feed, gen, &fakeStore{})
	ctrl.Journal = journal
	ctrl.signals = []signal.Signal{{
		ID:         "active",
		Direction:  signal.BuyLimit,
		Entry:      100,
		StopLoss:   95,
		TakeProfit: 110,
		CreatedAt:  ts.Add(-5 * time.Minute),
		Status:     signal.StatusActive,
	}}

	res, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Resolved)
	assert.Equal(t, signal.OutcomeTakeProfit, res.Resolved.Outcome)
	assert.Equal(t, 1, gen.calls)

	require.Len(t, journal.recorded, 1)
	assert.Equal(t, "active", journal.recorded[0].ID)
}

func TestTickExpiresBeforeEvaluating(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	// The candle would hit the target, but the signal is past its horizon.
	feed := &fakeFeed{candles: []market.Candle{candle(ts, 111, 99)}, trend: "Uptrend"}
	ctrl := newTestController(feed, &fakeGen{}, &fakeStore{})
	ctrl.signals = []signal.Signal{{
		ID:         "stale",
		Direction:  signal.BuyLimit,
		Entry:      100,
		StopLoss:   95,
		TakeProfit: 110,
		CreatedAt:  ts.Add(-3 * time.Hour),
		Status:     signal.StatusActive,
	}}

	res, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Resolved)
	assert.Equal(t, signal.StatusExpired, res.Resolved.Status)
	assert.Equal(t, signal.OutcomeExpired, res.Resolved.Outcome)
}

func TestTickSkipsStaleCandle(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	feed := &fakeFeed{candles: []market.Candle{candle(ts, 105, 102)}, trend: "Uptrend"}
	gen := &fakeGen{cand: nil}
	st := &fakeStore{}
	ctrl := newTestController(feed, gen, st)

	res, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Stale)

	res, err = ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, 1, gen.calls, "a stale candle must not trigger generation")
	assert.Len(t, st.saved, 1, "a stale tick must not rewrite the store")
}

func TestTickFetchFailure(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{err: errors.New("boom")}
	gen := &fakeGen{}
	st := &fakeStore{}
	ctrl := newTestController(feed, gen, st)

	res, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, res.FetchFailed)
	assert.Zero(t, gen.calls)
	assert.Empty(t, st.saved)
}

func TestTickGeneratorFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	feed := &fakeFeed{candles: []market.Candle{candle(ts, 105, 102)}, trend: "Uptrend"}
	st := &fakeStore{}
	ctrl := newTestController(feed, &fakeGen{err: errors.New("model down")}, st)

	res, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Admitted)
	assert.Len(t, st.saved, 1)
}

func TestTickPersistFailureIsFatal(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	feed := &fakeFeed{candles: []market.Candle{candle(ts, 105, 102)}, trend: "Uptrend"}
	ctrl := newTestController(feed, &fakeGen{}, &fakeStore{err: errors.New("disk full")})

	_, err := ctrl.Tick(context.Background())
	assert.Error(t, err)
}

func TestTickJournalFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	feed := &fakeFeed{candles: []market.Candle{candle(ts, 111, 101)}, trend: "Uptrend"}
	ctrl := newTestController(feed, &fakeGen{}, &fakeStore{})
	ctrl.Journal = &fakeJournal{err: errors.New("locked")}
	ctrl.signals = []signal.Signal{{
		ID:         "active",
		Direction:  signal.BuyLimit,
		Entry:      100,
		StopLoss:   95,
		TakeProfit: 110,
		CreatedAt:  ts.Add(-5 * time.Minute),
		Status:     signal.StatusActive,
	}}

	res, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, res.Resolved)
}

func TestTickTrendFallsBackToUnknown(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	feed := &fakeFeed{candles: []market.Candle{candle(ts, 105, 102)}} // trend errors
	gen := &fakeGen{cand: nil}
	ctrl := newTestController(feed, gen, &fakeStore{})

	_, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Unknown", gen.last.Trend)
}

func TestHistoryInPromptExcludesInvalid(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 11, 45, 0, 0, time.UTC)
	feed := &fakeFeed{candles: []market.Candle{candle(ts, 105, 102)}, trend: "Uptrend"}
	gen := &fakeGen{cand: nil}
	ctrl := newTestController(feed, gen, &fakeStore{})
	ctrl.signals = []signal.Signal{
		{ID: "won", Status: signal.StatusTakeProfit, Outcome: signal.OutcomeTakeProfit},
		{ID: "never", Status: signal.StatusInvalid, Outcome: signal.OutcomeInvalidTPFirst},
	}

	_, err := ctrl.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, gen.last.History, 1)
	assert.Equal(t, "won", gen.last.History[0].ID)
}
