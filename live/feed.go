package live

import (
	"context"
	"time"

	"github.com/rustyeddy/signalbot/market"
	"github.com/rustyeddy/signalbot/twelvedata"
)

// MarketFeed adapts the TwelveData client to the controller's Feed contract
// for one configured symbol/interval.
type MarketFeed struct {
	Client *twelvedata.Client

	Symbol     string
	Interval   twelvedata.Interval
	OutputSize int

	// Coarser window backing the trend summary in the prompt.
	TrendInterval   twelvedata.Interval
	TrendOutputSize int

	Attempts   int
	RetryDelay time.Duration
}

// Latest returns the newest candle window, newest first.
func (f *MarketFeed) Latest(ctx context.Context) ([]market.Candle, error) {
	return f.Client.GetSeriesWithRetry(ctx, twelvedata.SeriesRequest{
		Symbol:     f.Symbol,
		Interval:   f.Interval,
		OutputSize: f.OutputSize,
	}, f.Attempts, f.RetryDelay)
}

// TrendSummary classifies the coarse-timeframe direction by comparing the
// oldest and newest closes of the trend window.
func (f *MarketFeed) TrendSummary(ctx context.Context) (string, error) {
	candles, err := f.Client.GetSeriesWithRetry(ctx, twelvedata.SeriesRequest{
		Symbol:     f.Symbol,
		Interval:   f.TrendInterval,
		OutputSize: f.TrendOutputSize,
	}, f.Attempts, f.RetryDelay)
	if err != nil {
		return "", err
	}
	if len(candles) < 2 {
		return "Unknown", nil
	}

	// Newest first: index 0 is the latest close.
	if candles[0].Close > candles[len(candles)-1].Close {
		return "Uptrend", nil
	}
	return "Downtrend", nil
}
