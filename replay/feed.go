package replay

import (
	"context"
	"time"

	"github.com/rustyeddy/signalbot/market"
	"github.com/rustyeddy/signalbot/twelvedata"
)

// Feed adapts the TwelveData client to the HistoricalSource contract.
type Feed struct {
	Client *twelvedata.Client

	Symbol   string
	Interval twelvedata.Interval

	Attempts   int
	RetryDelay time.Duration
}

// Window fetches the candles between start and end. Retries stay inside
// GetSeriesWithRetry; a rate-limit error comes back unwrapped in sentinel
// terms so the controller can abort the batch.
func (f *Feed) Window(ctx context.Context, start, end time.Time) ([]market.Candle, error) {
	return f.Client.GetSeriesWithRetry(ctx, twelvedata.SeriesRequest{
		Symbol:     f.Symbol,
		Interval:   f.Interval,
		OutputSize: 5000,
		Start:      &start,
		End:        &end,
	}, f.Attempts, f.RetryDelay)
}
