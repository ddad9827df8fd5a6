package market

import (
	"sort"
	"time"
)

// Candle represents OHLC (Open, High, Low, Close) candlestick data.
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Chronological returns a copy of cs sorted oldest first. Providers hand back
// series newest first; replay wants them in trading order.
func Chronological(cs []Candle) []Candle {
	out := make([]Candle, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}
