package signal

import (
	"time"

	"github.com/rustyeddy/signalbot/market"
)

// Policy selects between the two recorded pre-fill invalidation rules.
type Policy struct {
	// InvalidateOnStopLoss additionally discards a pending signal when the
	// stop level is touched before the entry fills. The default (false)
	// invalidates only when the target is reached first.
	InvalidateOnStopLoss bool
}

// Step advances a signal against one candle and returns the updated signal
// plus the terminal outcome, if any. Terminal signals pass through untouched.
//
// For a pending signal the invalidation check runs before the fill check: a
// candle that reaches the target makes the setup unexecutable no matter what
// else it touched. A fill consumes the whole candle; stop and target are
// first evaluated against the next one. From active, the stop is checked
// before the target so a candle spanning both levels resolves conservatively.
func (p Policy) Step(s Signal, c market.Candle) (Signal, Outcome) {
	if s.Terminal() {
		return s, OutcomeNone
	}

	if s.Status == StatusPending {
		switch s.Direction {
		case BuyLimit:
			if c.High >= s.TakeProfit {
				return s.resolve(StatusInvalid, OutcomeInvalidTPFirst)
			}
			if p.InvalidateOnStopLoss && c.Low <= s.StopLoss {
				return s.resolve(StatusInvalid, OutcomeInvalid)
			}
			if c.Low <= s.Entry {
				s.Status = StatusActive
			}
		case SellLimit:
			if c.Low <= s.TakeProfit {
				return s.resolve(StatusInvalid, OutcomeInvalidTPFirst)
			}
			if p.InvalidateOnStopLoss && c.High >= s.StopLoss {
				return s.resolve(StatusInvalid, OutcomeInvalid)
			}
			if c.High >= s.Entry {
				s.Status = StatusActive
			}
		}
		return s, OutcomeNone
	}

	switch s.Direction {
	case BuyLimit:
		if c.Low <= s.StopLoss {
			return s.resolve(StatusStopLoss, OutcomeStopLoss)
		}
		if c.High >= s.TakeProfit {
			return s.resolve(StatusTakeProfit, OutcomeTakeProfit)
		}
	case SellLimit:
		if c.High >= s.StopLoss {
			return s.resolve(StatusStopLoss, OutcomeStopLoss)
		}
		if c.Low <= s.TakeProfit {
			return s.resolve(StatusTakeProfit, OutcomeTakeProfit)
		}
	}
	return s, OutcomeNone
}

func (s Signal) resolve(st Status, out Outcome) (Signal, Outcome) {
	s.Status = st
	s.Outcome = out
	return s, out
}

// Expired reports whether a signal has outlived ttl at now. The clock origin
// is CreatedAt, not the time of the last transition.
func Expired(s Signal, now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// Expire force-transitions a non-terminal signal to expired. Terminal signals
// pass through untouched.
func Expire(s Signal) Signal {
	if s.Terminal() {
		return s
	}
	s.Status = StatusExpired
	s.Outcome = OutcomeExpired
	return s
}
