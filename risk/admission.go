package risk

import (
	"fmt"

	"github.com/rustyeddy/signalbot/signal"
)

// Policy holds the admission thresholds for new candidates.
type Policy struct {
	// MinRR is the minimum reward/risk ratio, e.g. 2 for 1:2.
	MinRR float64

	// RequireOrderedLevels rejects candidates whose price levels do not
	// cohere with the direction (stop < entry < target for a buy limit,
	// mirrored for a sell limit).
	RequireOrderedLevels bool
}

type Violation struct {
	Code string
	Msg  string
}

// Decision is the admission verdict for one candidate.
type Decision struct {
	Allowed    bool
	Violations []Violation

	RR float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// RR computes the reward/risk ratio of a setup. Zero risk is treated as
// ratio zero, never as infinity.
func RR(entry, stop, takeProfit float64) float64 {
	risk := abs(entry - stop)
	reward := abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// Evaluate gates a candidate from the generator. The generator is a black
// box that may answer with missing or nonsensical fields, so everything is
// validated here before a candidate can become a signal.
func Evaluate(p Policy, c signal.Candidate) Decision {
	d := Decision{Allowed: true}

	if c.Direction != signal.BuyLimit && c.Direction != signal.SellLimit {
		d.add("BAD_DIRECTION", fmt.Sprintf("unknown direction %q", c.Direction))
		return d
	}
	if c.Entry == 0 || c.StopLoss == 0 || c.TakeProfit == 0 {
		d.add("MISSING_LEVELS", "entry/stop/target must all be set")
		return d
	}

	d.RR = RR(c.Entry, c.StopLoss, c.TakeProfit)
	if d.RR < p.MinRR {
		d.add("RR_TOO_LOW",
			fmt.Sprintf("RR %.2f below minimum %.2f", d.RR, p.MinRR))
	}

	if p.RequireOrderedLevels {
		switch c.Direction {
		case signal.BuyLimit:
			if !(c.StopLoss < c.Entry && c.Entry < c.TakeProfit) {
				d.add("LEVELS_DISORDERED",
					fmt.Sprintf("buy limit needs stop %.4f < entry %.4f < target %.4f",
						c.StopLoss, c.Entry, c.TakeProfit))
			}
		case signal.SellLimit:
			if !(c.TakeProfit < c.Entry && c.Entry < c.StopLoss) {
				d.add("LEVELS_DISORDERED",
					fmt.Sprintf("sell limit needs target %.4f < entry %.4f < stop %.4f",
						c.TakeProfit, c.Entry, c.StopLoss))
			}
		}
	}

	return d
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
