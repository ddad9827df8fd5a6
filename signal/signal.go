package signal

import "time"

// Direction is the order type of a setup. It is fixed at creation and never
// mutated afterwards.
type Direction string

const (
	BuyLimit  Direction = "BUY LIMIT"
	SellLimit Direction = "SELL LIMIT"
)

// Status tracks a signal through its lifecycle. pending and active are the
// only non-terminal states; everything else is absorbing.
type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusTakeProfit Status = "TP"
	StatusStopLoss   Status = "SL"
	StatusInvalid    Status = "invalid"
	StatusExpired    Status = "expired"
)

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	switch s {
	case StatusTakeProfit, StatusStopLoss, StatusInvalid, StatusExpired:
		return true
	}
	return false
}

// Outcome is set exactly once, on the terminal transition. It is empty while
// the signal is still in flight.
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeTakeProfit Outcome = "TP"
	OutcomeStopLoss   Outcome = "SL"
	// OutcomeInvalidTPFirst marks a setup whose target was reached before the
	// resting order could fill. The hypothetical profit was never realizable,
	// so the signal is discarded rather than scored as a win.
	OutcomeInvalidTPFirst Outcome = "invalid_tp_hit_first"
	// OutcomeInvalid marks a pre-fill stop-loss touch under the strict
	// invalidation policy.
	OutcomeInvalid Outcome = "invalid"
	OutcomeExpired Outcome = "expired"
)

// Signal is one recorded trade setup and its lifecycle state. Direction and
// the three price levels are fixed at creation; only Status and Outcome move,
// and only until a terminal state is reached.
type Signal struct {
	ID          string    `json:"id,omitempty"`
	Direction   Direction `json:"direction"`
	Entry       float64   `json:"entry"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit  float64   `json:"take_profit"`
	Probability float64   `json:"probability"`
	Rationale   string    `json:"rationale"`
	CreatedAt   time.Time `json:"created_at"`
	Status      Status    `json:"status"`
	Outcome     Outcome   `json:"outcome,omitempty"`
}

// InFlight reports whether the signal still needs evaluation.
func (s Signal) InFlight() bool {
	return s.Status == StatusPending || s.Status == StatusActive
}

// Terminal reports whether the signal has resolved.
func (s Signal) Terminal() bool {
	return s.Status.Terminal()
}

// Candidate is a proposed setup from the generator. It has not been admitted:
// no ID, no creation time, and the probability may still be on the raw 0-100
// scale the model sometimes answers with.
type Candidate struct {
	Direction   Direction `json:"direction"`
	Entry       float64   `json:"entry"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit  float64   `json:"take_profit"`
	Probability float64   `json:"probability"`
	Rationale   string    `json:"rationale"`
}

// Promote stamps an admitted candidate into a pending signal. now is
// normalized to UTC so stored timestamps compare cleanly across zones.
func Promote(c Candidate, id string, now time.Time) Signal {
	return Signal{
		ID:          id,
		Direction:   c.Direction,
		Entry:       c.Entry,
		StopLoss:    c.StopLoss,
		TakeProfit:  c.TakeProfit,
		Probability: c.Probability,
		Rationale:   c.Rationale,
		CreatedAt:   now.UTC(),
		Status:      StatusPending,
	}
}

// LastResolved returns the most recent signals that ran to a scoreable end
// (TP, SL or expired), up to max. Invalid signals are excluded: they never
// represented an executable trade, so they carry no lesson for the prompt.
func LastResolved(sigs []Signal, max int) []Signal {
	var resolved []Signal
	for _, s := range sigs {
		switch s.Status {
		case StatusTakeProfit, StatusStopLoss, StatusExpired:
			resolved = append(resolved, s)
		}
	}
	if len(resolved) > max {
		resolved = resolved[len(resolved)-max:]
	}
	return resolved
}
