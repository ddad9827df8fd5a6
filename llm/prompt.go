package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// buildPrompt renders the market context into the analysis prompt. The output
// contract at the bottom is strict: the model must answer with a single JSON
// object, or an empty one when it has nothing to say.
func buildPrompt(mc MarketContext) (string, error) {
	history, err := json.MarshalIndent(mc.History, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here is the latest %s price data per candle:\n\n", mc.Symbol)
	for _, c := range mc.Candles {
		fmt.Fprintf(&b, "%s Close: %g\n", c.Time.Format(time.DateTime), c.Close)
	}

	fmt.Fprintf(&b, "\nHere are the previous trading signals and their results:\n\n%s\n", history)

	trend := mc.Trend
	if trend == "" {
		trend = "Unknown"
	}
	fmt.Fprintf(&b, "\nH1 trend summary: %s\n", trend)
	b.WriteString("Prefer signals aligned with the H1 trend unless there is a CHoCH.\n")
	b.WriteString("Learn from the previous signals: avoid the patterns that led to SL and keep the ones that reached TP.\n\n")

	b.WriteString(`Use ICT & Smart Money Concepts (SMC) to determine the next trading signal.

Focus your analysis on:
- Liquidity: has price just swept a buy-side or sell-side liquidity area?
- Displacement and Fair Value Gaps (FVG)
- Break of Structure (BoS) or Change of Character (CHoCH)
- Order blocks and the optimal entry zone (61.8%-78.6% retracement)
- Use a risk/reward of at least 1:2
- Do not propose a signal when the current price has already passed or sits too close to the entry, TP or SL level. Such a signal is considered invalid.

Your task:
- Analyze the current market structure.
- If there is an opportunity based on an ICT/SMC pattern (e.g. liquidity sweep -> CHoCH -> FVG), give an entry signal.
- If conditions are not ideal, reply with an empty JSON object: {}

Reply with JSON ONLY, in exactly this shape:

{
  "direction": "BUY LIMIT" or "SELL LIMIT",
  "entry": float,
  "stop_loss": float,
  "take_profit": float,
  "probability": float,
  "rationale": "short string explaining the signal"
}
`)

	return b.String(), nil
}
