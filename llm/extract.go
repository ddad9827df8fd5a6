package llm

import (
	"encoding/json"
	"regexp"

	"github.com/rustyeddy/signalbot/signal"
)

var objectPattern = regexp.MustCompile(`\{[\s\S]*?\}`)

// extractCandidate scans free-form model output for the first brace-delimited
// object that decodes into a usable candidate. Models wrap their JSON in
// prose or code fences often enough that decoding the raw content directly
// is a losing game.
//
// An empty object, or one missing direction and entry, counts as "no signal".
// Objects that fail to decode (e.g. prices sent as prose) are skipped, never
// partially accepted.
func extractCandidate(text string) (signal.Candidate, bool) {
	for _, m := range objectPattern.FindAllString(text, -1) {
		var c signal.Candidate
		if err := json.Unmarshal([]byte(m), &c); err != nil {
			continue
		}
		if c.Direction == "" && c.Entry == 0 {
			continue
		}
		return c, true
	}
	return signal.Candidate{}, false
}
