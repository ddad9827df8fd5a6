package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/signalbot/signal"
)

// Columns is the preferred column ordering for the tabular export, most
// useful fields first for spreadsheet consumption.
var Columns = []string{
	"created_at",
	"direction",
	"status",
	"outcome",
	"entry",
	"take_profit",
	"stop_loss",
	"probability",
	"rationale",
}

// WriteCSV mirrors the signal history into a spreadsheet-friendly file.
// Timestamps are converted into loc for display; the JSON store stays UTC.
func WriteCSV(path string, sigs []signal.Signal, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	_ = w.Write(Columns)
	for _, s := range sigs {
		_ = w.Write([]string{
			s.CreatedAt.In(loc).Format(time.RFC3339),
			string(s.Direction),
			string(s.Status),
			string(s.Outcome),
			fprice(s.Entry),
			fprice(s.TakeProfit),
			fprice(s.StopLoss),
			fprice(s.Probability),
			s.Rationale,
		})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func fprice(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
