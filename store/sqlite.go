package store

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/signalbot/signal"
)

// SQLiteJournal records terminal signal transitions for later querying.
// It is a derived view: the JSON store stays authoritative.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

// RecordResolved upserts one resolved signal. Replays may re-derive the same
// record, so the insert is idempotent on the signal ID.
func (j *SQLiteJournal) RecordResolved(s signal.Signal) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO signals
		(id, direction, entry, stop_loss, take_profit, probability, rationale, created_at, status, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, string(s.Direction), s.Entry, s.StopLoss, s.TakeProfit,
		s.Probability, s.Rationale, s.CreatedAt.UTC(), string(s.Status), string(s.Outcome),
	)
	return err
}

// ListResolved returns recorded signals ordered by creation time.
func (j *SQLiteJournal) ListResolved() ([]signal.Signal, error) {
	rows, err := j.db.Query(`
		SELECT id, direction, entry, stop_loss, take_profit, probability, rationale, created_at, status, outcome
		FROM signals ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sigs []signal.Signal
	for rows.Next() {
		var s signal.Signal
		var direction, status, outcome string
		var created time.Time
		if err := rows.Scan(&s.ID, &direction, &s.Entry, &s.StopLoss, &s.TakeProfit,
			&s.Probability, &s.Rationale, &created, &status, &outcome); err != nil {
			return nil, err
		}
		s.Direction = signal.Direction(direction)
		s.Status = signal.Status(status)
		s.Outcome = signal.Outcome(outcome)
		s.CreatedAt = created.UTC()
		sigs = append(sigs, s)
	}
	return sigs, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
