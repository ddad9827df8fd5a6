package store

const Schema = `
CREATE TABLE IF NOT EXISTS signals (
	id TEXT PRIMARY KEY,
	direction TEXT NOT NULL,
	entry REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	probability REAL NOT NULL,
	rationale TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	status TEXT NOT NULL,
	outcome TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at);
`
