// Package store persists the signal history. The JSON file is the source of
// truth and is rewritten whole on every save; the CSV export and the SQLite
// journal are derived views.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rustyeddy/signalbot/signal"
)

// JSON is a whole-file signal store. There is no incremental append: the
// history only grows and stays small, and a full rewrite keeps a crash
// between ticks from ever leaving a half-written record behind.
type JSON struct {
	path string
}

func NewJSON(path string) *JSON {
	return &JSON{path: path}
}

// Load reads the full ordered history. A missing file is an empty history,
// not an error.
func (s *JSON) Load() ([]signal.Signal, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var sigs []signal.Signal
	if err := json.Unmarshal(data, &sigs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return sigs, nil
}

// Save rewrites the whole history. Write-to-temp plus rename keeps the old
// file intact if the process dies mid-write.
func (s *JSON) Save(sigs []signal.Signal) error {
	if sigs == nil {
		sigs = []signal.Signal{}
	}
	data, err := json.MarshalIndent(sigs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
