// Package events persists the service's event log to SQLite when a path is
// configured. The log is observational; core correctness never depends on it.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store writes typed events with JSON payloads. The zero value (and a nil
// *Store) logs nothing, so callers never need to nil-check.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the event log at path. Empty path returns a
// disabled store.
func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{}, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=NORMAL`,
		`CREATE TABLE IF NOT EXISTS event_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init event log: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// LogEvent appends an event. Payloads that fail to marshal are recorded with
// an error marker rather than dropped.
func (s *Store) LogEvent(ctx context.Context, eventType string, payload any) error {
	if s == nil || s.db == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO event_log(ts, event_type, payload) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), eventType, string(raw))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// CountByType reports how many events of the given type were logged. Used by
// tests and diagnostics.
func (s *Store) CountByType(ctx context.Context, eventType string) (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_log WHERE event_type = ?`, eventType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
