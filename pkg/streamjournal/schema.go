package streamjournal

import (
	"database/sql"
	"fmt"
)

// eventType tags a stream_journal row.
type eventType string

const (
	eventTextDelta eventType = "text_delta"
	eventDone      eventType = "done"
	eventError     eventType = "error"
)

// openDB opens a WAL-mode SQLite connection at path and ensures the schema
// exists. SQLite supports only one writer, so the pool is capped to a
// single connection.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("streamjournal: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("streamjournal: ping database: %w", err)
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("streamjournal: create schema: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func createSchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS step_metadata (
			step_id INTEGER PRIMARY KEY,
			model_name TEXT NOT NULL,
			committed INTEGER NOT NULL DEFAULT 0 CHECK (committed IN (0,1)),
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
		`CREATE TABLE IF NOT EXISTS stream_journal (
			step_id INTEGER NOT NULL REFERENCES step_metadata(step_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			event_type TEXT NOT NULL CHECK (event_type IN ('text_delta','done','error')),
			content TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			sealed INTEGER NOT NULL DEFAULT 0 CHECK (sealed IN (0,1)),
			PRIMARY KEY (step_id, seq)
		)`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}
