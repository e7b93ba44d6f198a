package tooljournal

import (
	"database/sql"
	"fmt"
)

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("tooljournal: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tooljournal: ping database: %w", err)
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tooljournal: create schema: %w", err)
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
		`CREATE TABLE IF NOT EXISTS tool_batches (
			batch_id INTEGER PRIMARY KEY,
			stream_step_id INTEGER,
			model_name TEXT NOT NULL,
			assistant_text TEXT NOT NULL DEFAULT '',
			committed INTEGER NOT NULL DEFAULT 0 CHECK (committed IN (0,1)),
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
		`CREATE TABLE IF NOT EXISTS tool_calls (
			batch_id INTEGER NOT NULL REFERENCES tool_batches(batch_id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			tool_call_id TEXT NOT NULL,
			name TEXT NOT NULL,
			args_buffer TEXT NOT NULL DEFAULT '',
			thought_signature TEXT,
			started_at_ms INTEGER,
			process_id INTEGER,
			process_started_at_ms INTEGER,
			PRIMARY KEY (batch_id, tool_call_id)
		)`,
		`CREATE TABLE IF NOT EXISTS tool_results (
			batch_id INTEGER NOT NULL REFERENCES tool_batches(batch_id) ON DELETE CASCADE,
			tool_call_id TEXT NOT NULL,
			name TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (batch_id, tool_call_id)
		)`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}
