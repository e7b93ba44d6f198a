// Package streamjournal durably records streaming assistant text before it
// becomes visible, so a crash mid-stream can be recovered instead of lost.
package streamjournal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"ctxkeep/pkg/ctxconfig"
	"ctxkeep/pkg/ids"
	"ctxkeep/pkg/logx"
)

var log = logx.NewLogger("streamjournal")

// Journal owns the journal's database connection and step-id allocation.
// Only one ActiveJournal may be open against it at a time.
type Journal struct {
	db    *sql.DB
	arena ids.StepArena
	mu    sync.Mutex
	open  bool
	policy ctxconfig.FlushPolicy
}

// Open opens (creating if necessary) the journal database at path.
func Open(path string, policy ctxconfig.FlushPolicy) (*Journal, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db, policy: policy}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginSession starts a new streaming step and returns a handle exclusively
// owning it. It fails if a session is already active.
func (j *Journal) BeginSession(modelName string) (*ActiveJournal, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.open {
		return nil, fmt.Errorf("streamjournal: a session is already active")
	}

	stepID := j.arena.Next()
	if _, err := j.db.Exec(
		`INSERT INTO step_metadata (step_id, model_name, committed) VALUES (?, ?, 0)`,
		uint64(stepID), modelName,
	); err != nil {
		return nil, fmt.Errorf("streamjournal: begin session: %w", err)
	}
	j.open = true

	return &ActiveJournal{
		journal:   j,
		stepID:    stepID,
		modelName: modelName,
		nextSeq:   1,
		lastFlush: time.Now(),
	}, nil
}

// CommitAndPruneStep atomically marks stepID committed and deletes its
// journal rows. Idempotent: committing a step with no remaining rows is a
// no-op, matching recovery's idempotent-commit requirement (J1).
func (j *Journal) CommitAndPruneStep(stepID ids.StepID) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("streamjournal: commit_and_prune_step: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE step_metadata SET committed = 1 WHERE step_id = ?`, uint64(stepID)); err != nil {
		return fmt.Errorf("streamjournal: mark committed: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM stream_journal WHERE step_id = ?`, uint64(stepID)); err != nil {
		return fmt.Errorf("streamjournal: prune stream_journal: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM step_metadata WHERE step_id = ?`, uint64(stepID)); err != nil {
		return fmt.Errorf("streamjournal: prune step_metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debug("step %d committed and pruned", uint64(stepID))
	return nil
}

// DiscardStep deletes all rows for stepID without marking it committed,
// returning the number of stream_journal rows removed. Used by the
// orchestrator when recovery yields a step it chooses not to keep.
func (j *Journal) DiscardStep(stepID ids.StepID) (int64, error) {
	tx, err := j.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("streamjournal: discard step: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM stream_journal WHERE step_id = ?`, uint64(stepID))
	if err != nil {
		return 0, fmt.Errorf("streamjournal: discard stream_journal: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM step_metadata WHERE step_id = ?`, uint64(stepID)); err != nil {
		return 0, fmt.Errorf("streamjournal: discard step_metadata: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

func (j *Journal) release() {
	j.mu.Lock()
	j.open = false
	j.mu.Unlock()
}
