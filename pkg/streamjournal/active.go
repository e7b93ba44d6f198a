package streamjournal

import (
	"fmt"
	"strings"
	"time"

	"ctxkeep/pkg/ids"
)

// ActiveJournal is the exclusive write handle for one in-flight streaming
// step. Its operations are not re-entrant: the caller serializes them.
type ActiveJournal struct {
	journal   *Journal
	stepID    ids.StepID
	modelName string

	buffer    []string
	nextSeq   int
	lastFlush time.Time
	flushedAny bool
	consumed  bool
}

// StepID returns the step this handle owns.
func (a *ActiveJournal) StepID() ids.StepID { return a.stepID }

// AppendText buffers delta and flushes if the buffering policy triggers.
func (a *ActiveJournal) AppendText(delta string) error {
	if a.consumed {
		return fmt.Errorf("streamjournal: handle already consumed")
	}
	a.buffer = append(a.buffer, delta)

	switch {
	case !a.flushedAny && len(a.buffer) > 0:
		return a.Flush()
	case len(a.buffer) >= a.journal.policy.Threshold:
		return a.Flush()
	case time.Since(a.lastFlush) >= time.Duration(a.journal.policy.IntervalMS)*time.Millisecond:
		return a.Flush()
	}
	return nil
}

// Flush writes all pending deltas in one transaction with ascending seq,
// then clears the buffer. A no-op if nothing is buffered.
func (a *ActiveJournal) Flush() error {
	if a.consumed {
		return fmt.Errorf("streamjournal: handle already consumed")
	}
	if len(a.buffer) == 0 {
		return nil
	}

	tx, err := a.journal.db.Begin()
	if err != nil {
		return fmt.Errorf("streamjournal: flush: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO stream_journal (step_id, seq, event_type, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("streamjournal: flush prepare: %w", err)
	}
	defer stmt.Close()

	for _, delta := range a.buffer {
		if _, err := stmt.Exec(uint64(a.stepID), a.nextSeq, string(eventTextDelta), delta); err != nil {
			return fmt.Errorf("streamjournal: flush insert: %w", err)
		}
		a.nextSeq++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("streamjournal: flush commit: %w", err)
	}

	a.buffer = a.buffer[:0]
	a.lastFlush = time.Now()
	a.flushedAny = true
	return nil
}

// AppendDone force-flushes, then records a terminal done event.
func (a *ActiveJournal) AppendDone() error {
	if err := a.Flush(); err != nil {
		return err
	}
	return a.appendTerminal(eventDone, "")
}

// AppendError force-flushes, then records a terminal error event.
func (a *ActiveJournal) AppendError(msg string) error {
	if err := a.Flush(); err != nil {
		return err
	}
	return a.appendTerminal(eventError, msg)
}

func (a *ActiveJournal) appendTerminal(kind eventType, content string) error {
	if a.consumed {
		return fmt.Errorf("streamjournal: handle already consumed")
	}
	if _, err := a.journal.db.Exec(
		`INSERT INTO stream_journal (step_id, seq, event_type, content) VALUES (?, ?, ?, ?)`,
		uint64(a.stepID), a.nextSeq, string(kind), content,
	); err != nil {
		return fmt.Errorf("streamjournal: append %s: %w", kind, err)
	}
	a.nextSeq++
	return nil
}

// Seal force-flushes, marks every row of this step sealed, and returns the
// concatenation of all text_delta contents in ascending seq order. It
// consumes the handle.
func (a *ActiveJournal) Seal() (string, error) {
	if a.consumed {
		return "", fmt.Errorf("streamjournal: handle already consumed")
	}
	if err := a.Flush(); err != nil {
		return "", err
	}

	tx, err := a.journal.db.Begin()
	if err != nil {
		return "", fmt.Errorf("streamjournal: seal: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE stream_journal SET sealed = 1 WHERE step_id = ?`, uint64(a.stepID)); err != nil {
		return "", fmt.Errorf("streamjournal: seal update: %w", err)
	}

	rows, err := tx.Query(
		`SELECT content FROM stream_journal WHERE step_id = ? AND event_type = ? ORDER BY seq ASC`,
		uint64(a.stepID), string(eventTextDelta),
	)
	if err != nil {
		return "", fmt.Errorf("streamjournal: seal read: %w", err)
	}
	var sb strings.Builder
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			rows.Close()
			return "", fmt.Errorf("streamjournal: seal scan: %w", err)
		}
		sb.WriteString(content)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return "", fmt.Errorf("streamjournal: seal rows: %w", err)
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("streamjournal: seal commit: %w", err)
	}

	a.consumed = true
	a.journal.release()
	return sb.String(), nil
}

// Discard deletes all rows for this step without sealing, returning the
// number of stream_journal rows removed. It consumes the handle.
func (a *ActiveJournal) Discard() (int64, error) {
	if a.consumed {
		return 0, fmt.Errorf("streamjournal: handle already consumed")
	}
	n, err := a.journal.DiscardStep(a.stepID)
	a.consumed = true
	a.journal.release()
	return n, err
}
