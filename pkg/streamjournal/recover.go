package streamjournal

import (
	"database/sql"
	"errors"
	"fmt"

	"ctxkeep/pkg/ids"
)

// RecoveredKind tags the terminal state a recovered step was left in.
type RecoveredKind int8

const (
	// RecoveredComplete reports a done event; safe to commit to history.
	RecoveredComplete RecoveredKind = iota
	// RecoveredErrored reports an error event; partial text is available.
	RecoveredErrored
	// RecoveredIncomplete reports neither terminator; the stream was cut
	// off mid-flight.
	RecoveredIncomplete
)

// RecoveredStream is the result of scanning for an uncommitted step at
// startup.
type RecoveredStream struct {
	Kind        RecoveredKind
	StepID      ids.StepID
	PartialText string
	LastSeq     int
	ModelName   string
	Error       string // valid for RecoveredErrored
}

// Recover scans for the lowest-step_id uncommitted step with either
// unsealed rows or sealed rows not yet pruned, and classifies its terminal
// state. It returns nil, nil if no step is pending. Idempotent: once the
// caller commits or discards the returned step, the next Recover call
// returns the next pending step or nil.
func (j *Journal) Recover() (*RecoveredStream, error) {
	var stepIDRaw uint64
	var modelName string
	row := j.db.QueryRow(`SELECT step_id, model_name FROM step_metadata ORDER BY step_id ASC LIMIT 1`)
	if err := row.Scan(&stepIDRaw, &modelName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("streamjournal: recover scan step: %w", err)
	}
	stepID := ids.StepID(stepIDRaw)

	rows, err := j.db.Query(
		`SELECT seq, event_type, content FROM stream_journal WHERE step_id = ? ORDER BY seq ASC`,
		stepIDRaw,
	)
	if err != nil {
		return nil, fmt.Errorf("streamjournal: recover scan rows: %w", err)
	}
	defer rows.Close()

	var partial []byte
	var lastSeq int
	var doneSeen bool
	var errMsg string
	var errSeen bool

	for rows.Next() {
		var seq int
		var kind, content string
		if err := rows.Scan(&seq, &kind, &content); err != nil {
			return nil, fmt.Errorf("streamjournal: recover row scan: %w", err)
		}
		lastSeq = seq
		switch eventType(kind) {
		case eventTextDelta:
			partial = append(partial, content...)
		case eventDone:
			doneSeen = true
		case eventError:
			errSeen = true
			errMsg = content
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("streamjournal: recover rows: %w", err)
	}

	result := &RecoveredStream{
		StepID:      stepID,
		PartialText: string(partial),
		LastSeq:     lastSeq,
		ModelName:   modelName,
	}
	switch {
	case doneSeen:
		result.Kind = RecoveredComplete
	case errSeen:
		result.Kind = RecoveredErrored
		result.Error = errMsg
	default:
		result.Kind = RecoveredIncomplete
	}
	return result, nil
}
