// Package tooljournal durably records tool-call batches so a crash
// mid-batch can reconstruct the assistant's intent, the streamed
// arguments, and any recorded results.
package tooljournal

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // sqlite driver

	"ctxkeep/pkg/ids"
	"ctxkeep/pkg/logx"
)

var log = logx.NewLogger("tooljournal")

// MaxArgsBufferBytes bounds a single call's accumulated args buffer;
// buffers exceeding this are treated as corrupted at recovery.
const MaxArgsBufferBytes = 1 << 20 // 1 MiB

// Journal owns the tool-journal database connection and batch-id
// allocation. At most one batch is uncommitted at a time (invariant T1).
type Journal struct {
	db    *sql.DB
	arena ids.ToolBatchArena
	mu    sync.Mutex
	open  bool
}

// Open opens (creating if necessary) the tool journal database at path.
func Open(path string) (*Journal, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) beginBatchRow(stepID *ids.StepID, modelName, assistantText string) (ids.ToolBatchID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.open {
		return 0, fmt.Errorf("tooljournal: a batch is already outstanding")
	}

	batchID := j.arena.Next()
	var stepArg any
	if stepID != nil {
		stepArg = uint64(*stepID)
	}
	if _, err := j.db.Exec(
		`INSERT INTO tool_batches (batch_id, stream_step_id, model_name, assistant_text, committed) VALUES (?, ?, ?, ?, 0)`,
		uint64(batchID), stepArg, modelName, assistantText,
	); err != nil {
		return 0, fmt.Errorf("tooljournal: begin batch: %w", err)
	}
	j.open = true
	return batchID, nil
}

// BeginBatch persists a fully-formed, non-streaming batch in one
// transaction and returns its ToolBatchId.
func (j *Journal) BeginBatch(stepID *ids.StepID, modelName, assistantText string, calls []ToolCall) (ids.ToolBatchID, error) {
	batchID, err := j.beginBatchRow(stepID, modelName, assistantText)
	if err != nil {
		return 0, err
	}

	tx, err := j.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("tooljournal: begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO tool_calls (batch_id, idx, tool_call_id, name, args_buffer, thought_signature) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("tooljournal: prepare call insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range calls {
		var sig any
		if c.ThoughtSignature != nil {
			sig = *c.ThoughtSignature
		}
		if _, err := stmt.Exec(uint64(batchID), c.Index, c.ToolCallID, c.Name, c.Args, sig); err != nil {
			return 0, fmt.Errorf("tooljournal: insert call: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("tooljournal: begin batch commit: %w", err)
	}
	return batchID, nil
}

// BeginStreamingBatch persists the batch shell only; calls arrive later
// via RecordCallStart and AppendCallArgs.
func (j *Journal) BeginStreamingBatch(stepID *ids.StepID, modelName string) (ids.ToolBatchID, error) {
	return j.beginBatchRow(stepID, modelName, "")
}

// RecordCallStart registers a streaming call's identity ahead of its
// argument chunks arriving.
func (j *Journal) RecordCallStart(batchID ids.ToolBatchID, index int, toolCallID, name string, thoughtSignature *string) error {
	var sig any
	if thoughtSignature != nil {
		sig = *thoughtSignature
	}
	_, err := j.db.Exec(
		`INSERT INTO tool_calls (batch_id, idx, tool_call_id, name, args_buffer, thought_signature) VALUES (?, ?, ?, ?, '', ?)`,
		uint64(batchID), index, toolCallID, name, sig,
	)
	if err != nil {
		return fmt.Errorf("tooljournal: record call start: %w", err)
	}
	return nil
}

// AppendCallArgs appends chunk to the call's raw args buffer. The buffer
// is parsed as structured arguments only on use, never here.
func (j *Journal) AppendCallArgs(batchID ids.ToolBatchID, toolCallID, chunk string) error {
	_, err := j.db.Exec(
		`UPDATE tool_calls SET args_buffer = args_buffer || ? WHERE batch_id = ? AND tool_call_id = ?`,
		chunk, uint64(batchID), toolCallID,
	)
	if err != nil {
		return fmt.Errorf("tooljournal: append call args: %w", err)
	}
	return nil
}

// UpdateAssistantText replaces the batch's assistant text wholesale. Use
// AppendAssistantDelta for long streams; this is O(n) per call.
func (j *Journal) UpdateAssistantText(batchID ids.ToolBatchID, text string) error {
	_, err := j.db.Exec(`UPDATE tool_batches SET assistant_text = ? WHERE batch_id = ?`, text, uint64(batchID))
	if err != nil {
		return fmt.Errorf("tooljournal: update assistant text: %w", err)
	}
	return nil
}

// AppendAssistantDelta appends to the batch's assistant text using the
// storage engine's append primitive, amortized O(1) per delta.
func (j *Journal) AppendAssistantDelta(batchID ids.ToolBatchID, delta string) error {
	_, err := j.db.Exec(`UPDATE tool_batches SET assistant_text = assistant_text || ? WHERE batch_id = ?`, delta, uint64(batchID))
	if err != nil {
		return fmt.Errorf("tooljournal: append assistant delta: %w", err)
	}
	return nil
}

// RecordCallExecution records when and where a call ran.
func (j *Journal) RecordCallExecution(batchID ids.ToolBatchID, toolCallID string, meta ExecutionMetadata) error {
	var processID, processStartedAtMs any
	if meta.ProcessID != nil {
		processID = *meta.ProcessID
	}
	if meta.ProcessStartedAtMs != nil {
		processStartedAtMs = *meta.ProcessStartedAtMs
	}
	_, err := j.db.Exec(
		`UPDATE tool_calls SET started_at_ms = ?, process_id = ?, process_started_at_ms = ? WHERE batch_id = ? AND tool_call_id = ?`,
		meta.StartedAtMs, processID, processStartedAtMs, uint64(batchID), toolCallID,
	)
	if err != nil {
		return fmt.Errorf("tooljournal: record call execution: %w", err)
	}
	return nil
}

// RecordResult stores one call's outcome.
func (j *Journal) RecordResult(batchID ids.ToolBatchID, result ToolResult) error {
	_, err := j.db.Exec(
		`INSERT INTO tool_results (batch_id, tool_call_id, name, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT (batch_id, tool_call_id) DO UPDATE SET payload = excluded.payload, name = excluded.name`,
		uint64(batchID), result.ToolCallID, result.Name, result.Payload,
	)
	if err != nil {
		return fmt.Errorf("tooljournal: record result: %w", err)
	}
	return nil
}

// CommitBatch deletes the batch's rows on success.
func (j *Journal) CommitBatch(batchID ids.ToolBatchID) error {
	if err := j.deleteBatch(batchID); err != nil {
		return fmt.Errorf("tooljournal: commit batch: %w", err)
	}
	log.Debug("batch %d committed", uint64(batchID))
	return nil
}

// DiscardBatch deletes the batch's rows on rollback.
func (j *Journal) DiscardBatch(batchID ids.ToolBatchID) error {
	if err := j.deleteBatch(batchID); err != nil {
		return fmt.Errorf("tooljournal: discard batch: %w", err)
	}
	log.Debug("batch %d discarded", uint64(batchID))
	return nil
}

func (j *Journal) deleteBatch(batchID ids.ToolBatchID) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tool_results WHERE batch_id = ?`, uint64(batchID)); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tool_calls WHERE batch_id = ?`, uint64(batchID)); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tool_batches WHERE batch_id = ?`, uint64(batchID)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	j.open = false
	return nil
}
