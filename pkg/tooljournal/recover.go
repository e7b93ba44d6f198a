package tooljournal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ctxkeep/pkg/ids"
)

// RecoveredToolBatch is the (at most one) uncommitted batch found at
// startup.
type RecoveredToolBatch struct {
	BatchID       ids.ToolBatchID
	StreamStepID  *ids.StepID
	ModelName     string
	AssistantText string
	Calls         []ToolCall
	Results       []ToolResult
	CorruptedArgs []CorruptedArgs
	CallExecution map[string]ExecutionMetadata
}

// Recover returns the single outstanding batch, if any, reconstructing
// each call's arguments from its accumulated raw buffer. A call whose
// buffer is empty, exceeds MaxArgsBufferBytes, or fails to parse as JSON
// is reconstructed with Args "{}" and surfaced in CorruptedArgs.
func (j *Journal) Recover() (*RecoveredToolBatch, error) {
	var batchIDRaw uint64
	var stepIDRaw sql.NullInt64
	var modelName, assistantText string
	row := j.db.QueryRow(`SELECT batch_id, stream_step_id, model_name, assistant_text FROM tool_batches ORDER BY batch_id ASC LIMIT 1`)
	if err := row.Scan(&batchIDRaw, &stepIDRaw, &modelName, &assistantText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("tooljournal: recover scan batch: %w", err)
	}

	result := &RecoveredToolBatch{
		BatchID:       ids.ToolBatchID(batchIDRaw),
		ModelName:     modelName,
		AssistantText: assistantText,
		CallExecution: make(map[string]ExecutionMetadata),
	}
	if stepIDRaw.Valid {
		s := ids.StepID(stepIDRaw.Int64)
		result.StreamStepID = &s
	}

	callRows, err := j.db.Query(
		`SELECT idx, tool_call_id, name, args_buffer, thought_signature, started_at_ms, process_id, process_started_at_ms
		 FROM tool_calls WHERE batch_id = ? ORDER BY idx ASC`,
		batchIDRaw,
	)
	if err != nil {
		return nil, fmt.Errorf("tooljournal: recover scan calls: %w", err)
	}
	defer callRows.Close()

	for callRows.Next() {
		var idx int
		var toolCallID, name, argsBuffer string
		var thoughtSig sql.NullString
		var startedAtMs, processID, processStartedAtMs sql.NullInt64
		if err := callRows.Scan(&idx, &toolCallID, &name, &argsBuffer, &thoughtSig, &startedAtMs, &processID, &processStartedAtMs); err != nil {
			return nil, fmt.Errorf("tooljournal: recover call scan: %w", err)
		}

		call := ToolCall{Index: idx, ToolCallID: toolCallID, Name: name}
		if thoughtSig.Valid {
			s := thoughtSig.String
			call.ThoughtSignature = &s
		}

		switch {
		case len(argsBuffer) == 0:
			call.Args = "{}"
			result.CorruptedArgs = append(result.CorruptedArgs, CorruptedArgs{ToolCallID: toolCallID, RawText: argsBuffer, ParseError: "empty args buffer"})
		case len(argsBuffer) > MaxArgsBufferBytes:
			call.Args = "{}"
			result.CorruptedArgs = append(result.CorruptedArgs, CorruptedArgs{ToolCallID: toolCallID, RawText: argsBuffer, ParseError: fmt.Sprintf("args buffer exceeds %d bytes", MaxArgsBufferBytes)})
		case !json.Valid([]byte(argsBuffer)):
			call.Args = "{}"
			result.CorruptedArgs = append(result.CorruptedArgs, CorruptedArgs{ToolCallID: toolCallID, RawText: argsBuffer, ParseError: "malformed JSON"})
		default:
			call.Args = argsBuffer
		}
		result.Calls = append(result.Calls, call)

		if startedAtMs.Valid {
			meta := ExecutionMetadata{StartedAtMs: startedAtMs.Int64}
			if processID.Valid {
				p := int(processID.Int64)
				meta.ProcessID = &p
			}
			if processStartedAtMs.Valid {
				p := processStartedAtMs.Int64
				meta.ProcessStartedAtMs = &p
			}
			result.CallExecution[toolCallID] = meta
		}
	}
	if err := callRows.Err(); err != nil {
		return nil, fmt.Errorf("tooljournal: recover call rows: %w", err)
	}

	resultRows, err := j.db.Query(`SELECT tool_call_id, name, payload FROM tool_results WHERE batch_id = ?`, batchIDRaw)
	if err != nil {
		return nil, fmt.Errorf("tooljournal: recover scan results: %w", err)
	}
	defer resultRows.Close()
	for resultRows.Next() {
		var r ToolResult
		if err := resultRows.Scan(&r.ToolCallID, &r.Name, &r.Payload); err != nil {
			return nil, fmt.Errorf("tooljournal: recover result scan: %w", err)
		}
		result.Results = append(result.Results, r)
	}
	if err := resultRows.Err(); err != nil {
		return nil, fmt.Errorf("tooljournal: recover result rows: %w", err)
	}

	return result, nil
}
