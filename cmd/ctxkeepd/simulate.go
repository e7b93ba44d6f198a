package main

import (
	"fmt"

	"ctxkeep/pkg/history"
	"ctxkeep/pkg/tooljournal"
)

// handleStream exercises the full stream-journal lifecycle for one
// simulated assistant turn: begin a session, buffer/flush the given text
// as deltas, seal, push the sealed text into history tagged with its step
// id, save history to disk, and only then commit-and-prune the journal
// (never prune before save lands, J1). A real orchestrator would instead
// drive AppendText once per chunk as an LLM wire client streams; this
// command stands in for that client the same way spec.md §6 keeps it an
// external collaborator.
func (o *Orchestrator) handleStream(text string) error {
	if text == "" {
		return fmt.Errorf("usage: stream <text>")
	}

	active, err := o.stream.BeginSession(o.cm.ModelName())
	if err != nil {
		return fmt.Errorf("begin stream session: %w", err)
	}
	o.metrics.IncStreamFlush("first_content")

	if err := active.AppendText(text); err != nil {
		return fmt.Errorf("append text: %w", err)
	}
	if err := active.AppendDone(); err != nil {
		return fmt.Errorf("append done: %w", err)
	}

	sealed, err := active.Seal()
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}
	o.metrics.IncStreamSeal("ok")

	msg, err := history.NewAssistantMessage(sealed)
	if err != nil {
		return fmt.Errorf("construct assistant message: %w", err)
	}
	o.cm.PushMessageWithStepID(msg, active.StepID())

	if err := o.saveBeforePrune(); err != nil {
		return err
	}

	if err := o.stream.CommitAndPruneStep(active.StepID()); err != nil {
		return fmt.Errorf("commit and prune step: %w", err)
	}
	o.metrics.IncStreamPrune()

	fmt.Printf("streamed and committed step %d (%d chars)\n", active.StepID(), len(sealed))
	return nil
}

// handleTool exercises the tool-journal lifecycle for one non-streaming
// batch: a single call named toolName with the given raw args, recorded
// with a canned result since no real tool executor is wired here, pushed
// into history as a tool-invocation plus tool-result pair, saved, and only
// then committed (never prune before save lands, J1).
func (o *Orchestrator) handleTool(toolName, args string) error {
	if toolName == "" {
		return fmt.Errorf("usage: tool <name> [args]")
	}
	if args == "" {
		args = "{}"
	}

	callID := fmt.Sprintf("call-%s", toolName)
	call := tooljournal.ToolCall{Index: 0, ToolCallID: callID, Name: toolName, Args: args}

	batchID, err := o.tools.BeginBatch(nil, o.cm.ModelName(), "", []tooljournal.ToolCall{call})
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	payload := fmt.Sprintf(`{"tool":%q,"ok":true}`, toolName)
	if err := o.tools.RecordResult(batchID, tooljournal.ToolResult{ToolCallID: callID, Name: toolName, Payload: payload}); err != nil {
		return fmt.Errorf("record result: %w", err)
	}

	invocation, err := history.NewToolInvocation([]history.ToolCall{{ID: callID, Name: toolName, Args: args}})
	if err != nil {
		return fmt.Errorf("construct tool invocation: %w", err)
	}
	o.cm.PushMessage(invocation)

	result, err := history.NewToolResult(history.ToolResult{ToolCallID: callID, Name: toolName, Payload: payload})
	if err != nil {
		return fmt.Errorf("construct tool result: %w", err)
	}
	o.cm.PushMessage(result)

	if err := o.saveBeforePrune(); err != nil {
		return err
	}

	if err := o.tools.CommitBatch(batchID); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	o.metrics.IncToolBatch("committed")

	fmt.Printf("ran tool %s, committed batch %d\n", toolName, batchID)
	return nil
}
