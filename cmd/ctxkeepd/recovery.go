package main

import (
	"fmt"

	"ctxkeep/pkg/history"
	"ctxkeep/pkg/streamjournal"
	"ctxkeep/pkg/tooljournal"
)

// recoverJournals resolves whatever the stream and tool journals were left
// holding by the previous run, pushing recoverable content into history
// and pruning everything else. Each recovered item saves history itself
// before its own prune/commit call (J1, never-prune-before-save); the
// trailing Save here is a harmless no-op safety net for the case where
// recovery found nothing to push (discard-only branches never prune
// unsaved content in the first place).
func (o *Orchestrator) recoverJournals() error {
	if err := o.recoverStream(); err != nil {
		return fmt.Errorf("stream journal: %w", err)
	}
	if err := o.recoverTools(); err != nil {
		return fmt.Errorf("tool journal: %w", err)
	}
	return o.cm.Save(o.paths.historyFile)
}

func (o *Orchestrator) recoverStream() error {
	rec, err := o.stream.Recover()
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	switch rec.Kind {
	case streamjournal.RecoveredComplete:
		if o.cm.HasStepID(rec.StepID) {
			log.Info("step %d already present in history, pruning duplicate journal rows", rec.StepID)
			o.metrics.IncRecoveredStep("stream", "duplicate")
			return o.stream.CommitAndPruneStep(rec.StepID)
		}
		msg, err := history.NewAssistantMessage(rec.PartialText)
		if err != nil {
			log.Warn("step %d completed with no recoverable text, discarding", rec.StepID)
			o.metrics.IncRecoveredStep("stream", "empty")
			_, discardErr := o.stream.DiscardStep(rec.StepID)
			return discardErr
		}
		o.cm.PushMessageWithStepID(msg, rec.StepID)
		log.Info("recovered completed step %d (%d chars) into history", rec.StepID, len(rec.PartialText))
		o.metrics.IncRecoveredStep("stream", "complete")
		if err := o.saveBeforePrune(); err != nil {
			return err
		}
		return o.stream.CommitAndPruneStep(rec.StepID)

	case streamjournal.RecoveredErrored:
		log.Warn("step %d errored mid-stream (%s), discarding partial text", rec.StepID, rec.Error)
		o.metrics.IncRecoveredStep("stream", "errored")
		_, err := o.stream.DiscardStep(rec.StepID)
		return err

	default: // RecoveredIncomplete
		log.Warn("step %d was cut off mid-stream, discarding partial text", rec.StepID)
		o.metrics.IncRecoveredStep("stream", "incomplete")
		_, err := o.stream.DiscardStep(rec.StepID)
		return err
	}
}

func (o *Orchestrator) recoverTools() error {
	rec, err := o.tools.Recover()
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	for _, bad := range rec.CorruptedArgs {
		log.Warn("batch %d call %s had corrupted args (%s), reconstructed as {}", rec.BatchID, bad.ToolCallID, bad.ParseError)
	}

	resultByCall := make(map[string]tooljournal.ToolResult, len(rec.Results))
	for _, r := range rec.Results {
		resultByCall[r.ToolCallID] = r
	}

	allResulted := len(rec.Calls) > 0
	for _, c := range rec.Calls {
		if _, ok := resultByCall[c.ToolCallID]; !ok {
			allResulted = false
			break
		}
	}

	if !allResulted {
		log.Warn("batch %d has %d call(s) without a recorded result, discarding", rec.BatchID, len(rec.Calls)-len(resultByCall))
		o.metrics.IncRecoveredStep("tool", "discarded")
		return o.tools.DiscardBatch(rec.BatchID)
	}

	if rec.AssistantText != "" {
		msg, err := history.NewAssistantMessage(rec.AssistantText)
		if err != nil {
			return fmt.Errorf("reconstruct assistant text: %w", err)
		}
		o.cm.PushMessage(msg)
	}

	calls := make([]history.ToolCall, len(rec.Calls))
	for i, c := range rec.Calls {
		calls[i] = history.ToolCall{ID: c.ToolCallID, Name: c.Name, Args: c.Args}
	}
	invocation, err := history.NewToolInvocation(calls)
	if err != nil {
		return fmt.Errorf("reconstruct tool invocation: %w", err)
	}
	stepID := rec.StreamStepID
	if stepID != nil {
		o.cm.PushMessageWithStepID(invocation, *stepID)
	} else {
		o.cm.PushMessage(invocation)
	}

	for _, c := range rec.Calls {
		result := resultByCall[c.ToolCallID]
		msg, err := history.NewToolResult(history.ToolResult{
			ToolCallID: result.ToolCallID,
			Name:       result.Name,
			Payload:    result.Payload,
		})
		if err != nil {
			return fmt.Errorf("reconstruct tool result for %s: %w", c.ToolCallID, err)
		}
		o.cm.PushMessage(msg)
	}

	log.Info("recovered batch %d (%d call(s)) into history", rec.BatchID, len(rec.Calls))
	o.metrics.IncRecoveredStep("tool", "complete")
	if err := o.saveBeforePrune(); err != nil {
		return err
	}
	return o.tools.CommitBatch(rec.BatchID)
}
