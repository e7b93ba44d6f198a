package logx

import (
	"fmt"
	"testing"
)

func ExampleLogger_orchestrator_usage() {
	// Example of how the ctxkeepd orchestrator might use the logger.
	fmt.Println("=== ctxkeepd Logging Demo ===")

	// Main orchestrator logger.
	orchestrator := NewLogger("ctxkeepd")
	orchestrator.Info("Starting orchestrator")
	orchestrator.Debug("Loading distillation config from %s", "config/ctxkeep.yaml")

	// Component loggers.
	ctxmgr := NewLogger("contextmgr")
	stream := NewLogger("streamjournal")
	tools := NewLogger("tooljournal")

	// Simulate one conversational turn.
	ctxmgr.Info("pushed user message id=%d", 0)
	stream.Debug("begin_session model=%s step=%d", "claude-sonnet-4", 1)

	stream.Info("flushed %d deltas for step %d", 12, 1)
	stream.Warn("high delta count before first flush: %d", 40)

	tools.Info("began streaming batch %d", 1)
	tools.Error("malformed call args: %v", "unexpected end of JSON input")

	// A component can create sub-loggers for a narrower scope.
	recovery := stream.WithAgentID("recovery")
	recovery.Info("replaying incomplete step %d", 1)

	// Shutdown sequence.
	orchestrator.Info("initiating graceful shutdown")
	stream.Info("sealing in-flight step before exit")
	tools.Info("all batches committed")
	orchestrator.Info("shutdown complete")

	fmt.Println("=== End Demo ===")
}

func TestOrchestratorUsage(t *testing.T) {
	ExampleLogger_orchestrator_usage()
}
