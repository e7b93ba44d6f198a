package logx

import (
	"context"
	"os"
	"strings"
	"testing"
)

// agentIDKey is the plain string key under which Debug and DebugToFile
// look up the agent ID.
const agentIDKey = "agent_id"

func TestContextDebugLogging(t *testing.T) {
	// Reset environment
	os.Unsetenv("DEBUG")
	os.Unsetenv("DEBUG_DOMAINS")
	os.Unsetenv("DEBUG_FILE")
	os.Unsetenv("DEBUG_DIR")

	// Reinitialize config
	initDebugFromEnv()

	// Enable debug logging
	SetDebugConfig(true, false, ".")

	// Test basic context debug logging
	ctx := context.WithValue(context.Background(), agentIDKey, "test-agent")

	// This should work since debug is enabled and no domain filtering
	Debug(ctx, "contextmgr", "Test message: %s", "hello")

	// Test domain filtering
	SetDebugDomains([]string{"contextmgr", "streamjournal"})

	// These should work
	Debug(ctx, "contextmgr", "Coder message")
	Debug(ctx, "streamjournal", "Architect message")

	// This should be filtered out
	Debug(ctx, "tooljournal", "Dispatch message")

	// Test convenience functions
	DebugState(ctx, "contextmgr", "transition", "PLANNING", "starting new task")
	DebugMessage(ctx, "contextmgr", "TASK", "received task message")
	DebugFlow(ctx, "contextmgr", "code generation", "complete", "generated 5 files")
}

func TestEnvironmentVariableConfiguration(t *testing.T) {
	// Test DEBUG=1
	os.Setenv("DEBUG", "1")
	os.Setenv("DEBUG_DOMAINS", "contextmgr,streamjournal")

	// Reinitialize
	initDebugFromEnv()

	if !IsDebugEnabled() {
		t.Error("Expected debug to be enabled via DEBUG=1")
	}

	if !IsDebugEnabledForDomain("contextmgr") {
		t.Error("Expected contextmgr domain to be enabled")
	}

	if !IsDebugEnabledForDomain("streamjournal") {
		t.Error("Expected streamjournal domain to be enabled")
	}

	if IsDebugEnabledForDomain("tooljournal") {
		t.Error("Expected tooljournal domain to be disabled")
	}

	// Clean up
	os.Unsetenv("DEBUG")
	os.Unsetenv("DEBUG_DOMAINS")
	initDebugFromEnv()
}

func TestDebugToFileFunction(t *testing.T) {
	// Setup temporary directory
	tempDir := t.TempDir()

	// Enable debug with file logging
	SetDebugConfig(true, true, tempDir)

	ctx := context.WithValue(context.Background(), agentIDKey, "test-agent")

	// Test debug to file
	DebugToFile(ctx, "contextmgr", "test_debug.log", "Test debug message: %s", "file content")

	// Verify file was created
	content, err := os.ReadFile(tempDir + "/test_debug.log")
	if err != nil {
		t.Fatalf("Failed to read debug file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "Test debug message: file content") {
		t.Errorf("Expected debug message in file, got: %s", contentStr)
	}

	if !strings.Contains(contentStr, "[contextmgr]") {
		t.Errorf("Expected domain in file, got: %s", contentStr)
	}

	if !strings.Contains(contentStr, "[test-agent]") {
		t.Errorf("Expected agent ID in file, got: %s", contentStr)
	}
}
