package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")

	if err := Write(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected content %q, got %q", "hello", got)
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")

	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := Write(path, []byte("new"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("expected content %q, got %q", "new", got)
	}

	// No leftover temp or backup files.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to list dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file in dir, got %d", len(entries))
	}
}

func TestWriteNoClobberRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := WriteNoClobber(path, []byte("new"), 0o644); err == nil {
		t.Fatalf("expected error writing over existing file")
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(got) != "old" {
		t.Fatalf("expected original content to survive, got %q", got)
	}
}

func TestWriteNoClobberAllowsNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")

	if err := WriteNoClobber(path, []byte("new"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
