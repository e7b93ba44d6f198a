package streamjournal

import (
	"path/filepath"
	"testing"

	"ctxkeep/pkg/ctxconfig"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.db")
	j, err := Open(path, ctxconfig.FlushPolicy{Threshold: 3, IntervalMS: 200})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestBeginSessionRejectsConcurrentSession(t *testing.T) {
	j := newTestJournal(t)
	if _, err := j.BeginSession("claude-sonnet-4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := j.BeginSession("claude-sonnet-4"); err == nil {
		t.Fatalf("expected second BeginSession to fail while one is active")
	}
}

func TestAppendTextFirstContentFlushesImmediately(t *testing.T) {
	j := newTestJournal(t)
	aj, err := j.BeginSession("claude-sonnet-4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := aj.AppendText("hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aj.buffer) != 0 {
		t.Fatalf("expected buffer flushed after first content, got %d pending", len(aj.buffer))
	}

	var count int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM stream_journal WHERE step_id = ?`, uint64(aj.StepID())).Scan(&count); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 persisted row, got %d", count)
	}
}

func TestSealReturnsConcatenatedTextAndSealsRows(t *testing.T) {
	j := newTestJournal(t)
	aj, err := j.BeginSession("claude-sonnet-4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, chunk := range []string{"hello", " ", "world"} {
		if err := aj.AppendText(chunk); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	text, err := aj.Seal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", text)
	}

	// Sealing releases the exclusive lock, allowing a new session.
	if _, err := j.BeginSession("claude-sonnet-4"); err != nil {
		t.Fatalf("expected new session to be allowed after seal: %v", err)
	}
}

func TestDiscardDeletesAllRows(t *testing.T) {
	j := newTestJournal(t)
	aj, err := j.BeginSession("claude-sonnet-4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := aj.AppendText("partial"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, err := aj.Discard()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row deleted, got %d", n)
	}

	rec, err := j.Recover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected no pending step after discard, got %+v", rec)
	}
}

func TestRecoverClassifiesCompleteErroredIncomplete(t *testing.T) {
	j := newTestJournal(t)

	aj1, err := j.BeginSession("model-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := aj1.AppendText("done text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := aj1.AppendDone(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := aj1.Seal(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := j.Recover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil || rec.Kind != RecoveredComplete {
		t.Fatalf("expected RecoveredComplete, got %+v", rec)
	}
	if rec.PartialText != "done text" {
		t.Fatalf("expected partial text %q, got %q", "done text", rec.PartialText)
	}

	if err := j.CommitAndPruneStep(rec.StepID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	aj2, err := j.BeginSession("model-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := aj2.AppendText("oops"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := aj2.AppendError("model overloaded"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := aj2.Seal(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err = j.Recover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil || rec.Kind != RecoveredErrored {
		t.Fatalf("expected RecoveredErrored, got %+v", rec)
	}
	if rec.Error != "model overloaded" {
		t.Fatalf("expected error %q, got %q", "model overloaded", rec.Error)
	}
	if err := j.CommitAndPruneStep(rec.StepID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	aj3, err := j.BeginSession("model-c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := aj3.AppendText("mid-stream"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No seal, no done, no error: simulates a crash mid-stream.

	rec, err = j.Recover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil || rec.Kind != RecoveredIncomplete {
		t.Fatalf("expected RecoveredIncomplete, got %+v", rec)
	}
}
