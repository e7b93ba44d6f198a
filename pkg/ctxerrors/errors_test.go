package ctxerrors

import (
	"errors"
	"testing"
)

func TestIsAndKindOf(t *testing.T) {
	err := Newf(KindDistillationNeeded, "excess %d tokens", 512).
		WithFields(map[string]any{"excess_tokens": 512})

	if !Is(err, KindDistillationNeeded) {
		t.Fatalf("expected Is to match KindDistillationNeeded")
	}
	if Is(err, KindRecentMessagesTooLarge) {
		t.Fatalf("expected Is to reject mismatched kind")
	}

	kind, ok := KindOf(err)
	if !ok || kind != KindDistillationNeeded {
		t.Fatalf("expected KindOf to resolve KindDistillationNeeded, got %v ok=%v", kind, ok)
	}

	v, ok := err.Field("excess_tokens")
	if !ok || v.(int) != 512 {
		t.Fatalf("expected excess_tokens field 512, got %v ok=%v", v, ok)
	}
}

func TestKindOfNonCtxError(t *testing.T) {
	_, ok := KindOf(errors.New("plain error"))
	if ok {
		t.Fatalf("expected KindOf to reject a non-ctxerrors error")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindJournalIOError, cause, "flush failed")

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to see through Unwrap to cause")
	}
}
