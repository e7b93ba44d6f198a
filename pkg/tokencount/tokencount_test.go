package tokencount

import "testing"

func TestCountTextNonZeroForNonEmpty(t *testing.T) {
	c := New()
	if got := c.CountText("hello world"); got == 0 {
		t.Fatalf("expected non-zero token count, got %d", got)
	}
}

func TestCountTextEmpty(t *testing.T) {
	c := New()
	if got := c.CountText(""); got != 0 {
		t.Fatalf("expected zero tokens for empty text, got %d", got)
	}
}

func TestCountMessageAddsOverhead(t *testing.T) {
	c := New()
	text := c.CountText("hello")
	msg := c.CountMessage("hello")
	if msg != text+MessageOverhead {
		t.Fatalf("expected CountMessage to add overhead %d, got text=%d message=%d", MessageOverhead, text, msg)
	}
}

func TestFallbackCount(t *testing.T) {
	if got := fallbackCount("abcd"); got != 1 {
		t.Fatalf("expected 4 bytes -> 1 token, got %d", got)
	}
	if got := fallbackCount("abcdefgh"); got != 2 {
		t.Fatalf("expected 8 bytes -> 2 tokens, got %d", got)
	}
	if got := fallbackCount(""); got != 0 {
		t.Fatalf("expected empty text -> 0 tokens, got %d", got)
	}
}
