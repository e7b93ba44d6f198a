package ids

import "testing"

func TestMessageArenaDenseFromZero(t *testing.T) {
	var a MessageArena
	for i := MessageID(0); i < 5; i++ {
		if got := a.Next(); got != i {
			t.Fatalf("expected %d, got %d", i, got)
		}
	}
	if a.Len() != 5 {
		t.Fatalf("expected len 5, got %d", a.Len())
	}
}

func TestStepArenaStartsAtOne(t *testing.T) {
	a := NewStepArena()
	if got := a.Next(); got != 1 {
		t.Fatalf("expected first step id 1, got %d", got)
	}
	if got := a.Next(); got != 2 {
		t.Fatalf("expected second step id 2, got %d", got)
	}
}

func TestToolBatchArenaStartsAtZero(t *testing.T) {
	var a ToolBatchArena
	if got := a.Next(); got != 0 {
		t.Fatalf("expected first tool batch id 0, got %d", got)
	}
}

func TestDistillateArenaSetNextResumes(t *testing.T) {
	var a DistillateArena
	a.Next()
	a.Next()
	a.SetNext(10)
	if got := a.Next(); got != 10 {
		t.Fatalf("expected resumed id 10, got %d", got)
	}
}
