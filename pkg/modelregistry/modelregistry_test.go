package modelregistry

import "testing"

func TestGetKnownModel(t *testing.T) {
	r := New()
	res := r.Get("claude-sonnet-4")
	if !res.Found {
		t.Fatalf("expected claude-sonnet-4 to be found")
	}
	if res.Source != SourceCatalog {
		t.Fatalf("expected SourceCatalog, got %v", res.Source)
	}
	if res.Limits.ContextWindow != 200_000 {
		t.Fatalf("expected context window 200000, got %d", res.Limits.ContextWindow)
	}
}

func TestGetUnknownModelExactMatchOnly(t *testing.T) {
	r := New()
	res := r.Get("claude-sonnet-4-20250514")
	if res.Found {
		t.Fatalf("expected exact-match catalog to reject a suffixed variant")
	}
}

func TestGetOrDefaultFallsBackToOverride(t *testing.T) {
	r := New()
	def := ModelLimits{ContextWindow: 32_000, MaxOutput: 4_096}
	res := r.GetOrDefault("some-unknown-model", def)
	if !res.Found {
		t.Fatalf("expected GetOrDefault to always resolve")
	}
	if res.Source != SourceOverride {
		t.Fatalf("expected SourceOverride, got %v", res.Source)
	}
	if res.Limits != def {
		t.Fatalf("expected default limits to be returned")
	}
}

func TestKnown(t *testing.T) {
	r := New()
	if !r.Known("gpt-4o") {
		t.Fatalf("expected gpt-4o to be known")
	}
	if r.Known("not-a-real-model") {
		t.Fatalf("expected unknown model to report false")
	}
}
