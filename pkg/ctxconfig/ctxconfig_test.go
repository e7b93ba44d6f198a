package ctxconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Distillation.TargetRatio != 0.15 {
		t.Fatalf("expected target ratio 0.15, got %f", cfg.Distillation.TargetRatio)
	}
	if cfg.Distillation.PreserveRecent != 4 {
		t.Fatalf("expected preserve_recent 4, got %d", cfg.Distillation.PreserveRecent)
	}
	if cfg.Flush.Threshold != 25 {
		t.Fatalf("expected flush threshold 25, got %d", cfg.Flush.Threshold)
	}
	if cfg.Flush.IntervalMS != 200 {
		t.Fatalf("expected flush interval 200, got %d", cfg.Flush.IntervalMS)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults for a missing override file")
	}
}

func TestLoadOverlaysPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctxkeep.yaml")
	if err := os.WriteFile(path, []byte("distillation:\n  preserve_recent: 8\n"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Distillation.PreserveRecent != 8 {
		t.Fatalf("expected overridden preserve_recent 8, got %d", cfg.Distillation.PreserveRecent)
	}
	if cfg.Distillation.TargetRatio != 0.15 {
		t.Fatalf("expected untouched target ratio to remain default 0.15, got %f", cfg.Distillation.TargetRatio)
	}
	if cfg.Flush.Threshold != 25 {
		t.Fatalf("expected untouched flush threshold to remain default 25, got %d", cfg.Flush.Threshold)
	}
}
