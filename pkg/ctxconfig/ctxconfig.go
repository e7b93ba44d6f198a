// Package ctxconfig holds the narrow, optional configuration surface for
// distillation and journal flush behavior. It deliberately does not cover
// environment variables, credential handling, or file-path conventions,
// which remain out of scope.
package ctxconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DistillationConfig controls how aggressively older history is
// compressed.
type DistillationConfig struct {
	// TargetRatio is the fraction of original tokens a distillate should
	// target, clamped to [64, 2048] tokens regardless of the computed
	// value.
	TargetRatio float64 `yaml:"target_ratio"`
	// PreserveRecent is the number of most-recent entries exempt from
	// distillation (invariant I5).
	PreserveRecent int `yaml:"preserve_recent"`
}

// FlushPolicy controls stream-journal buffering.
type FlushPolicy struct {
	// Threshold is the buffered delta count that forces a flush.
	Threshold int `yaml:"threshold"`
	// IntervalMS is the wall-clock interval, in milliseconds, that
	// forces a flush.
	IntervalMS int `yaml:"interval_ms"`
}

// Config is the full set of tunables consumed by the core packages.
type Config struct {
	Distillation DistillationConfig `yaml:"distillation"`
	Flush        FlushPolicy        `yaml:"flush"`
}

// Default returns the spec-documented defaults: target_ratio 0.15,
// preserve_recent 4, flush threshold 25, flush interval 200ms.
func Default() Config {
	return Config{
		Distillation: DistillationConfig{TargetRatio: 0.15, PreserveRecent: 4},
		Flush:        FlushPolicy{Threshold: 25, IntervalMS: 200},
	}
}

// Load reads an optional YAML override file, starting from Default and
// overlaying any fields present in the file. A missing file is not an
// error; it simply yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("ctxconfig: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("ctxconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}
