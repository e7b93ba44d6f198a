package main

import (
	"fmt"
	"os"

	"ctxkeep/pkg/contextmgr"
	"ctxkeep/pkg/ctxconfig"
	"ctxkeep/pkg/ctxerrors"
	"ctxkeep/pkg/ctxmetrics"
	"ctxkeep/pkg/distiller"
	"ctxkeep/pkg/distiller/anthropic"
	"ctxkeep/pkg/distiller/chain"
	"ctxkeep/pkg/distiller/google"
	"ctxkeep/pkg/distiller/ollama"
	"ctxkeep/pkg/distiller/openai"
	"ctxkeep/pkg/logx"
	"ctxkeep/pkg/modelregistry"
	"ctxkeep/pkg/streamjournal"
	"ctxkeep/pkg/tokencount"
	"ctxkeep/pkg/tooljournal"
)

var log = logx.NewLogger("ctxkeepd")

// Orchestrator owns one conversation's context manager plus the two
// journals that protect it against a crash mid-turn, wired together
// exactly as spec.md §2's data-flow diagram describes.
type Orchestrator struct {
	paths    sessionPaths
	cfg      ctxconfig.Config
	registry *modelregistry.Registry
	counter  *tokencount.Counter
	cm       *contextmgr.ContextManager
	stream   *streamjournal.Journal
	tools    *tooljournal.Journal
	dist     distiller.Distiller
	metrics  *ctxmetrics.Recorder
}

// bootstrap constructs every subsystem, loading existing on-disk state
// when present and creating it fresh otherwise, then runs startup
// recovery against both journals.
func bootstrap(projectDir, modelName, configPath string) (*Orchestrator, error) {
	paths := newSessionPaths(projectDir)
	if err := os.MkdirAll(paths.dir(), 0o755); err != nil {
		return nil, fmt.Errorf("ctxkeepd: create state dir: %w", err)
	}

	cfg, err := ctxconfig.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("ctxkeepd: load config: %w", err)
	}

	registry := modelregistry.New()
	counter := tokencount.New()

	cm, err := loadOrCreateContextManager(paths.historyFile, modelName, registry, counter, cfg.Distillation)
	if err != nil {
		return nil, fmt.Errorf("ctxkeepd: context manager: %w", err)
	}

	streamJ, err := streamjournal.Open(paths.streamDB, cfg.Flush)
	if err != nil {
		return nil, fmt.Errorf("ctxkeepd: open stream journal: %w", err)
	}

	toolJ, err := tooljournal.Open(paths.toolDB)
	if err != nil {
		_ = streamJ.Close()
		return nil, fmt.Errorf("ctxkeepd: open tool journal: %w", err)
	}

	o := &Orchestrator{
		paths:    paths,
		cfg:      cfg,
		registry: registry,
		counter:  counter,
		cm:       cm,
		stream:   streamJ,
		tools:    toolJ,
		dist:     buildDistillerChain(),
		metrics:  ctxmetrics.New(),
	}

	if err := o.recoverJournals(); err != nil {
		_ = o.Close()
		return nil, fmt.Errorf("ctxkeepd: recovery: %w", err)
	}

	log.Info("run %s bootstrapped against %s", paths.runID, paths.dir())
	return o, nil
}

func loadOrCreateContextManager(path, modelName string, registry *modelregistry.Registry, counter *tokencount.Counter, distCfg ctxconfig.DistillationConfig) (*contextmgr.ContextManager, error) {
	if _, err := os.Stat(path); err == nil {
		log.Info("loading existing history from %s", path)
		return contextmgr.Load(path, registry, counter, distCfg)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	log.Info("no existing history at %s, starting fresh on model %s", path, modelName)
	return contextmgr.New(modelName, registry, counter, distCfg)
}

// buildDistillerChain assembles a failover chain from whichever provider
// credentials are present in the environment. Providers with no
// credentials configured are simply omitted; an empty chain is valid and
// will surface as a clear error only when a distillation is actually
// attempted.
func buildDistillerChain() distiller.Distiller {
	c := chain.New()

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		model := envOrDefault("CTXKEEP_ANTHROPIC_MODEL", "claude-3-5-haiku-latest")
		c.Add("anthropic", anthropic.New(key, model))
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		model := envOrDefault("CTXKEEP_OPENAI_MODEL", "gpt-4o-mini")
		c.Add("openai", openai.New(key, model))
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		model := envOrDefault("CTXKEEP_GOOGLE_MODEL", "gemini-1.5-flash")
		c.Add("google", google.New(key, model))
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		model := envOrDefault("CTXKEEP_OLLAMA_MODEL", "llama3.2")
		if ollamaClient, err := ollama.New(host, model); err != nil {
			log.Warn("skipping ollama distiller: %v", err)
		} else {
			c.Add("ollama", ollamaClient)
		}
	}

	return c
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// saveBeforePrune persists history to disk and must be called, and must
// succeed, before any commit-and-prune or commit-batch call that would
// delete the journal rows backing a not-yet-durable turn (J1,
// never-prune-before-save). A failed save is reported as
// KindPruneBeforeSave rather than silently skipping the prune, since the
// journal rows are the only remaining copy of the turn until save
// succeeds.
func (o *Orchestrator) saveBeforePrune() error {
	if err := o.cm.Save(o.paths.historyFile); err != nil {
		return ctxerrors.Wrapf(ctxerrors.KindPruneBeforeSave, err, "save history to %s before pruning journal", o.paths.historyFile)
	}
	return nil
}

// Close releases the journal database handles. The context manager has
// no handle of its own; its state is persisted explicitly via Save.
func (o *Orchestrator) Close() error {
	var errs []error
	if o.stream != nil {
		if err := o.stream.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.tools != nil {
		if err := o.tools.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("ctxkeepd: close: %v", errs)
	}
	return nil
}
