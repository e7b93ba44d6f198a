// Package contextmgr owns the append-only history, the active model's
// token budget, and the distillation lifecycle, producing a WorkingContext
// on demand that is guaranteed to fit the current budget or signalling
// that distillation is required first.
package contextmgr

import (
	"fmt"

	"ctxkeep/pkg/ctxconfig"
	"ctxkeep/pkg/ctxerrors"
	"ctxkeep/pkg/history"
	"ctxkeep/pkg/ids"
	"ctxkeep/pkg/logx"
	"ctxkeep/pkg/modelregistry"
	"ctxkeep/pkg/tokencount"
)

var log = logx.NewLogger("contextmgr")

// ContextManager owns one conversation's FullHistory plus the active
// model's limits, output override, and distillation configuration.
type ContextManager struct {
	history        *history.FullHistory
	counter        *tokencount.Counter
	registry       *modelregistry.Registry
	limits         modelregistry.ModelLimits
	modelName      string
	outputOverride *uint32
	distConfig     ctxconfig.DistillationConfig
}

// New constructs a ContextManager for a fresh conversation on modelName,
// resolved against registry. It returns an error if modelName is not in
// the catalog; use NewWithLimits to supply limits explicitly instead.
func New(modelName string, registry *modelregistry.Registry, counter *tokencount.Counter, distConfig ctxconfig.DistillationConfig) (*ContextManager, error) {
	res := registry.Get(modelName)
	if !res.Found {
		return nil, fmt.Errorf("contextmgr: model %q not found in registry", modelName)
	}
	return NewWithLimits(modelName, res.Limits, registry, counter, distConfig), nil
}

// NewWithLimits constructs a ContextManager with explicit limits, bypassing
// the registry for the initial model (used for custom or unknown models
// the caller has already sized).
func NewWithLimits(modelName string, limits modelregistry.ModelLimits, registry *modelregistry.Registry, counter *tokencount.Counter, distConfig ctxconfig.DistillationConfig) *ContextManager {
	return &ContextManager{
		history:    history.New(modelName),
		counter:    counter,
		registry:   registry,
		limits:     limits,
		modelName:  modelName,
		distConfig: distConfig,
	}
}

// PushMessage validates msg (construction already enforces non-empty
// content), counts its tokens, appends it as an Original entry, and
// returns its freshly allocated MessageId.
func (cm *ContextManager) PushMessage(msg history.Message) ids.MessageID {
	tokens := cm.counter.CountMessage(msg.TextForCounting())
	return cm.history.PushMessage(msg, tokens)
}

// PushMessageWithStepID is PushMessage additionally recording the owning
// stream step for idempotent crash recovery.
func (cm *ContextManager) PushMessageWithStepID(msg history.Message, step ids.StepID) ids.MessageID {
	tokens := cm.counter.CountMessage(msg.TextForCounting())
	return cm.history.PushMessageWithStepID(msg, tokens, step)
}

// HasStepID reports whether the given stream step already has a matching
// history entry.
func (cm *ContextManager) HasStepID(step ids.StepID) bool {
	return cm.history.HasStepID(step)
}

// RollbackLastMessage undoes a pushed message when the resulting context
// proves unpreparable.
func (cm *ContextManager) RollbackLastMessage(id ids.MessageID) bool {
	return cm.history.RollbackLastMessage(id)
}

// ModelName returns the currently active model name.
func (cm *ContextManager) ModelName() string { return cm.modelName }

// Limits returns the currently active model limits.
func (cm *ContextManager) Limits() modelregistry.ModelLimits { return cm.limits }

// History returns the underlying append-only history for read-only
// inspection (e.g. by the orchestrator when assembling diagnostics).
func (cm *ContextManager) History() *history.FullHistory { return cm.history }

// Save atomically persists the history to path.
func (cm *ContextManager) Save(path string) error {
	return cm.history.Save(path)
}

// Load reads a history file from path and reconstructs a ContextManager
// around it, resolving ModelLimits for the persisted current_model
// against registry.
func Load(path string, registry *modelregistry.Registry, counter *tokencount.Counter, distConfig ctxconfig.DistillationConfig) (*ContextManager, error) {
	h, err := history.Load(path)
	if err != nil {
		return nil, err
	}
	res := registry.Get(h.CurrentModel())
	if !res.Found {
		return nil, ctxerrors.Newf(ctxerrors.KindHistoryLoadError, "loaded history's current_model %q is not in the registry", h.CurrentModel())
	}
	return &ContextManager{
		history:    h,
		counter:    counter,
		registry:   registry,
		limits:     res.Limits,
		modelName:  h.CurrentModel(),
		distConfig: distConfig,
	}, nil
}
