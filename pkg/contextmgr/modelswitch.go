package contextmgr

import (
	"fmt"

	"ctxkeep/pkg/ids"
)

// AdaptationKind tags the shape of a model switch's effect on the active
// budget.
type AdaptationKind int8

const (
	// AdaptationNoChange reports the budget did not change.
	AdaptationNoChange AdaptationKind = iota
	// AdaptationShrinking reports the budget shrank.
	AdaptationShrinking
	// AdaptationExpanding reports the budget grew.
	AdaptationExpanding
)

// ContextAdaptation is the outcome of SwitchModel. No state transition
// occurs as part of computing it; it only classifies the change and, for
// Expanding, estimates how many currently Distilled entries would appear as
// Original segments on the next Prepare().
type ContextAdaptation struct {
	Kind              AdaptationKind
	OldBudget         uint32
	NewBudget         uint32
	NeedsDistillation bool // valid for AdaptationShrinking
	CanRestore        int  // valid for AdaptationExpanding
}

// SwitchModel updates the active ModelLimits to newModel and classifies
// the resulting budget change. For a shrink, NeedsDistillation reports
// whether the next Prepare() would currently fail; for an expansion,
// CanRestore estimates how many entries presently Distilled would appear
// as Original segments under the new budget. Neither case mutates any
// history entry: the working-context builder naturally prefers originals
// once the wider budget allows it.
func (cm *ContextManager) SwitchModel(newModel string) (ContextAdaptation, error) {
	res := cm.registry.Get(newModel)
	if !res.Found {
		return ContextAdaptation{}, fmt.Errorf("contextmgr: model %q not found in registry", newModel)
	}

	oldBudget := cm.effectiveBudget()

	distilledBefore := make(map[ids.MessageID]bool)
	for _, e := range cm.history.Entries() {
		if !e.State.IsOriginal() {
			distilledBefore[e.ID] = true
		}
	}

	cm.limits = res.Limits
	cm.modelName = newModel
	cm.history.SetCurrentModel(newModel)
	newBudget := cm.effectiveBudget()

	switch {
	case newBudget == oldBudget:
		return ContextAdaptation{Kind: AdaptationNoChange, OldBudget: oldBudget, NewBudget: newBudget}, nil

	case newBudget < oldBudget:
		_, err := cm.Prepare()
		return ContextAdaptation{
			Kind:              AdaptationShrinking,
			OldBudget:         oldBudget,
			NewBudget:         newBudget,
			NeedsDistillation: err != nil,
		}, nil

	default:
		wc, err := cm.Prepare()
		canRestore := 0
		if err == nil {
			for _, seg := range wc.Segments {
				if seg.Kind == SegmentOriginal && distilledBefore[seg.MessageID] {
					canRestore++
				}
			}
		}
		return ContextAdaptation{
			Kind:       AdaptationExpanding,
			OldBudget:  oldBudget,
			NewBudget:  newBudget,
			CanRestore: canRestore,
		}, nil
	}
}

// SetModelWithoutAdaptation updates the active limits without computing a
// ContextAdaptation, used on initial load where there is no prior budget
// to compare against.
func (cm *ContextManager) SetModelWithoutAdaptation(newModel string) error {
	res := cm.registry.Get(newModel)
	if !res.Found {
		return fmt.Errorf("contextmgr: model %q not found in registry", newModel)
	}
	cm.limits = res.Limits
	cm.modelName = newModel
	cm.history.SetCurrentModel(newModel)
	return nil
}
