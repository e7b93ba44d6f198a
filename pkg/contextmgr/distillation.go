package contextmgr

import (
	"math"

	"ctxkeep/pkg/history"
	"ctxkeep/pkg/ids"
)

// PendingDistillation is a validated, contiguous, all-Original range ready
// to be summarized by the external generate_distillation capability and
// completed via CompleteDistillation.
type PendingDistillation struct {
	Start          ids.MessageID // inclusive
	End            ids.MessageID // exclusive
	Messages       []history.HistoryEntry
	OriginalTokens uint32
	TargetTokens   uint32
}

// PrepareDistillation sorts and dedupes messageIDs, finds the first
// maximal contiguous run, and verifies every id in the run is Original
// and outside the preserved-recent suffix. It computes the target token
// budget for the distillate as
// clamp(floor(original_tokens * target_ratio), 64, 2048).
func (cm *ContextManager) PrepareDistillation(messageIDs []ids.MessageID) (PendingDistillation, bool) {
	scope, ok := cm.history.PrepareDistillationScope(messageIDs, cm.distConfig.PreserveRecent)
	if !ok {
		return PendingDistillation{}, false
	}

	target := uint32(math.Floor(float64(scope.OriginalTokens) * cm.distConfig.TargetRatio))
	if target < 64 {
		target = 64
	}
	if target > 2048 {
		target = 2048
	}

	return PendingDistillation{
		Start:          scope.Start,
		End:            scope.End,
		Messages:       scope.Messages,
		OriginalTokens: scope.OriginalTokens,
		TargetTokens:   target,
	}, true
}

// CompleteDistillation re-validates the scope, counts tokens on content,
// allocates a DistillateID, records the distillate, and transitions every
// covered entry to Distilled(d). It rejects a stale scope (one where any
// covered entry is no longer Original, or now falls within the
// preserved-recent window) without any state change.
func (cm *ContextManager) CompleteDistillation(scope PendingDistillation, content, generatedBy string) (ids.DistillateID, error) {
	tokenCount := cm.counter.CountText(content)
	id, err := cm.history.CompleteDistillation(scope.Start, scope.End, content, tokenCount, generatedBy, cm.distConfig.PreserveRecent)
	if err != nil {
		return 0, err
	}
	log.Debug("distillation completed for range [%d,%d) -> distillate %d", scope.Start, scope.End, id)
	return id, nil
}
