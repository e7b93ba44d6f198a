package contextmgr

import (
	"ctxkeep/pkg/ctxerrors"
	"ctxkeep/pkg/history"
	"ctxkeep/pkg/ids"
)

// SegmentKind tags a ContextSegment as either a verbatim original message
// or a distillate standing in for a covered range.
type SegmentKind int8

const (
	// SegmentOriginal includes the message verbatim.
	SegmentOriginal SegmentKind = iota
	// SegmentDistilled includes the distillate text in place of the
	// replaced originals.
	SegmentDistilled
)

// ContextSegment is one element of a WorkingContext, always in ascending
// MessageId order within the context.
type ContextSegment struct {
	Kind         SegmentKind
	MessageID    ids.MessageID   // valid for SegmentOriginal
	DistillateID ids.DistillateID // valid for SegmentDistilled
	Replaces     []ids.MessageID  // valid for SegmentDistilled
	Tokens       uint32
}

// WorkingContext is the ephemeral, ordered list of segments materialized
// for one API request. It is consumed once and recomputed thereafter.
type WorkingContext struct {
	Segments    []ContextSegment
	TokenBudget uint32
	UsedTokens  uint32
}

// block is one contiguous run of entries sharing the same distillation
// state (Phase 2 partition).
type block struct {
	distilled    bool
	distillateID ids.DistillateID
	entries      []history.HistoryEntry
}

func partitionBlocks(entries []history.HistoryEntry) []block {
	var blocks []block
	for _, e := range entries {
		d, distilled := e.State.DistillateID()
		if n := len(blocks); n > 0 {
			last := &blocks[n-1]
			sameGroup := last.distilled == distilled && (!distilled || last.distillateID == d)
			if sameGroup {
				last.entries = append(last.entries, e)
				continue
			}
		}
		blocks = append(blocks, block{distilled: distilled, distillateID: d, entries: []history.HistoryEntry{e}})
	}
	return blocks
}

// Prepare runs the five-phase working-context build algorithm: reserve
// the preserved-recent suffix, partition older entries into contiguous
// blocks, greedily select newest-to-oldest preferring originals over
// distillates, and assemble the result in chronological order.
func (cm *ContextManager) Prepare() (WorkingContext, error) {
	budget := cm.effectiveBudget()
	entries := cm.history.Entries()
	n := len(entries)
	preserveRecent := cm.distConfig.PreserveRecent

	recentStart := n - preserveRecent
	if preserveRecent >= n {
		recentStart = 0
	}
	recent := entries[recentStart:]

	var tokensForRecent uint32
	for _, e := range recent {
		tokensForRecent += e.TokenCount
	}
	if tokensForRecent > budget {
		return WorkingContext{}, ctxerrors.Newf(ctxerrors.KindRecentMessagesTooLarge,
			"preserved-recent suffix requires %d tokens, budget is %d", tokensForRecent, budget).
			WithFields(map[string]any{
				"required": tokensForRecent,
				"budget":   budget,
				"count":    len(recent),
			})
	}

	older := entries[:recentStart]
	blocks := partitionBlocks(older)

	remaining := budget - tokensForRecent
	var selected []ContextSegment // maintained in ascending MessageId order by prepending

	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		if b.distilled {
			var originalSum uint32
			for _, e := range b.entries {
				originalSum += e.TokenCount
			}
			if originalSum <= remaining {
				segs := make([]ContextSegment, len(b.entries))
				for j, e := range b.entries {
					segs[j] = ContextSegment{Kind: SegmentOriginal, MessageID: e.ID, Tokens: e.TokenCount}
				}
				selected = append(segs, selected...)
				remaining -= originalSum
				continue
			}

			dist, ok := cm.history.DistillateByID(b.distillateID)
			if ok && dist.TokenCount <= remaining {
				replaces := make([]ids.MessageID, len(b.entries))
				for j, e := range b.entries {
					replaces[j] = e.ID
				}
				selected = append([]ContextSegment{{
					Kind:         SegmentDistilled,
					DistillateID: b.distillateID,
					Replaces:     replaces,
					Tokens:       dist.TokenCount,
				}}, selected...)
				remaining -= dist.TokenCount
			}
			// else: skip this block entirely.
			continue
		}

		// Undistilled block: include as many trailing entries as fit.
		take := 0
		var tokens uint32
		for j := len(b.entries) - 1; j >= 0; j-- {
			t := b.entries[j].TokenCount
			if tokens+t > remaining {
				break
			}
			tokens += t
			take++
		}

		if take == len(b.entries) {
			segs := make([]ContextSegment, len(b.entries))
			for j, e := range b.entries {
				segs[j] = ContextSegment{Kind: SegmentOriginal, MessageID: e.ID, Tokens: e.TokenCount}
			}
			selected = append(segs, selected...)
			remaining -= tokens
			continue
		}

		needed := b.entries[:len(b.entries)-take]
		var neededTokens uint32
		for _, e := range needed {
			neededTokens += e.TokenCount
		}
		remainingAfterTail := remaining - tokens
		var excess uint32
		if neededTokens > remainingAfterTail {
			excess = neededTokens - remainingAfterTail
		}
		neededIDs := make([]ids.MessageID, len(needed))
		for j, e := range needed {
			neededIDs[j] = e.ID
		}
		return WorkingContext{}, ctxerrors.Newf(ctxerrors.KindDistillationNeeded,
			"older messages %d..%d (%d tokens) do not fit the remaining budget of %d tokens",
			neededIDs[0], neededIDs[len(neededIDs)-1], neededTokens, remainingAfterTail).
			WithFields(map[string]any{
				"excess_tokens":        excess,
				"messages_to_distill":  neededIDs,
				"suggestion":           "distill the listed message range and retry prepare()",
			})
	}

	recentSegs := make([]ContextSegment, len(recent))
	for i, e := range recent {
		recentSegs[i] = ContextSegment{Kind: SegmentOriginal, MessageID: e.ID, Tokens: e.TokenCount}
	}
	finalSegments := append(selected, recentSegs...)

	return WorkingContext{
		Segments:    finalSegments,
		TokenBudget: budget,
		UsedTokens:  budget - remaining,
	}, nil
}
