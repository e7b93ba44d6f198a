// Package history implements the append-only conversation record: the
// tagged Message sum, HistoryEntry wrapper, Distillate records, and the
// FullHistory aggregate with its load/save format.
package history

import (
	"sort"
	"time"

	"ctxkeep/pkg/ctxerrors"
	"ctxkeep/pkg/ids"
)

// DistillationState is the Original | Distilled(d) tag on a HistoryEntry.
// A zero-value DistillationState is Original.
type DistillationState struct {
	distillateID ids.DistillateID
	distilled    bool
}

// Original returns the Original distillation state.
func Original() DistillationState { return DistillationState{} }

// Distilled returns the Distilled(d) distillation state.
func Distilled(d ids.DistillateID) DistillationState {
	return DistillationState{distillateID: d, distilled: true}
}

// IsOriginal reports whether the entry is not yet covered by a distillate.
func (s DistillationState) IsOriginal() bool { return !s.distilled }

// DistillateID returns the covering distillate id and true, or the zero
// value and false if the state is Original.
func (s DistillationState) DistillateID() (ids.DistillateID, bool) {
	return s.distillateID, s.distilled
}

// HistoryEntry wraps one Message with its id, cached token count,
// creation time, distillation state, and optional owning stream step.
// Entries are never removed; the only mutation is the distillation-state
// transition Original -> Distilled(d), which never reverses.
type HistoryEntry struct {
	ID           ids.MessageID
	Message      Message
	TokenCount   uint32
	CreatedAt    time.Time
	State        DistillationState
	StreamStepID *ids.StepID
}

// Distillate represents one compressed, contiguous range of history
// entries.
type Distillate struct {
	ID             ids.DistillateID
	CoversStart    ids.MessageID // inclusive
	CoversEnd      ids.MessageID // exclusive
	Content        string
	TokenCount     uint32
	OriginalTokens uint32
	CreatedAt      time.Time
	GeneratedBy    string
}

// Covers reports whether id falls within the distillate's half-open range.
func (d Distillate) Covers(id ids.MessageID) bool {
	return id >= d.CoversStart && id < d.CoversEnd
}

// FullHistory is the in-memory append-only conversation record: every
// entry ever pushed, every distillate ever completed, and the name of the
// model currently in use.
type FullHistory struct {
	entries      []HistoryEntry
	distillates  []Distillate
	currentModel string

	msgArena  ids.MessageArena
	distArena ids.DistillateArena
}

// New returns an empty FullHistory for the given model name.
func New(currentModel string) *FullHistory {
	return &FullHistory{currentModel: currentModel}
}

// CurrentModel returns the active model name.
func (h *FullHistory) CurrentModel() string { return h.currentModel }

// SetCurrentModel records a new active model name without touching entry
// state (used by model switching).
func (h *FullHistory) SetCurrentModel(name string) { h.currentModel = name }

// Len returns the number of entries ever pushed.
func (h *FullHistory) Len() int { return len(h.entries) }

// Entries returns the full entry slice in MessageId order. The returned
// slice must not be mutated by the caller.
func (h *FullHistory) Entries() []HistoryEntry { return h.entries }

// Entry returns the entry with the given id.
func (h *FullHistory) Entry(id ids.MessageID) (HistoryEntry, bool) {
	if uint64(id) >= uint64(len(h.entries)) {
		return HistoryEntry{}, false
	}
	return h.entries[id], true
}

// Distillates returns every distillate ever completed, including any
// orphaned by a later re-distillation of an overlapping range.
func (h *FullHistory) Distillates() []Distillate { return h.distillates }

// DistillateByID returns the distillate with the given id.
func (h *FullHistory) DistillateByID(id ids.DistillateID) (Distillate, bool) {
	if uint64(id) >= uint64(len(h.distillates)) {
		return Distillate{}, false
	}
	return h.distillates[id], true
}

// PushMessage validates msg is non-empty (construction already enforces
// this), appends it as an Original entry with the given cached token
// count, and returns its freshly allocated MessageId.
func (h *FullHistory) PushMessage(msg Message, tokenCount uint32) ids.MessageID {
	return h.push(msg, tokenCount, nil)
}

// PushMessageWithStepID is PushMessage additionally recording the owning
// stream step, for idempotent crash recovery via HasStepID.
func (h *FullHistory) PushMessageWithStepID(msg Message, tokenCount uint32, step ids.StepID) ids.MessageID {
	s := step
	return h.push(msg, tokenCount, &s)
}

func (h *FullHistory) push(msg Message, tokenCount uint32, step *ids.StepID) ids.MessageID {
	id := h.msgArena.Next()
	h.entries = append(h.entries, HistoryEntry{
		ID:           id,
		Message:      msg,
		TokenCount:   tokenCount,
		CreatedAt:    time.Now(),
		State:        Original(),
		StreamStepID: step,
	})
	return id
}

// HasStepID scans entries for a given owning stream step. Used by
// recovery to achieve exactly-once commit.
func (h *FullHistory) HasStepID(step ids.StepID) bool {
	for _, e := range h.entries {
		if e.StreamStepID != nil && *e.StreamStepID == step {
			return true
		}
	}
	return false
}

// RollbackLastMessage removes the last entry if its id matches id,
// returning true. Otherwise it returns false and leaves history
// unchanged. Used to undo a pushed message when the resulting context
// proves unpreparable.
func (h *FullHistory) RollbackLastMessage(id ids.MessageID) bool {
	if len(h.entries) == 0 {
		return false
	}
	last := h.entries[len(h.entries)-1]
	if last.ID != id {
		return false
	}
	h.entries = h.entries[:len(h.entries)-1]
	h.msgArena.SetNext(id)
	return true
}

// PreservedRecentStart returns the MessageId at which the preserved-recent
// suffix begins, given preserveRecent entries kept exempt from
// distillation. It clamps to 0 for short histories.
func (h *FullHistory) PreservedRecentStart(preserveRecent int) ids.MessageID {
	n := len(h.entries)
	if preserveRecent >= n {
		return 0
	}
	return ids.MessageID(n - preserveRecent)
}

// PendingDistillation is the result of PrepareDistillationScope: a
// validated, contiguous, all-Original range ready to be summarized
// externally and completed via CompleteDistillation.
type PendingDistillation struct {
	Start          ids.MessageID // inclusive
	End            ids.MessageID // exclusive
	Messages       []HistoryEntry
	OriginalTokens uint32
}

// PrepareDistillationScope implements steps 1-4 of the distillation
// orchestration: sort and dedupe messageIDs, find the first maximal
// contiguous run, and verify every id in the run is Original and outside
// the preserved-recent suffix. It returns ok=false if no such run exists.
func (h *FullHistory) PrepareDistillationScope(messageIDs []ids.MessageID, preserveRecent int) (PendingDistillation, bool) {
	if len(messageIDs) == 0 {
		return PendingDistillation{}, false
	}
	sorted := make([]ids.MessageID, len(messageIDs))
	copy(sorted, messageIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	deduped := sorted[:0:0]
	for i, id := range sorted {
		if i == 0 || id != sorted[i-1] {
			deduped = append(deduped, id)
		}
	}

	// First maximal contiguous run.
	runStart := 0
	runEnd := 1
	for runEnd < len(deduped) && deduped[runEnd] == deduped[runEnd-1]+1 {
		runEnd++
	}
	run := deduped[runStart:runEnd]

	start := run[0]
	end := run[len(run)-1] + 1

	recentStart := h.PreservedRecentStart(preserveRecent)
	var originalTokens uint32
	entries := make([]HistoryEntry, 0, len(run))
	for _, id := range run {
		entry, ok := h.Entry(id)
		if !ok {
			return PendingDistillation{}, false
		}
		if !entry.State.IsOriginal() {
			return PendingDistillation{}, false
		}
		if id >= recentStart {
			return PendingDistillation{}, false
		}
		entries = append(entries, entry)
		originalTokens += entry.TokenCount
	}

	return PendingDistillation{
		Start:          start,
		End:            end,
		Messages:       entries,
		OriginalTokens: originalTokens,
	}, true
}

// CompleteDistillation re-validates that [start, end) is still entirely
// Original and entirely outside the preserved-recent window at the
// current moment, then records a new Distillate and transitions every
// covered entry to Distilled(d). It rejects a stale scope without any
// state change.
func (h *FullHistory) CompleteDistillation(start, end ids.MessageID, content string, tokenCount uint32, generatedBy string, preserveRecent int) (ids.DistillateID, error) {
	if content == "" {
		return 0, ctxerrors.New(ctxerrors.KindInvalidMessage, "distillate content must not be empty")
	}
	if start >= end || uint64(end) > uint64(len(h.entries)) {
		return 0, ctxerrors.New(ctxerrors.KindDistillationScopeStale, "scope range is empty or out of bounds")
	}

	recentStart := h.PreservedRecentStart(preserveRecent)
	var originalTokens uint32
	for id := start; id < end; id++ {
		entry := h.entries[id]
		if !entry.State.IsOriginal() {
			return 0, ctxerrors.Newf(ctxerrors.KindDistillationScopeStale, "entry %d is no longer Original", id)
		}
		if id >= recentStart {
			return 0, ctxerrors.Newf(ctxerrors.KindDistillationScopeStale, "entry %d now falls within the preserved-recent window", id)
		}
		originalTokens += entry.TokenCount
	}

	id := h.distArena.Next()
	h.distillates = append(h.distillates, Distillate{
		ID:             id,
		CoversStart:    start,
		CoversEnd:      end,
		Content:        content,
		TokenCount:     tokenCount,
		OriginalTokens: originalTokens,
		CreatedAt:      time.Now(),
		GeneratedBy:    generatedBy,
	})

	for i := start; i < end; i++ {
		h.entries[i].State = Distilled(id)
	}
	return id, nil
}
