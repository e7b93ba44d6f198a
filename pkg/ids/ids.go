// Package ids defines the dense, monotone integer identifier types shared
// across the history, stream journal, and tool journal.
package ids

// MessageID is the 0-based position of a HistoryEntry in the append-only
// history. MessageIDs are strictly increasing in push order.
type MessageID uint64

// DistillateID is the 0-based allocation order of a Distillate.
type DistillateID uint64

// StepID is the allocation order of a streaming assistant step, 1-based by
// convention.
type StepID uint64

// ToolBatchID is the allocation order of a tool-call batch.
type ToolBatchID uint64

// MessageArena allocates dense, sequential MessageIDs starting at 0.
type MessageArena struct {
	next MessageID
}

// Next returns the next MessageID and advances the arena.
func (a *MessageArena) Next() MessageID {
	id := a.next
	a.next++
	return id
}

// Len reports how many ids this arena has allocated so far.
func (a *MessageArena) Len() MessageID {
	return a.next
}

// SetNext forces the arena's next allocation, used when restoring state
// from a loaded history so the counter resumes where it left off.
func (a *MessageArena) SetNext(n MessageID) {
	a.next = n
}

// DistillateArena allocates dense, sequential DistillateIDs starting at 0.
type DistillateArena struct {
	next DistillateID
}

// Next returns the next DistillateID and advances the arena.
func (a *DistillateArena) Next() DistillateID {
	id := a.next
	a.next++
	return id
}

// Len reports how many ids this arena has allocated so far.
func (a *DistillateArena) Len() DistillateID {
	return a.next
}

// SetNext forces the arena's next allocation.
func (a *DistillateArena) SetNext(n DistillateID) {
	a.next = n
}

// StepArena allocates sequential StepIDs starting at 1.
type StepArena struct {
	next StepID
}

// NewStepArena returns a StepArena whose first allocation is 1.
func NewStepArena() *StepArena {
	return &StepArena{next: 1}
}

// Next returns the next StepID and advances the arena.
func (a *StepArena) Next() StepID {
	if a.next == 0 {
		a.next = 1
	}
	id := a.next
	a.next++
	return id
}

// ToolBatchArena allocates sequential ToolBatchIDs starting at 0.
type ToolBatchArena struct {
	next ToolBatchID
}

// Next returns the next ToolBatchID and advances the arena.
func (a *ToolBatchArena) Next() ToolBatchID {
	id := a.next
	a.next++
	return id
}
