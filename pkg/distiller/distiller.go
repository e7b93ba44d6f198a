// Package distiller defines the external generate_distillation capability
// and the adapters that satisfy it. Nothing under pkg/contextmgr imports
// this package or its subpackages; the orchestrator wires a concrete
// Distiller into the context manager's distillation loop.
package distiller

import (
	"context"

	"ctxkeep/pkg/history"
)

// Distiller summarizes a contiguous run of history entries into a
// non-empty block of text targeting approximately targetTokens in
// length. Implementations are expected to apply their own timeout and
// retry policy; callers do not additionally time-bound the call.
type Distiller interface {
	Generate(ctx context.Context, entries []history.HistoryEntry, targetTokens uint32) (string, error)
}

// ErrEmptyResult is returned by adapters when the underlying model
// produces no usable text.
type ErrEmptyResult struct {
	Provider string
}

func (e *ErrEmptyResult) Error() string {
	return e.Provider + ": distillation model returned an empty result"
}
