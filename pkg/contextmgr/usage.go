package contextmgr

import (
	"fmt"

	"ctxkeep/pkg/ctxerrors"
	"ctxkeep/pkg/ids"
)

// UsageStatusKind tags a ContextUsageStatus as one of the three structural
// states rather than a struct of optional error fields.
type UsageStatusKind int8

const (
	// StatusReady reports that Prepare() would currently succeed.
	StatusReady UsageStatusKind = iota
	// StatusNeedsDistillation reports that Prepare() would currently
	// return DistillationNeeded.
	StatusNeedsDistillation
	// StatusRecentMessagesTooLarge reports that Prepare() would
	// currently return RecentMessagesTooLarge.
	StatusRecentMessagesTooLarge
)

// ContextUsageStatus is a cheap, read-only snapshot of what Prepare()
// would currently produce, without building working-context segments.
type ContextUsageStatus struct {
	Kind              UsageStatusKind
	UsedTokens        uint32
	BudgetTokens      uint32
	DistilledSegments int

	// Valid when Kind == StatusNeedsDistillation.
	ExcessTokens      uint32
	MessagesToDistill []ids.MessageID
	Suggestion        string

	// Valid when Kind == StatusRecentMessagesTooLarge.
	RequiredTokens uint32
	RecentCount    int
}

// UsageStatus computes the would-be result of Prepare() and summarizes it
// as a tagged status, safe to call between operations.
func (cm *ContextManager) UsageStatus() ContextUsageStatus {
	budget := cm.effectiveBudget()
	wc, err := cm.Prepare()
	if err == nil {
		distilled := 0
		for _, seg := range wc.Segments {
			if seg.Kind == SegmentDistilled {
				distilled++
			}
		}
		return ContextUsageStatus{
			Kind:              StatusReady,
			UsedTokens:        wc.UsedTokens,
			BudgetTokens:      budget,
			DistilledSegments: distilled,
		}
	}

	ce, ok := ctxerrors.AsError(err)
	if !ok {
		return ContextUsageStatus{Kind: StatusReady, BudgetTokens: budget}
	}

	switch ce.Kind {
	case ctxerrors.KindRecentMessagesTooLarge:
		required, _ := ce.Field("required")
		count, _ := ce.Field("count")
		return ContextUsageStatus{
			Kind:           StatusRecentMessagesTooLarge,
			BudgetTokens:   budget,
			RequiredTokens: required.(uint32),
			RecentCount:    count.(int),
		}
	case ctxerrors.KindDistillationNeeded:
		excess, _ := ce.Field("excess_tokens")
		msgs, _ := ce.Field("messages_to_distill")
		suggestion, _ := ce.Field("suggestion")
		return ContextUsageStatus{
			Kind:              StatusNeedsDistillation,
			BudgetTokens:      budget,
			ExcessTokens:      excess.(uint32),
			MessagesToDistill: msgs.([]ids.MessageID),
			Suggestion:        suggestion.(string),
		}
	default:
		return ContextUsageStatus{Kind: StatusReady, BudgetTokens: budget}
	}
}

// Diagnostic renders a short, human-readable one-line summary of the
// status, for CLI and log consumption.
func (s ContextUsageStatus) Diagnostic() string {
	switch s.Kind {
	case StatusReady:
		return fmt.Sprintf("ready: %d/%d tokens used, %d segment(s) distilled", s.UsedTokens, s.BudgetTokens, s.DistilledSegments)
	case StatusNeedsDistillation:
		return fmt.Sprintf("needs distillation: %d excess tokens across %d message(s) — %s", s.ExcessTokens, len(s.MessagesToDistill), s.Suggestion)
	case StatusRecentMessagesTooLarge:
		return fmt.Sprintf("preserved-recent messages require %d tokens but budget is only %d", s.RequiredTokens, s.BudgetTokens)
	default:
		return "unknown usage status"
	}
}
