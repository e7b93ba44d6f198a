// Package ctxerrors provides the typed, enumerable error taxonomy shared by
// the context manager, stream journal, and tool journal.
package ctxerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a ctxerrors.Error. Kinds are closed: callers switch on
// them exhaustively rather than probing optional fields.
type Kind int8

const (
	// KindDistillationNeeded signals that older undistilled messages do
	// not fit the working-context budget; the caller must distill and
	// retry prepare().
	KindDistillationNeeded Kind = iota
	// KindRecentMessagesTooLarge signals that the preserved-recent suffix
	// alone exceeds the budget. Unrecoverable from within the manager.
	KindRecentMessagesTooLarge
	// KindDistillationScopeStale signals that a distillation scope no
	// longer points at entries that are all Original.
	KindDistillationScopeStale
	// KindInvalidMessage signals empty content at message construction.
	KindInvalidMessage
	// KindHistoryLoadError signals a load-time invariant violation.
	KindHistoryLoadError
	// KindJournalIOError signals a storage engine failure in either
	// journal.
	KindJournalIOError
	// KindToolBatchInUse signals a second begin_*batch before the
	// outstanding batch committed or was discarded.
	KindToolBatchInUse
	// KindPruneBeforeSave signals an attempted prune before history was
	// durably persisted.
	KindPruneBeforeSave
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDistillationNeeded:
		return "distillation_needed"
	case KindRecentMessagesTooLarge:
		return "recent_messages_too_large"
	case KindDistillationScopeStale:
		return "distillation_scope_stale"
	case KindInvalidMessage:
		return "invalid_message"
	case KindHistoryLoadError:
		return "history_load_error"
	case KindJournalIOError:
		return "journal_io_error"
	case KindToolBatchInUse:
		return "tool_batch_in_use"
	case KindPruneBeforeSave:
		return "prune_before_save"
	default:
		return "invalid"
	}
}

// Error is the single wrapping error type used across the core packages.
// Kind-specific detail lives in the Fields map rather than as bespoke
// struct fields, so callers have one type to errors.As against.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// AsError returns err as a *Error via errors.As, or ok=false if it isn't
// one. Useful when a caller needs more than Kind (e.g. Fields).
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or a false ok if err is not a *Error.
func KindOf(err error) (kind Kind, ok bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// New creates an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Err: cause, Message: message}
}

// Wrapf creates an Error of the given kind wrapping cause with a formatted
// message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: cause, Message: fmt.Sprintf(format, args...)}
}

// WithFields attaches structured detail (e.g. required/budget token counts)
// to the error, returning the same *Error for chaining.
func (e *Error) WithFields(fields map[string]any) *Error {
	e.Fields = fields
	return e
}

// Field returns a field value and whether it was present.
func (e *Error) Field(name string) (any, bool) {
	if e.Fields == nil {
		return nil, false
	}
	v, ok := e.Fields[name]
	return v, ok
}
