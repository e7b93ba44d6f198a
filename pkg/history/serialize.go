package history

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ctxkeep/pkg/atomicfile"
	"ctxkeep/pkg/ctxerrors"
	"ctxkeep/pkg/ids"
)

// CurrentSchemaVersion is the schema_version written by Save and the
// highest version accepted by Load.
const CurrentSchemaVersion = 1

type serializedToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args"`
}

type serializedToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Payload    string `json:"payload"`
}

type serializedMessage struct {
	Kind       string                `json:"kind"`
	Text       string                `json:"text,omitempty"`
	ToolCalls  []serializedToolCall  `json:"tool_calls,omitempty"`
	ToolResult *serializedToolResult `json:"tool_result,omitempty"`
}

type serializedEntry struct {
	Variant      string            `json:"variant"` // "Original" | "Distilled"
	ID           uint64            `json:"id"`
	Message      serializedMessage `json:"message"`
	TokenCount   uint32            `json:"token_count"`
	CreatedAt    time.Time         `json:"created_at"`
	DistillateID *uint64           `json:"distillate_id,omitempty"`
	StreamStepID *uint64           `json:"stream_step_id,omitempty"`
}

type serializedCovers struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

type serializedDistillate struct {
	ID             uint64           `json:"id"`
	Covers         serializedCovers `json:"covers"`
	Content        string           `json:"content"`
	TokenCount     uint32           `json:"token_count"`
	OriginalTokens uint32           `json:"original_tokens"`
	CreatedAt      time.Time        `json:"created_at"`
	GeneratedBy    string           `json:"generated_by"`
}

type serializedDoc struct {
	SchemaVersion uint32                  `json:"schema_version"`
	Entries       []serializedEntry       `json:"entries"`
	Distillates   []serializedDistillate  `json:"distillates"`
	CurrentModel  string                  `json:"current_model"`
}

func kindToString(k Kind) string { return k.String() }

func kindFromString(s string) (Kind, error) {
	switch s {
	case "user":
		return KindUser, nil
	case "assistant":
		return KindAssistant, nil
	case "system":
		return KindSystem, nil
	case "tool_invocation":
		return KindToolInvocation, nil
	case "tool_result":
		return KindToolResult, nil
	case "thinking":
		return KindThinking, nil
	default:
		return 0, fmt.Errorf("unknown message kind %q", s)
	}
}

func messageToSerialized(m Message) serializedMessage {
	sm := serializedMessage{Kind: kindToString(m.Kind()), Text: m.Text()}
	for _, c := range m.ToolCalls() {
		sm.ToolCalls = append(sm.ToolCalls, serializedToolCall{ID: c.ID, Name: c.Name, Args: c.Args})
	}
	if tr := m.ToolResult(); tr != nil {
		sm.ToolResult = &serializedToolResult{ToolCallID: tr.ToolCallID, Name: tr.Name, Payload: tr.Payload}
	}
	return sm
}

func serializedToMessage(sm serializedMessage) (Message, error) {
	kind, err := kindFromString(sm.Kind)
	if err != nil {
		return Message{}, err
	}
	switch kind {
	case KindUser:
		return NewUserMessage(sm.Text)
	case KindAssistant:
		return NewAssistantMessage(sm.Text)
	case KindSystem:
		return NewSystemMessage(sm.Text)
	case KindThinking:
		return NewThinkingMessage(sm.Text)
	case KindToolInvocation:
		calls := make([]ToolCall, 0, len(sm.ToolCalls))
		for _, c := range sm.ToolCalls {
			calls = append(calls, ToolCall{ID: c.ID, Name: c.Name, Args: c.Args})
		}
		return NewToolInvocation(calls)
	case KindToolResult:
		if sm.ToolResult == nil {
			return Message{}, fmt.Errorf("tool_result message missing tool_result payload")
		}
		return NewToolResult(ToolResult{
			ToolCallID: sm.ToolResult.ToolCallID,
			Name:       sm.ToolResult.Name,
			Payload:    sm.ToolResult.Payload,
		})
	default:
		return Message{}, fmt.Errorf("unhandled message kind %q", sm.Kind)
	}
}

// Save atomically persists the full history to path as JSON.
func (h *FullHistory) Save(path string) error {
	doc := serializedDoc{
		SchemaVersion: CurrentSchemaVersion,
		CurrentModel:  h.currentModel,
	}

	for _, e := range h.entries {
		se := serializedEntry{
			Variant:    "Original",
			ID:         uint64(e.ID),
			Message:    messageToSerialized(e.Message),
			TokenCount: e.TokenCount,
			CreatedAt:  e.CreatedAt,
		}
		if d, ok := e.State.DistillateID(); ok {
			se.Variant = "Distilled"
			dv := uint64(d)
			se.DistillateID = &dv
		}
		if e.StreamStepID != nil {
			sv := uint64(*e.StreamStepID)
			se.StreamStepID = &sv
		}
		doc.Entries = append(doc.Entries, se)
	}

	for _, d := range h.distillates {
		doc.Distillates = append(doc.Distillates, serializedDistillate{
			ID:             uint64(d.ID),
			Covers:         serializedCovers{Start: uint64(d.CoversStart), End: uint64(d.CoversEnd)},
			Content:        d.Content,
			TokenCount:     d.TokenCount,
			OriginalTokens: d.OriginalTokens,
			CreatedAt:      d.CreatedAt,
			GeneratedBy:    d.GeneratedBy,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ctxerrors.Wrap(ctxerrors.KindJournalIOError, err, "marshal history")
	}
	if err := atomicfile.Write(path, data, 0o644); err != nil {
		return ctxerrors.Wrap(ctxerrors.KindJournalIOError, err, "write history file")
	}
	return nil
}

// Load reads and strictly validates a history file written by Save. Any
// invariant violation returns a structured HistoryLoadError identifying
// the invariant; no silent repair is attempted.
func Load(path string) (*FullHistory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ctxerrors.Wrap(ctxerrors.KindJournalIOError, err, "read history file")
	}

	var doc serializedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ctxerrors.Wrap(ctxerrors.KindHistoryLoadError, err, "malformed history JSON")
	}
	if doc.SchemaVersion == 0 || doc.SchemaVersion > CurrentSchemaVersion {
		return nil, ctxerrors.Newf(ctxerrors.KindHistoryLoadError, "unsupported schema_version %d", doc.SchemaVersion)
	}

	h := New(doc.CurrentModel)

	entries := make([]HistoryEntry, len(doc.Entries))
	for i, se := range doc.Entries {
		if se.ID != uint64(i) {
			return nil, ctxerrors.Newf(ctxerrors.KindHistoryLoadError, "entries[%d].id == %d, expected %d (I3 dense ids)", i, se.ID, i)
		}
		msg, err := serializedToMessage(se.Message)
		if err != nil {
			return nil, ctxerrors.Wrapf(ctxerrors.KindHistoryLoadError, err, "entries[%d]: invalid message", i)
		}
		entry := HistoryEntry{
			ID:         ids.MessageID(se.ID),
			Message:    msg,
			TokenCount: se.TokenCount,
			CreatedAt:  se.CreatedAt,
		}
		switch se.Variant {
		case "Original":
			entry.State = Original()
		case "Distilled":
			if se.DistillateID == nil {
				return nil, ctxerrors.Newf(ctxerrors.KindHistoryLoadError, "entries[%d]: Distilled variant missing distillate_id", i)
			}
			entry.State = Distilled(ids.DistillateID(*se.DistillateID))
		default:
			return nil, ctxerrors.Newf(ctxerrors.KindHistoryLoadError, "entries[%d]: unknown variant %q", i, se.Variant)
		}
		if se.StreamStepID != nil {
			s := ids.StepID(*se.StreamStepID)
			entry.StreamStepID = &s
		}
		entries[i] = entry
	}

	distillates := make([]Distillate, len(doc.Distillates))
	for j, sd := range doc.Distillates {
		if sd.ID != uint64(j) {
			return nil, ctxerrors.Newf(ctxerrors.KindHistoryLoadError, "distillates[%d].id == %d, expected %d (I3 dense ids)", j, sd.ID, j)
		}
		if sd.Covers.Start >= sd.Covers.End || sd.Covers.End > uint64(len(entries)) {
			return nil, ctxerrors.Newf(ctxerrors.KindHistoryLoadError, "distillates[%d]: covers range [%d,%d) invalid against %d entries (I1 contiguity)", j, sd.Covers.Start, sd.Covers.End, len(entries))
		}
		for k := sd.Covers.Start; k < sd.Covers.End; k++ {
			d, ok := entries[k].State.DistillateID()
			if !ok || uint64(d) != uint64(j) {
				return nil, ctxerrors.Newf(ctxerrors.KindHistoryLoadError, "distillates[%d]: entries[%d] is not Distilled(%d) (I2 single cover)", j, k, j)
			}
		}
		distillates[j] = Distillate{
			ID:             ids.DistillateID(sd.ID),
			CoversStart:    ids.MessageID(sd.Covers.Start),
			CoversEnd:      ids.MessageID(sd.Covers.End),
			Content:        sd.Content,
			TokenCount:     sd.TokenCount,
			OriginalTokens: sd.OriginalTokens,
			CreatedAt:      sd.CreatedAt,
			GeneratedBy:    sd.GeneratedBy,
		}
	}

	for i, e := range entries {
		if d, ok := e.State.DistillateID(); ok {
			if uint64(d) >= uint64(len(distillates)) {
				return nil, ctxerrors.Newf(ctxerrors.KindHistoryLoadError, "entries[%d]: distillate_id %d out of range", i, d)
			}
			if !distillates[d].Covers(ids.MessageID(i)) {
				return nil, ctxerrors.Newf(ctxerrors.KindHistoryLoadError, "entries[%d]: not within distillates[%d].covers", i, d)
			}
		}
	}

	h.entries = entries
	h.distillates = distillates
	h.msgArena.SetNext(ids.MessageID(len(entries)))
	h.distArena.SetNext(ids.DistillateID(len(distillates)))
	return h, nil
}
