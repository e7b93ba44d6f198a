package history

import "fmt"

// Kind tags the variant of a Message. Messages are immutable once
// constructed.
type Kind int8

const (
	// KindUser is user-authored text.
	KindUser Kind = iota
	// KindAssistant is assistant-authored text, possibly produced via
	// streaming and later sealed.
	KindAssistant
	// KindSystem is a system instruction.
	KindSystem
	// KindToolInvocation is the assistant's intent to invoke one or more
	// tools.
	KindToolInvocation
	// KindToolResult is the result of one executed tool call.
	KindToolResult
	// KindThinking is recorded model reasoning text.
	KindThinking
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAssistant:
		return "assistant"
	case KindSystem:
		return "system"
	case KindToolInvocation:
		return "tool_invocation"
	case KindToolResult:
		return "tool_result"
	case KindThinking:
		return "thinking"
	default:
		return "invalid"
	}
}

// ToolCall is one call within a tool-invocation message.
type ToolCall struct {
	ID   string
	Name string
	Args string
}

// ToolResult is the structured payload of a tool-result message.
type ToolResult struct {
	ToolCallID string
	Name       string
	Payload    string
}

// Message is a tagged sum over the six message variants. Each variant
// carries non-empty text or a non-empty structured payload; construction
// refuses empty content (invariant I4).
type Message struct {
	kind       Kind
	text       string
	toolCalls  []ToolCall
	toolResult *ToolResult
}

// Kind returns the message's variant tag.
func (m Message) Kind() Kind { return m.kind }

// Text returns the text payload for text-bearing variants. It is empty
// for KindToolInvocation and KindToolResult.
func (m Message) Text() string { return m.text }

// ToolCalls returns the calls carried by a KindToolInvocation message.
func (m Message) ToolCalls() []ToolCall { return m.toolCalls }

// ToolResult returns the payload carried by a KindToolResult message.
func (m Message) ToolResult() *ToolResult { return m.toolResult }

// TextForCounting returns the representative text used by the token
// counter: the plain text for text-bearing variants, the concatenation of
// tool-call argument buffers for invocations, and the result payload for
// tool results.
func (m Message) TextForCounting() string {
	switch m.kind {
	case KindToolInvocation:
		total := ""
		for _, c := range m.toolCalls {
			total += c.Name + c.Args
		}
		return total
	case KindToolResult:
		if m.toolResult == nil {
			return ""
		}
		return m.toolResult.Payload
	default:
		return m.text
	}
}

// ErrEmptyContent is returned by the constructors when given empty text
// or an empty structured payload.
var ErrEmptyContent = fmt.Errorf("message content must not be empty")

// NewUserMessage constructs a user text message.
func NewUserMessage(text string) (Message, error) {
	return newTextMessage(KindUser, text)
}

// NewAssistantMessage constructs an assistant text message.
func NewAssistantMessage(text string) (Message, error) {
	return newTextMessage(KindAssistant, text)
}

// NewSystemMessage constructs a system text message.
func NewSystemMessage(text string) (Message, error) {
	return newTextMessage(KindSystem, text)
}

// NewThinkingMessage constructs a recorded-thinking message.
func NewThinkingMessage(text string) (Message, error) {
	return newTextMessage(KindThinking, text)
}

func newTextMessage(kind Kind, text string) (Message, error) {
	if text == "" {
		return Message{}, ErrEmptyContent
	}
	return Message{kind: kind, text: text}, nil
}

// NewToolInvocation constructs a tool-invocation message from one or more
// calls. At least one call is required, and each call must name a tool.
func NewToolInvocation(calls []ToolCall) (Message, error) {
	if len(calls) == 0 {
		return Message{}, ErrEmptyContent
	}
	for _, c := range calls {
		if c.Name == "" {
			return Message{}, ErrEmptyContent
		}
	}
	cp := make([]ToolCall, len(calls))
	copy(cp, calls)
	return Message{kind: KindToolInvocation, toolCalls: cp}, nil
}

// NewToolResult constructs a tool-result message.
func NewToolResult(result ToolResult) (Message, error) {
	if result.ToolCallID == "" && result.Payload == "" {
		return Message{}, ErrEmptyContent
	}
	r := result
	return Message{kind: KindToolResult, toolResult: &r}, nil
}
