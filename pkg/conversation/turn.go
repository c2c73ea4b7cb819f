// Package conversation holds the ordered transcript passed to every model call.
package conversation

import "encoding/json"

type Kind int

const (
	KindUser Kind = iota
	KindAssistantText
	KindAssistantToolRequest
	KindToolResult
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAssistantText:
		return "assistant_text"
	case KindAssistantToolRequest:
		return "assistant_tool_request"
	case KindToolResult:
		return "tool_result"
	default:
		return "unknown"
	}
}

// Turn is one entry of a transcript. The set of implementations is closed.
type Turn interface {
	Kind() Kind
	isTurn()
}

// ToolCall is a model-issued request to invoke a named tool.
type ToolCall struct {
	ID           string
	Name         string
	Arguments    map[string]any
	RawArguments string
}

// ArgumentsJSON returns the serialized arguments, preferring the form the model emitted.
func (c ToolCall) ArgumentsJSON() string {
	if c.RawArguments != "" {
		return c.RawArguments
	}
	if c.Arguments == nil {
		return "{}"
	}
	b, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

type UserTurn struct {
	Text string
}

type AssistantTextTurn struct {
	Text string
}

type AssistantToolRequestTurn struct {
	Requests []ToolCall
}

type ToolResultTurn struct {
	InvocationID string
	ToolName     string
	ResultText   string
}

func (UserTurn) Kind() Kind                 { return KindUser }
func (AssistantTextTurn) Kind() Kind        { return KindAssistantText }
func (AssistantToolRequestTurn) Kind() Kind { return KindAssistantToolRequest }
func (ToolResultTurn) Kind() Kind           { return KindToolResult }

func (UserTurn) isTurn()                 {}
func (AssistantTextTurn) isTurn()        {}
func (AssistantToolRequestTurn) isTurn() {}
func (ToolResultTurn) isTurn()           {}
