package llm

import (
	"fmt"
	"strings"

	"github.com/harunnryd/weathermcp/pkg/conversation"
)

const (
	EncodingStructured = "structured"
	EncodingInline     = "inline"
)

// TranscriptEncoder turns a transcript into chat-completion messages.
// Providers with native tool-role support use the structured encoder; others
// get tool traffic folded into plain assistant/user content.
type TranscriptEncoder interface {
	Name() string
	Encode(system string, turns []conversation.Turn) ([]map[string]any, error)
}

// EncoderFor resolves an encoder by name. Empty selects the structured encoder.
func EncoderFor(name string) (TranscriptEncoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingStructured:
		return StructuredEncoder{}, nil
	case EncodingInline:
		return InlineEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported transcript encoding: %s", name)
	}
}

type StructuredEncoder struct{}

func (StructuredEncoder) Name() string { return EncodingStructured }

func (StructuredEncoder) Encode(system string, turns []conversation.Turn) ([]map[string]any, error) {
	out := systemMessages(system, len(turns))
	for _, turn := range turns {
		switch t := turn.(type) {
		case conversation.UserTurn:
			out = append(out, map[string]any{"role": "user", "content": t.Text})
		case conversation.AssistantTextTurn:
			out = append(out, map[string]any{"role": "assistant", "content": t.Text})
		case conversation.AssistantToolRequestTurn:
			calls := make([]map[string]any, 0, len(t.Requests))
			for _, req := range t.Requests {
				calls = append(calls, map[string]any{
					"id":   req.ID,
					"type": "function",
					"function": map[string]any{
						"name":      req.Name,
						"arguments": req.ArgumentsJSON(),
					},
				})
			}
			out = append(out, map[string]any{"role": "assistant", "content": nil, "tool_calls": calls})
		case conversation.ToolResultTurn:
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": t.InvocationID,
				"name":         t.ToolName,
				"content":      t.ResultText,
			})
		default:
			return nil, fmt.Errorf("unsupported turn %T", turn)
		}
	}
	return out, nil
}

type InlineEncoder struct{}

func (InlineEncoder) Name() string { return EncodingInline }

func (InlineEncoder) Encode(system string, turns []conversation.Turn) ([]map[string]any, error) {
	out := systemMessages(system, len(turns))
	for _, turn := range turns {
		switch t := turn.(type) {
		case conversation.UserTurn:
			out = append(out, map[string]any{"role": "user", "content": t.Text})
		case conversation.AssistantTextTurn:
			out = append(out, map[string]any{"role": "assistant", "content": t.Text})
		case conversation.AssistantToolRequestTurn:
			lines := make([]string, 0, len(t.Requests))
			for _, req := range t.Requests {
				lines = append(lines, fmt.Sprintf("[Calling tool %s with args %s] (call %s)", req.Name, req.ArgumentsJSON(), req.ID))
			}
			out = append(out, map[string]any{"role": "assistant", "content": strings.Join(lines, "\n")})
		case conversation.ToolResultTurn:
			out = append(out, map[string]any{
				"role":    "user",
				"content": fmt.Sprintf("Result of tool %s (call %s):\n%s", t.ToolName, t.InvocationID, t.ResultText),
			})
		default:
			return nil, fmt.Errorf("unsupported turn %T", turn)
		}
	}
	return out, nil
}

func systemMessages(system string, capacity int) []map[string]any {
	out := make([]map[string]any, 0, capacity+1)
	if s := strings.TrimSpace(system); s != "" {
		out = append(out, map[string]any{"role": "system", "content": s})
	}
	return out
}
