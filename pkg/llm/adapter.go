package llm

import (
	"context"

	"github.com/harunnryd/weathermcp/pkg/conversation"
)

// Context is everything a provider needs for one inference call.
type Context struct {
	System    string
	Turns     []conversation.Turn
	Tools     []Tool
	MaxTokens int
}

// Usage counts tokens reported by the provider. Providers that report nothing
// leave it zero.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Response is either final text or a batch of tool requests. When ToolCalls is
// non-empty, Text holds any commentary the model produced alongside them.
type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
	ToolCalls    []conversation.ToolCall
}

func (r Response) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// ToolNames lists the requested tools in call order.
func (r Response) ToolNames() []string {
	names := make([]string, len(r.ToolCalls))
	for i, c := range r.ToolCalls {
		names[i] = c.Name
	}
	return names
}

// Generator performs one inference call.
type Generator interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}

// Codec converts between llm types and a provider's wire payloads.
type Codec interface {
	MapTools(tools []Tool) (providerTools any, err error)
	ToProviderFormat(ctx Context) (any, error)
	FromProviderFormat(raw any) (Response, error)
}

// LLMAdapter is a provider: a Generator together with its Codec.
type LLMAdapter interface {
	Generator
	Codec
}
