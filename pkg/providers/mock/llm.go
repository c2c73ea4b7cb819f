// Package mock provides a scripted model for tests and offline demos.
package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/weathermcp/pkg/conversation"
	"github.com/harunnryd/weathermcp/pkg/llm"
)

// Step is one scripted Generate outcome.
type Step struct {
	Response llm.Response
	Err      error
}

type LLMConfig struct {
	// ResponseText is returned once the script is exhausted.
	ResponseText string
	Script       []Step
	// Respond, when set, is consulted after the script and overrides ResponseText.
	Respond func(input llm.Context) (llm.Response, error)
}

type LLMAdapter struct {
	mu     sync.Mutex
	cfg    LLMConfig
	next   int
	inputs []llm.Context
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "mock response"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	a.mu.Lock()
	input.Turns = append([]conversation.Turn(nil), input.Turns...)
	a.inputs = append(a.inputs, input)
	var step *Step
	if a.next < len(a.cfg.Script) {
		s := a.cfg.Script[a.next]
		step = &s
		a.next++
	}
	respond := a.cfg.Respond
	a.mu.Unlock()

	if step != nil {
		return step.Response, step.Err
	}
	if respond != nil {
		return respond(input)
	}
	return llm.Response{Text: a.cfg.ResponseText}, nil
}

// Calls returns the number of Generate invocations.
func (a *LLMAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inputs)
}

// Inputs returns the contexts passed to Generate, in call order.
func (a *LLMAdapter) Inputs() []llm.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Context, len(a.inputs))
	copy(out, a.inputs)
	return out
}

func (a *LLMAdapter) MapTools(tools []llm.Tool) (any, error) {
	return llm.ToolNames(tools), nil
}

func (a *LLMAdapter) ToProviderFormat(ctx llm.Context) (any, error) {
	return ctx, nil
}

func (a *LLMAdapter) FromProviderFormat(raw any) (llm.Response, error) {
	if resp, ok := raw.(llm.Response); ok {
		return resp, nil
	}
	return llm.Response{Text: a.cfg.ResponseText}, nil
}
