package weathermcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/weathermcp/pkg/llm"
	"github.com/harunnryd/weathermcp/pkg/providers/mock"
	"github.com/harunnryd/weathermcp/pkg/providers/openai"
)

type LLMFactory func(cfg Config, profile Profile) (llm.LLMAdapter, error)

// ProviderRegistry maps a profile host to the adapter that serves it.
type ProviderRegistry struct {
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{llm: make(map[string]LLMFactory)}
}

// DefaultProviders registers the built-in hosts: aoai, openai and mock.
func DefaultProviders() *ProviderRegistry {
	r := NewProviderRegistry()
	chat := func(cfg Config, profile Profile) (llm.LLMAdapter, error) {
		return openai.NewAdapter(profile.AdapterConfig(time.Duration(cfg.LLM.TimeoutMS) * time.Millisecond))
	}
	r.RegisterLLM(openai.HostAzure, chat)
	r.RegisterLLM(openai.HostOpenAI, chat)
	r.RegisterLLM("mock", func(cfg Config, profile Profile) (llm.LLMAdapter, error) {
		text := profile.ModelName
		if text == "" {
			text = "mock response"
		}
		return mock.NewLLMAdapter(mock.LLMConfig{ResponseText: text}), nil
	})
	return r
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildLLM(host string, cfg Config, profile Profile) (llm.LLMAdapter, error) {
	fn := r.llm[strings.ToLower(strings.TrimSpace(host))]
	if fn == nil {
		return nil, configError("llm provider not registered: %s", host)
	}
	adapter, err := fn(cfg, profile)
	if err != nil {
		return nil, fmt.Errorf("build llm %s (profile %s): %w", host, profile.Name, err)
	}
	return adapter, nil
}
