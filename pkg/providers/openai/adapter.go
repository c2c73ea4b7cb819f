// Package openai talks to OpenAI-compatible chat-completion endpoints,
// including Azure OpenAI deployments.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harunnryd/weathermcp/pkg/conversation"
	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/llm"
	"github.com/harunnryd/weathermcp/pkg/resilience"
	"github.com/tidwall/gjson"
)

const (
	HostAzure  = "aoai"
	HostOpenAI = "openai"

	DefaultAzureAPIVersion = "2024-06-01"
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultMaxTokens       = 1000
)

// Config describes one chat-completion endpoint.
type Config struct {
	Host         string
	APIKey       string
	Model        string
	Deployment   string
	Endpoint     string
	CustomURL    string
	Resource     string
	APIVersion   string
	Organization string
	Project      string
	// Encoding selects how tool traffic is rendered: "structured" or "inline".
	Encoding string
	Timeout  time.Duration
}

type Adapter struct {
	cfg     Config
	encoder llm.TranscriptEncoder
	url     string
	Client  *http.Client
}

func NewAdapter(cfg Config) (*Adapter, error) {
	cfg.Host = strings.ToLower(strings.TrimSpace(cfg.Host))
	if cfg.Host == "" {
		cfg.Host = HostAzure
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errorsx.Newf(errorsx.ReasonConfig, "openai: api key is required for host %s", cfg.Host)
	}
	encoder, err := llm.EncoderFor(cfg.Encoding)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonConfig)
	}
	endpoint, err := resolveURL(cfg)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Adapter{
		cfg:     cfg,
		encoder: encoder,
		url:     endpoint,
		Client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (a *Adapter) Name() string { return a.cfg.Host }

// URL returns the resolved chat-completions endpoint.
func (a *Adapter) URL() string { return a.url }

func (a *Adapter) MapTools(tools []llm.Tool) (any, error) {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		if strings.TrimSpace(t.Name) == "" {
			return nil, errors.New("openai: tool without name")
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.ParametersSchema(),
			},
		})
	}
	return out, nil
}

func (a *Adapter) ToProviderFormat(ctx llm.Context) (any, error) {
	messages, err := a.encoder.Encode(ctx.System, ctx.Turns)
	if err != nil {
		return nil, err
	}
	maxTokens := ctx.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	req := map[string]any{
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	if a.cfg.Model != "" {
		req["model"] = a.cfg.Model
	}
	if len(ctx.Tools) > 0 {
		tools, err := a.MapTools(ctx.Tools)
		if err != nil {
			return nil, err
		}
		req["tools"] = tools
		req["tool_choice"] = "auto"
	}
	return req, nil
}

// FromProviderFormat accepts the raw response body ([]byte, json.RawMessage,
// string) or an already decoded map.
func (a *Adapter) FromProviderFormat(raw any) (llm.Response, error) {
	var body []byte
	switch v := raw.(type) {
	case []byte:
		body = v
	case json.RawMessage:
		body = v
	case string:
		body = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return llm.Response{}, fmt.Errorf("openai: encode response: %w", err)
		}
		body = b
	}
	if !gjson.ValidBytes(body) {
		return llm.Response{}, errors.New("openai: response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	choice := root.Get("choices.0")
	if !choice.Exists() {
		return llm.Response{}, errors.New("openai: response has no choices")
	}
	msg := choice.Get("message")
	resp := llm.Response{
		Text:         msg.Get("content").String(),
		FinishReason: choice.Get("finish_reason").String(),
		Usage: llm.Usage{
			PromptTokens:     int(root.Get("usage.prompt_tokens").Int()),
			CompletionTokens: int(root.Get("usage.completion_tokens").Int()),
			TotalTokens:      int(root.Get("usage.total_tokens").Int()),
		},
	}
	var decodeErr error
	msg.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		// Only function calls are tool requests; an absent type means function.
		if kind := call.Get("type").String(); kind != "" && kind != "function" {
			return true
		}
		fn := call.Get("function")
		rawArgs := fn.Get("arguments")
		argsText := rawArgs.String()
		if rawArgs.IsObject() {
			argsText = rawArgs.Raw
		}
		args, err := llm.DecodeArguments(argsText)
		if err != nil {
			decodeErr = fmt.Errorf("tool %s: %w", fn.Get("name").String(), err)
			return false
		}
		resp.ToolCalls = append(resp.ToolCalls, conversation.ToolCall{
			ID:           call.Get("id").String(),
			Name:         fn.Get("name").String(),
			Arguments:    args,
			RawArguments: strings.TrimSpace(argsText),
		})
		return true
	})
	if decodeErr != nil {
		return llm.Response{}, errorsx.Wrap(decodeErr, errorsx.ReasonLLMMalformedArgument)
	}
	return resp, nil
}

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	payload, err := a.ToProviderFormat(input)
	if err != nil {
		return llm.Response{}, a.fail(errorsx.ReasonLLMGenerate, 0, err)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return llm.Response{}, a.fail(errorsx.ReasonLLMGenerate, 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(b))
	if err != nil {
		return llm.Response{}, a.fail(errorsx.ReasonLLMGenerate, 0, err)
	}
	a.applyHeaders(req)
	resp, err := a.client().Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return llm.Response{}, a.fail(errorsx.ReasonLLMTimeout, 0, err)
		}
		return llm.Response{}, a.fail(errorsx.ReasonLLMGenerate, 0, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Response{}, a.fail(errorsx.ReasonLLMGenerate, resp.StatusCode, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return llm.Response{}, a.fail(errorsx.ReasonLLMRateLimit, resp.StatusCode,
			resilience.RateLimitError{Provider: a.Name(), Message: errorMessage(body)})
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return llm.Response{}, a.fail(errorsx.ReasonLLMAuth, resp.StatusCode, errors.New(errorMessage(body)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return llm.Response{}, a.fail(errorsx.ReasonLLMGenerate, resp.StatusCode, errors.New(errorMessage(body)))
	}
	out, err := a.FromProviderFormat(body)
	if err != nil {
		return llm.Response{}, a.fail(errorsx.ReasonLLMGenerate, resp.StatusCode, err)
	}
	return out, nil
}

func (a *Adapter) fail(reason errorsx.ReasonCode, status int, err error) error {
	return llm.NewInvocationError(a.Name(), reason, status, err)
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.Host == HostAzure {
		req.Header.Set("api-key", a.cfg.APIKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	if a.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", a.cfg.Organization)
	}
	if a.cfg.Project != "" {
		req.Header.Set("OpenAI-Project", a.cfg.Project)
	}
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

func resolveURL(cfg Config) (string, error) {
	if cfg.CustomURL != "" {
		if _, err := url.Parse(cfg.CustomURL); err != nil {
			return "", fmt.Errorf("openai: invalid custom_url: %w", err)
		}
		return cfg.CustomURL, nil
	}
	switch cfg.Host {
	case HostAzure:
		endpoint := strings.TrimRight(cfg.Endpoint, "/")
		if endpoint == "" {
			if cfg.Resource == "" {
				return "", errors.New("openai: aoai host needs endpoint, resource or custom_url")
			}
			endpoint = fmt.Sprintf("https://%s.openai.azure.com", cfg.Resource)
		}
		deployment := cfg.Deployment
		if deployment == "" {
			deployment = cfg.Model
		}
		if deployment == "" {
			return "", errors.New("openai: aoai host needs model_deployment_id")
		}
		version := cfg.APIVersion
		if version == "" {
			version = DefaultAzureAPIVersion
		}
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			endpoint, url.PathEscape(deployment), url.QueryEscape(version)), nil
	case HostOpenAI:
		base := strings.TrimRight(cfg.Endpoint, "/")
		if base == "" {
			base = defaultOpenAIBaseURL
		}
		if cfg.Model == "" {
			return "", errors.New("openai: openai host needs model_name")
		}
		return base + "/chat/completions", nil
	default:
		return "", fmt.Errorf("openai: unsupported host %q", cfg.Host)
	}
}

func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response body"
	}
	return text
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
