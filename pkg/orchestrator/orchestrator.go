// Package orchestrator drives one user query through model calls and tool
// rounds until the model produces a final answer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/weathermcp/pkg/conversation"
	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/llm"
	"github.com/harunnryd/weathermcp/pkg/logging"
	"github.com/harunnryd/weathermcp/pkg/mcp"
	"github.com/harunnryd/weathermcp/pkg/metrics"
	"github.com/harunnryd/weathermcp/pkg/redact"
)

// ToolProvider lists and invokes tools. *mcp.Session satisfies it.
type ToolProvider interface {
	ListTools(ctx context.Context) ([]llm.Tool, error)
	Invoke(ctx context.Context, name string, args map[string]any) (mcp.Result, error)
}

type Result struct {
	Answer string
	// Turns holds the turns produced by this query only.
	Turns  []conversation.Turn
	Rounds int
	Usage  llm.Usage
}

type Orchestrator struct {
	adapter llm.LLMAdapter
	tools   ToolProvider
	cfg     Config
	obs     metrics.Observer
	log     *slog.Logger

	mu      sync.Mutex
	history *conversation.Transcript
	cached  []llm.Tool
	listed  bool
}

func New(adapter llm.LLMAdapter, tools ToolProvider, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	return &Orchestrator{
		adapter: adapter,
		tools:   tools,
		cfg:     cfg,
		obs:     metrics.NoopObserver{},
		log:     logging.NewComponentLogger(nil, "orchestrator"),
		history: conversation.New(),
	}
}

func (o *Orchestrator) SetObserver(obs metrics.Observer) {
	o.obs = metrics.OrNoop(obs)
	if setter, ok := o.adapter.(interface{ SetObserver(metrics.Observer) }); ok {
		setter.SetObserver(obs)
	}
}

func (o *Orchestrator) SetLogger(log *slog.Logger) {
	o.log = logging.NewComponentLogger(log, "orchestrator")
}

func (o *Orchestrator) SessionID() string { return o.cfg.SessionID }

// Config returns the effective configuration, defaults applied.
func (o *Orchestrator) Config() Config { return o.cfg }

// History returns the committed session transcript. It is always empty under
// the per-query memory policy.
func (o *Orchestrator) History() []conversation.Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.history.Turns()
}

// RefreshTools re-lists the server tools and replaces the cached set.
func (o *Orchestrator) RefreshTools(ctx context.Context) ([]llm.Tool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.refreshLocked(ctx)
}

func (o *Orchestrator) refreshLocked(ctx context.Context) ([]llm.Tool, error) {
	tools, err := o.tools.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	o.cached = tools
	o.listed = true
	o.record(metrics.EventToolsListed, "", map[string]any{"tools": llm.ToolNames(tools)})
	return tools, nil
}

func (o *Orchestrator) toolsLocked(ctx context.Context) ([]llm.Tool, error) {
	if o.cfg.RefreshTools || !o.listed {
		return o.refreshLocked(ctx)
	}
	return o.cached, nil
}

// Process runs one query to completion. Queries are serialized. On error no
// turn of the failed query reaches the session history.
func (o *Orchestrator) Process(ctx context.Context, query string) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	queryID := uuid.NewString()
	started := time.Now()
	o.record(metrics.EventQueryStart, queryID, map[string]any{"query": redact.Text(query)})

	res, segment, err := o.run(ctx, queryID, query)
	if err != nil {
		o.record(metrics.EventQueryFailed, queryID, map[string]any{
			"reason":      string(errorsx.Reason(err)),
			"error":       redact.Text(err.Error()),
			"duration_ms": time.Since(started).Milliseconds(),
		})
		o.log.Warn("query failed", slog.String("query_id", queryID), slog.String("reason_code", string(errorsx.Reason(err))), slog.Any("error", err))
		return Result{}, err
	}
	if o.cfg.Memory == MemorySession {
		o.history = segment
	}
	o.record(metrics.EventQueryDone, queryID, map[string]any{
		"rounds":      res.Rounds,
		"tokens":      res.Usage.TotalTokens,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, queryID, query string) (Result, *conversation.Transcript, error) {
	segment := conversation.New()
	if o.cfg.Memory == MemorySession {
		segment = o.history.Fork()
	}
	base := segment.Len()
	if err := segment.Append(conversation.UserTurn{Text: query}); err != nil {
		return Result{}, nil, errorsx.Wrap(err, errorsx.ReasonTranscript)
	}

	tools, err := o.toolsLocked(ctx)
	if err != nil {
		return Result{}, nil, err
	}

	var (
		fragments []string
		usage     llm.Usage
		rounds    int
	)
	for {
		if err := segment.Ready(); err != nil {
			return Result{}, nil, errorsx.Wrap(err, errorsx.ReasonTranscript)
		}
		resp, err := o.infer(ctx, queryID, segment, tools)
		if err != nil {
			return Result{}, nil, err
		}
		usage = usage.Add(resp.Usage)

		if !resp.HasToolCalls() {
			if err := segment.Append(conversation.AssistantTextTurn{Text: resp.Text}); err != nil {
				return Result{}, nil, errorsx.Wrap(err, errorsx.ReasonTranscript)
			}
			fragments = appendFragment(fragments, resp.Text)
			return Result{
				Answer: strings.Join(fragments, "\n"),
				Turns:  segment.Turns()[base:],
				Rounds: rounds,
				Usage:  usage,
			}, segment, nil
		}

		if rounds >= o.cfg.MaxRounds {
			return Result{}, nil, newLoopLimitError(o.cfg.MaxRounds)
		}
		rounds++

		calls, err := o.normalizeCalls(resp.ToolCalls)
		if err != nil {
			return Result{}, nil, err
		}
		fragments = appendFragment(fragments, resp.Text)
		if err := segment.Append(conversation.AssistantToolRequestTurn{Requests: calls}); err != nil {
			return Result{}, nil, errorsx.Wrap(err, errorsx.ReasonTranscript)
		}
		for _, call := range calls {
			text, err := o.invoke(ctx, queryID, call)
			if err != nil {
				return Result{}, nil, err
			}
			if err := segment.Append(conversation.ToolResultTurn{
				InvocationID: call.ID,
				ToolName:     call.Name,
				ResultText:   text,
			}); err != nil {
				return Result{}, nil, errorsx.Wrap(err, errorsx.ReasonTranscript)
			}
			fragments = append(fragments, fmt.Sprintf("[Calling tool %s with args %s]", call.Name, call.ArgumentsJSON()))
		}
	}
}

func (o *Orchestrator) infer(ctx context.Context, queryID string, segment *conversation.Transcript, tools []llm.Tool) (llm.Response, error) {
	input := llm.Context{
		System:    o.cfg.System,
		Turns:     segment.Turns(),
		Tools:     tools,
		MaxTokens: o.cfg.MaxTokens,
	}
	o.record(metrics.EventModelRequest, queryID, map[string]any{"turns": len(input.Turns), "tools": len(tools)})

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
	defer cancel()
	started := time.Now()
	resp, err := o.adapter.Generate(callCtx, input)
	if err != nil {
		return llm.Response{}, o.invocationError(err)
	}
	o.record(metrics.EventModelResponse, queryID, map[string]any{
		"tool_calls":    len(resp.ToolCalls),
		"tool_names":    strings.Join(resp.ToolNames(), ","),
		"finish_reason": resp.FinishReason,
		"tokens":        resp.Usage.TotalTokens,
		"text":          redact.Text(resp.Text),
		"duration_ms":   time.Since(started).Milliseconds(),
	})
	return resp, nil
}

func (o *Orchestrator) invocationError(err error) error {
	var ierr *llm.InvocationError
	if errors.As(err, &ierr) {
		return err
	}
	reason := errorsx.ReasonLLMGenerate
	if errors.Is(err, context.DeadlineExceeded) {
		reason = errorsx.ReasonLLMTimeout
	}
	return llm.NewInvocationError(o.adapter.Name(), reason, 0, err)
}

// normalizeCalls assigns ids where the model omitted or repeated them and
// decodes arguments the provider left serialized.
func (o *Orchestrator) normalizeCalls(in []conversation.ToolCall) ([]conversation.ToolCall, error) {
	out := make([]conversation.ToolCall, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, call := range in {
		id := strings.TrimSpace(call.ID)
		if _, dup := seen[id]; id == "" || dup {
			id = "call_" + uuid.NewString()
		}
		seen[id] = struct{}{}
		call.ID = id
		if call.Arguments == nil {
			args, err := llm.DecodeArguments(call.RawArguments)
			if err != nil {
				return nil, llm.NewInvocationError(o.adapter.Name(), errorsx.ReasonLLMMalformedArgument, 0,
					fmt.Errorf("tool %s: %w", call.Name, err))
			}
			call.Arguments = args
		}
		out = append(out, call)
	}
	return out, nil
}

func (o *Orchestrator) invoke(ctx context.Context, queryID string, call conversation.ToolCall) (string, error) {
	o.record(metrics.EventToolCall, queryID, map[string]any{
		"tool":    call.Name,
		"call_id": call.ID,
		"args":    redact.Text(call.ArgumentsJSON()),
	})
	o.log.Debug("invoking tool", slog.String("tool", call.Name), slog.String("call_id", call.ID))

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout)
	defer cancel()
	started := time.Now()
	res, err := o.tools.Invoke(callCtx, call.Name, call.Arguments)
	fields := map[string]any{
		"tool":        call.Name,
		"call_id":     call.ID,
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if err != nil {
		var terr *mcp.ToolExecutionError
		if !errors.As(err, &terr) {
			err = mcp.NewToolExecutionError(call.Name, err)
		}
		fields["status"] = "error"
		fields["error"] = redact.Text(err.Error())
		o.record(metrics.EventToolResult, queryID, fields)
		return "", err
	}
	fields["status"] = "ok"
	fields["chars"] = len(res.Text)
	o.record(metrics.EventToolResult, queryID, fields)
	return res.Text, nil
}

func (o *Orchestrator) record(name, queryID string, fields map[string]any) {
	tags := map[string]string{
		metrics.TagSessionID: o.cfg.SessionID,
		"component":          "orchestrator",
	}
	if queryID != "" {
		tags[metrics.TagQueryID] = queryID
	}
	if o.adapter != nil {
		tags[metrics.TagProvider] = o.adapter.Name()
	}
	if tool, ok := fields["tool"].(string); ok {
		tags[metrics.TagTool] = tool
	}
	o.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Tags:   tags,
		Fields: fields,
	})
}

func appendFragment(fragments []string, text string) []string {
	if strings.TrimSpace(text) == "" {
		return fragments
	}
	return append(fragments, text)
}
