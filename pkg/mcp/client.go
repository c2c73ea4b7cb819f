// Package mcp connects to a tool server over the Model Context Protocol and
// exposes its tools to the orchestrator.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/weathermcp/pkg/llm"
	"github.com/harunnryd/weathermcp/pkg/logging"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var ErrSessionClosed = errors.New("mcp: session closed")

type Options struct {
	Interpreters Interpreters
	// Env is appended to the parent environment of the child process.
	Env []string
	// Stderr receives the child's stderr; nil means os.Stderr.
	Stderr  io.Writer
	Name    string
	Version string
	Logger  *slog.Logger
}

// Result is the consumed outcome of one tool invocation.
type Result struct {
	ToolName string
	Text     string
	IsError  bool
	// Parts is the number of content parts the server returned.
	Parts int
}

// Session is a live connection to one tool server.
type Session struct {
	session *mcpsdk.ClientSession
	logger  *slog.Logger
	closed  atomic.Bool
	once    sync.Once
	err     error
}

// Connect launches the server described by desc and completes the handshake.
func Connect(ctx context.Context, desc LaunchDescriptor, opts Options) (*Session, error) {
	cmd, err := desc.Command(opts.Interpreters)
	if err != nil {
		return nil, NewConnectionError(desc.Path, err)
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	s, err := connect(ctx, &mcpsdk.CommandTransport{Command: cmd}, opts)
	if err != nil {
		return nil, NewConnectionError(desc.Path, err)
	}
	s.logger.Info("connected to tool server", slog.String("path", desc.Path), slog.String("kind", string(desc.Kind)))
	return s, nil
}

// ConnectTransport completes the handshake over an existing transport.
func ConnectTransport(ctx context.Context, transport mcpsdk.Transport, opts Options) (*Session, error) {
	s, err := connect(ctx, transport, opts)
	if err != nil {
		return nil, NewConnectionError(fmt.Sprintf("%T", transport), err)
	}
	return s, nil
}

func connect(ctx context.Context, transport mcpsdk.Transport, opts Options) (*Session, error) {
	name := opts.Name
	if name == "" {
		name = "weathermcp-client"
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: name, Version: version}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, err
	}
	return &Session{
		session: session,
		logger:  logging.NewComponentLogger(opts.Logger, "mcp"),
	}, nil
}

// ListTools asks the server for its tools on every call.
func (s *Session) ListTools(ctx context.Context) ([]llm.Tool, error) {
	if s.closed.Load() {
		return nil, NewTransportError("tools/list", ErrSessionClosed)
	}
	var tools []llm.Tool
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, NewTransportError("tools/list", err)
		}
		tools = append(tools, toTool(tool))
	}
	s.logger.Debug("listed tools", slog.Any("tools", llm.ToolNames(tools)))
	return tools, nil
}

// Invoke performs one tools/call. Only the first text part is kept.
func (s *Session) Invoke(ctx context.Context, name string, args map[string]any) (Result, error) {
	if s.closed.Load() {
		return Result{}, NewToolExecutionError(name, ErrSessionClosed)
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := s.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return Result{}, NewToolExecutionError(name, err)
	}
	out := toResult(name, res)
	if out.IsError {
		msg := out.Text
		if msg == "" {
			msg = "tool reported an error"
		}
		return out, NewToolExecutionError(name, errors.New(msg))
	}
	return out, nil
}

// Close ends the session and stops the server process. Safe to call twice.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		s.closed.Store(true)
		s.err = s.session.Close()
		s.logger.Info("tool server session closed")
	})
	return s.err
}

func toTool(tool *mcpsdk.Tool) llm.Tool {
	if tool == nil {
		return llm.Tool{}
	}
	out := llm.Tool{Name: tool.Name, Description: tool.Description}
	if tool.InputSchema != nil {
		if raw, err := json.Marshal(tool.InputSchema); err == nil {
			out.Schema = raw
		}
	}
	return out
}

func toResult(name string, res *mcpsdk.CallToolResult) Result {
	out := Result{ToolName: name}
	if res == nil {
		return out
	}
	out.IsError = res.IsError
	out.Parts = len(res.Content)
	for _, c := range res.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			out.Text = text.Text
			break
		}
	}
	return out
}
