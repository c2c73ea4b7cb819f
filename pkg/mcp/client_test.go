package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/logging"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/goleak"
)

func TestParseLaunchPath(t *testing.T) {
	cases := map[string]LaunchKind{
		"weather.py":          KindPython,
		"/srv/tools/index.JS": KindNode,
		"./bin/weather":       KindNative,
	}
	for path, want := range cases {
		desc, err := ParseLaunchPath(path)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", path, err)
		}
		if desc.Kind != want {
			t.Fatalf("%s: expected %s, got %s", path, want, desc.Kind)
		}
	}
	for _, bad := range []string{"server.sh", "server.exe", "  "} {
		_, err := ParseLaunchPath(bad)
		var cerr *ConnectionError
		if !errors.As(err, &cerr) {
			t.Fatalf("%q: expected ConnectionError, got %v", bad, err)
		}
		if !errorsx.HasReason(err, errorsx.ReasonMCPConnect) {
			t.Fatalf("%q: expected mcp_connect reason", bad)
		}
	}
}

func TestLaunchCommand(t *testing.T) {
	desc, _ := ParseLaunchPath("weather.py")
	cmd, err := desc.Command(Interpreters{Python: "python3"})
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if cmd.Args[0] != "python3" {
		t.Fatalf("expected python3 interpreter, got %v", cmd.Args)
	}
	if cmd.Args[len(cmd.Args)-1] != "weather.py" {
		t.Fatalf("expected script as last arg, got %v", cmd.Args)
	}
}

func TestConnectMissingExecutable(t *testing.T) {
	desc := LaunchDescriptor{Kind: KindNative, Path: filepath.Join(t.TempDir(), "missing-server")}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Connect(ctx, desc, Options{Logger: logging.Discard()})
	var cerr *ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestSessionListAndInvoke(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, cleanup := newTestSession(t)
	defer cleanup()

	ctx := context.Background()
	tools, err := s.ListTools(ctx)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	var schema map[string]any
	if err := json.Unmarshal(tools[0].ParametersSchema(), &schema); err != nil || schema["type"] != "object" {
		t.Fatalf("expected object schema, got %s (%v)", tools[0].Schema, err)
	}

	res, err := s.Invoke(ctx, "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Text != "echo:hi" || res.Parts != 2 {
		t.Fatalf("expected first text part only, got %+v", res)
	}
}

func TestListToolsIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, cleanup := newTestSession(t)
	defer cleanup()

	ctx := context.Background()
	first, err := s.ListTools(ctx)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	second, err := s.ListTools(ctx)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("descriptor sets differ:\n%+v\n%+v", first, second)
	}
}

func TestSessionInvokeFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, cleanup := newTestSession(t)
	defer cleanup()

	ctx := context.Background()
	_, err := s.Invoke(ctx, "missing", nil)
	var terr *ToolExecutionError
	if !errors.As(err, &terr) || terr.Tool != "missing" {
		t.Fatalf("expected ToolExecutionError for unknown tool, got %v", err)
	}

	_, err = s.Invoke(ctx, "broken", nil)
	if !errors.As(err, &terr) || !errorsx.HasReason(err, errorsx.ReasonMCPToolCall) {
		t.Fatalf("expected ToolExecutionError for error result, got %v", err)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, cleanup := newTestSession(t)
	defer cleanup()

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := s.ListTools(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected closed session error, got %v", err)
	}
	if _, err := s.Invoke(context.Background(), "echo", nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected closed session error, got %v", err)
	}
}

func newTestSession(t *testing.T) (*Session, func()) {
	t.Helper()
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "test-server", Version: "test"}, nil)
	server.AddTool(&mcpsdk.Tool{
		Name:        "echo",
		Description: "Echo input",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
		},
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var payload map[string]string
		if err := json.Unmarshal(req.Params.Arguments, &payload); err != nil {
			return nil, err
		}
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: "echo:" + payload["text"]},
			&mcpsdk.TextContent{Text: "ignored"},
		}}, nil
	})
	server.AddTool(&mcpsdk.Tool{
		Name:        "broken",
		Description: "Always fails",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		return &mcpsdk.CallToolResult{
			IsError: true,
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "upstream down"}},
		}, nil
	})

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	ctx := context.Background()
	ss, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	s, err := ConnectTransport(ctx, clientTransport, Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	return s, func() {
		_ = s.Close()
		_ = ss.Close()
		_ = ss.Wait()
	}
}
