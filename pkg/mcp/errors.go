package mcp

import (
	"fmt"

	"github.com/harunnryd/weathermcp/pkg/errorsx"
)

// ConnectionError means the tool server could not be launched or initialized.
// It is fatal for the session.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp connect %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports a failed protocol exchange that is not a tool call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mcp %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ToolExecutionError reports a failed tools/call, including results the server
// flagged as errors.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// NewConnectionError wraps err as a ConnectionError tagged mcp_connect.
func NewConnectionError(path string, err error) error {
	return errorsx.Wrap(&ConnectionError{Path: path, Err: err}, errorsx.ReasonMCPConnect)
}

func NewTransportError(op string, err error) error {
	return errorsx.Wrap(&TransportError{Op: op, Err: err}, errorsx.ReasonMCPListTools)
}

// NewToolExecutionError wraps err as a ToolExecutionError tagged mcp_tool_call.
func NewToolExecutionError(tool string, err error) error {
	return errorsx.Wrap(&ToolExecutionError{Tool: tool, Err: err}, errorsx.ReasonMCPToolCall)
}
