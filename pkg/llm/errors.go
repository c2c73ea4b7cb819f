package llm

import (
	"fmt"

	"github.com/harunnryd/weathermcp/pkg/errorsx"
)

// InvocationError reports a failed model call. It is recoverable: the query
// fails, the session continues.
type InvocationError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *InvocationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm %s: %v", e.Provider, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// NewInvocationError wraps err as an InvocationError tagged with reason.
func NewInvocationError(provider string, reason errorsx.ReasonCode, statusCode int, err error) error {
	return errorsx.Wrap(&InvocationError{Provider: provider, StatusCode: statusCode, Err: err}, reason)
}
