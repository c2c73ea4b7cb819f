package orchestrator

import (
	"fmt"

	"github.com/harunnryd/weathermcp/pkg/errorsx"
)

// LoopLimitExceededError is returned when the model keeps requesting tools past
// the configured number of rounds.
type LoopLimitExceededError struct {
	Limit int
}

func (e *LoopLimitExceededError) Error() string {
	return fmt.Sprintf("model requested tools for more than %d rounds", e.Limit)
}

func newLoopLimitError(limit int) error {
	return errorsx.Wrap(&LoopLimitExceededError{Limit: limit}, errorsx.ReasonLoopLimit)
}
