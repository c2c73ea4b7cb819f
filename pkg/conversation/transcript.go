package conversation

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
)

var (
	ErrPendingToolResults   = errors.New("transcript: tool results pending")
	ErrUnexpectedToolResult = errors.New("transcript: unexpected tool result")
	ErrEmptyToolRequest     = errors.New("transcript: tool request turn without requests")
	ErrInvalidInvocationID  = errors.New("transcript: invalid invocation id")
)

// Transcript is an append-only, strictly ordered list of turns.
// A tool request turn must be followed by one result per request, in request
// order, before anything else is appended.
type Transcript struct {
	mu      sync.RWMutex
	turns   []Turn
	pending []pendingCall
}

type pendingCall struct {
	id   string
	name string
}

func New() *Transcript {
	return &Transcript{}
}

// Append validates and appends a turn. On error the transcript is unchanged.
func (t *Transcript) Append(turn Turn) error {
	if turn == nil {
		return errors.New("transcript: nil turn")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch tt := turn.(type) {
	case UserTurn, AssistantTextTurn:
		if len(t.pending) > 0 {
			return fmt.Errorf("%w: %s", ErrPendingToolResults, t.pendingIDsLocked())
		}
	case AssistantToolRequestTurn:
		if len(t.pending) > 0 {
			return fmt.Errorf("%w: %s", ErrPendingToolResults, t.pendingIDsLocked())
		}
		if len(tt.Requests) == 0 {
			return ErrEmptyToolRequest
		}
		seen := make(map[string]struct{}, len(tt.Requests))
		pending := make([]pendingCall, 0, len(tt.Requests))
		requests := make([]ToolCall, 0, len(tt.Requests))
		for _, req := range tt.Requests {
			id := strings.TrimSpace(req.ID)
			if id == "" {
				return fmt.Errorf("%w: empty id for tool %s", ErrInvalidInvocationID, req.Name)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: duplicate id %s", ErrInvalidInvocationID, id)
			}
			seen[id] = struct{}{}
			pending = append(pending, pendingCall{id: id, name: req.Name})
			req.ID = id
			// Top-level argument maps are cloned; nested values stay shared.
			req.Arguments = maps.Clone(req.Arguments)
			requests = append(requests, req)
		}
		turn = AssistantToolRequestTurn{Requests: requests}
		t.pending = pending
	case ToolResultTurn:
		id := strings.TrimSpace(tt.InvocationID)
		if len(t.pending) == 0 {
			return fmt.Errorf("%w: %s", ErrUnexpectedToolResult, id)
		}
		if next := t.pending[0]; next.id != id {
			return fmt.Errorf("%w: got %s, expected %s", ErrUnexpectedToolResult, id, next.id)
		}
		tt.InvocationID = id
		turn = tt
		t.pending = t.pending[1:]
	default:
		return fmt.Errorf("transcript: unsupported turn %T", turn)
	}
	t.turns = append(t.turns, turn)
	return nil
}

// Ready reports whether the transcript can be sent to the model.
func (t *Transcript) Ready() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.pending) > 0 {
		return fmt.Errorf("%w: %s", ErrPendingToolResults, t.pendingIDsLocked())
	}
	return nil
}

// Pending returns the invocation ids still waiting for a result, in order.
func (t *Transcript) Pending() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.pending))
	for i, p := range t.pending {
		out[i] = p.id
	}
	return out
}

// Turns returns a copy of the turns.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Fork returns an independent copy. Appends to the fork do not affect t.
func (t *Transcript) Fork() *Transcript {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f := &Transcript{
		turns:   make([]Turn, len(t.turns)),
		pending: make([]pendingCall, len(t.pending)),
	}
	copy(f.turns, t.turns)
	copy(f.pending, t.pending)
	return f
}

func (t *Transcript) pendingIDsLocked() string {
	ids := make([]string, len(t.pending))
	for i, p := range t.pending {
		ids[i] = p.id
	}
	return strings.Join(ids, ",")
}
