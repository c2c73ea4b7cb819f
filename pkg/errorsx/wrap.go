package errorsx

import (
	"errors"
	"fmt"
)

// Reasoner is implemented by errors that carry their own reason code.
type Reasoner interface {
	ReasonCode() ReasonCode
}

// ReasonedError pairs an error with a reason code. Two ReasonedErrors match
// under errors.Is when their codes are equal, so a bare &ReasonedError{Reason: r}
// works as a target.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e *ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e *ReasonedError) Unwrap() error { return e.Err }

func (e *ReasonedError) ReasonCode() ReasonCode { return e.Reason }

func (e *ReasonedError) Is(target error) bool {
	t, ok := target.(*ReasonedError)
	return ok && t.Err == nil && t.Reason == e.Reason
}

// Wrap tags err with reason. The innermost code wins: an error that already
// carries one is returned as is.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	if _, ok := reasoner(err); ok {
		return err
	}
	return &ReasonedError{Err: err, Reason: reason}
}

func Newf(reason ReasonCode, format string, args ...any) error {
	return &ReasonedError{Err: fmt.Errorf(format, args...), Reason: reason}
}

// Reason returns the first reason code found in err's chain.
func Reason(err error) ReasonCode {
	if r, ok := reasoner(err); ok {
		return r.ReasonCode()
	}
	return ReasonUnknown
}

func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

// Describe renders err for operators: "[reason] message", or just the message
// when no code is attached.
func Describe(err error) string {
	switch reason := Reason(err); {
	case err == nil:
		return ""
	case reason == ReasonUnknown:
		return err.Error()
	default:
		return "[" + string(reason) + "] " + err.Error()
	}
}

func reasoner(err error) (Reasoner, bool) {
	var r Reasoner
	if err == nil || !errors.As(err, &r) {
		return nil, false
	}
	return r, true
}
