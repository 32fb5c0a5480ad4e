package telephony

import (
	"errors"
	"fmt"
)

// ErrCallState is the sentinel for call-control operations attempted in a
// state where they do not apply. Callers are expected to treat it as
// recoverable: log it and carry on.
var ErrCallState = errors.New("invalid call state for operation")

// ErrNoDriver indicates the phone has no signaling driver attached.
var ErrNoDriver = errors.New("no signaling driver attached")

// CallStateError carries the operation and the state that rejected it.
type CallStateError struct {
	Op    string
	State CallState
}

// Error implements the error interface.
func (e *CallStateError) Error() string {
	return fmt.Sprintf("%s not possible in state %s", e.Op, e.State)
}

// Unwrap allows errors.Is(err, ErrCallState).
func (e *CallStateError) Unwrap() error {
	return ErrCallState
}

func newCallStateError(op string, state CallState) *CallStateError {
	return &CallStateError{Op: op, State: state}
}
