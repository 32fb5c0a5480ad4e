package telephony

import "fmt"

// CallState is the state of a call or call leg as reported by the
// signaling stack.
type CallState int

const (
	StateIdle CallState = iota
	StateActive
	StateHolding
	StateDialing
	StateAlerting
	StateIncoming
	StateWaiting
	StateDisconnecting
	StateDisconnected
)

// String returns a human-readable representation of the state.
func (s CallState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateActive:
		return "Active"
	case StateHolding:
		return "Holding"
	case StateDialing:
		return "Dialing"
	case StateAlerting:
		return "Alerting"
	case StateIncoming:
		return "Incoming"
	case StateWaiting:
		return "Waiting"
	case StateDisconnecting:
		return "Disconnecting"
	case StateDisconnected:
		return "Disconnected"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// IsRinging reports whether the state is an unanswered inbound state.
func (s CallState) IsRinging() bool {
	return s == StateIncoming || s == StateWaiting
}

// IsDialing reports whether the state is an outbound setup state.
func (s CallState) IsDialing() bool {
	return s == StateDialing || s == StateAlerting
}

// IsAlive reports whether the call still exists from the user's point
// of view. Idle legs were never part of a call; disconnecting and
// disconnected legs are already gone.
func (s CallState) IsAlive() bool {
	switch s {
	case StateIdle, StateDisconnecting, StateDisconnected:
		return false
	default:
		return true
	}
}
