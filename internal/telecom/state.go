package telecom

import "fmt"

// ConnectionState represents the externally visible lifecycle of a connection.
type ConnectionState int

const (
	// StateInitializing is the state of a freshly created connection that has
	// not yet been bound to a telephony leg.
	StateInitializing ConnectionState = iota

	// StateInitialized means the connection is bound and ready but has no
	// call activity yet.
	StateInitialized

	// StateDialing is an outbound connection waiting for the far end.
	StateDialing

	// StateRinging is an inbound connection awaiting answer.
	StateRinging

	// StateActive is a connected call with media flowing.
	StateActive

	// StateOnHold is a connected call placed on hold.
	StateOnHold

	// StateDisconnected means the call ended; a disconnect cause is available.
	StateDisconnected

	// StateDestroyed is terminal. A destroyed connection never changes again.
	StateDestroyed
)

// String returns a human-readable representation of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateInitialized:
		return "Initialized"
	case StateDialing:
		return "Dialing"
	case StateRinging:
		return "Ringing"
	case StateActive:
		return "Active"
	case StateOnHold:
		return "OnHold"
	case StateDisconnected:
		return "Disconnected"
	case StateDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// IsTerminal returns true once the connection can no longer change state.
func (s ConnectionState) IsTerminal() bool {
	return s == StateDestroyed
}

// validTransitions defines the legal state machine edges.
// Any live state may jump straight to Disconnected (network races, remote
// hangup during setup), and Disconnected only ever moves to Destroyed.
var validTransitions = map[ConnectionState][]ConnectionState{
	StateInitializing: {StateInitialized, StateDisconnected},
	StateInitialized:  {StateDialing, StateRinging, StateActive, StateOnHold, StateDisconnected},
	StateDialing:      {StateRinging, StateActive, StateOnHold, StateDisconnected},
	StateRinging:      {StateDialing, StateActive, StateOnHold, StateDisconnected},
	StateActive:       {StateDialing, StateRinging, StateOnHold, StateDisconnected},
	StateOnHold:       {StateDialing, StateRinging, StateActive, StateDisconnected},
	StateDisconnected: {StateDestroyed},
	StateDestroyed:    {},
}

// CanTransitionTo checks if a transition from the current state to the
// target state is legal.
func (s ConnectionState) CanTransitionTo(target ConnectionState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Capability is a bitset describing what call controls a connection
// currently supports.
type Capability uint32

const (
	// CapabilityMuteAudio indicates the user may mute the connection's audio.
	CapabilityMuteAudio Capability = 1 << iota

	// CapabilitySupportHold indicates the connection supports being held.
	CapabilitySupportHold

	// CapabilityHold indicates the hold control is currently usable.
	CapabilityHold
)

// Has reports whether all bits of c are set.
func (c Capability) Has(flag Capability) bool {
	return c&flag == flag
}

// String renders the set capabilities for logging.
func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	out := ""
	add := func(name string) {
		if out != "" {
			out += "|"
		}
		out += name
	}
	if c.Has(CapabilityMuteAudio) {
		add("MuteAudio")
	}
	if c.Has(CapabilitySupportHold) {
		add("SupportHold")
	}
	if c.Has(CapabilityHold) {
		add("Hold")
	}
	return out
}

// Presentation controls whether caller identity is shown to the user.
type Presentation int

const (
	PresentationAllowed Presentation = iota + 1
	PresentationRestricted
	PresentationUnknown
)

// String returns a human-readable representation of the presentation.
func (p Presentation) String() string {
	switch p {
	case PresentationAllowed:
		return "Allowed"
	case PresentationRestricted:
		return "Restricted"
	case PresentationUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// URISchemeSIP is the scheme tag prefixed to addresses when building handles.
const URISchemeSIP = "sip"

// BuildHandle forms the URI handle for an address. A missing address is
// normalized to the empty string rather than rejected.
func BuildHandle(address string) string {
	return URISchemeSIP + ":" + address
}
