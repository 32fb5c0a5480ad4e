package telecom

import "testing"

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateInitializing, "Initializing"},
		{StateInitialized, "Initialized"},
		{StateDialing, "Dialing"},
		{StateRinging, "Ringing"},
		{StateActive, "Active"},
		{StateOnHold, "OnHold"},
		{StateDisconnected, "Disconnected"},
		{StateDestroyed, "Destroyed"},
		{ConnectionState(99), "Unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from ConnectionState
		to   ConnectionState
		want bool
	}{
		{"init to initialized", StateInitializing, StateInitialized, true},
		{"init straight to active", StateInitializing, StateActive, false},
		{"dialing to active", StateDialing, StateActive, true},
		{"ringing to active", StateRinging, StateActive, true},
		{"active to hold", StateActive, StateOnHold, true},
		{"hold to active", StateOnHold, StateActive, true},
		{"any live to disconnected", StateRinging, StateDisconnected, true},
		{"disconnected to destroyed", StateDisconnected, StateDestroyed, true},
		{"disconnected back to active", StateDisconnected, StateActive, false},
		{"destroyed is terminal", StateDestroyed, StateDisconnected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%v -> %v = %t, want %t", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	if StateDisconnected.IsTerminal() {
		t.Error("Disconnected should not be terminal")
	}
	if !StateDestroyed.IsTerminal() {
		t.Error("Destroyed should be terminal")
	}
}

func TestCapabilityString(t *testing.T) {
	tests := []struct {
		caps Capability
		want string
	}{
		{0, "none"},
		{CapabilityMuteAudio, "MuteAudio"},
		{CapabilityMuteAudio | CapabilitySupportHold, "MuteAudio|SupportHold"},
		{CapabilityMuteAudio | CapabilitySupportHold | CapabilityHold, "MuteAudio|SupportHold|Hold"},
	}

	for _, tt := range tests {
		if got := tt.caps.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCapabilityHas(t *testing.T) {
	caps := CapabilityMuteAudio | CapabilitySupportHold
	if !caps.Has(CapabilityMuteAudio) {
		t.Error("Has(MuteAudio) = false")
	}
	if caps.Has(CapabilityHold) {
		t.Error("Has(Hold) = true for a set without it")
	}
	if !caps.Has(CapabilityMuteAudio | CapabilitySupportHold) {
		t.Error("Has(combined) = false when all bits set")
	}
}

func TestBuildHandle(t *testing.T) {
	if got := BuildHandle("alice@example.com"); got != "sip:alice@example.com" {
		t.Errorf("BuildHandle() = %q, want %q", got, "sip:alice@example.com")
	}
	if got := BuildHandle(""); got != "sip:" {
		t.Errorf("BuildHandle(\"\") = %q, want %q", got, "sip:")
	}
}
