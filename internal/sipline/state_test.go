package sipline

import "testing"

func TestDialogStateTransitions(t *testing.T) {
	tests := []struct {
		name string
		from DialogState
		to   DialogState
		want bool
	}{
		{"initial to early", DialogInitial, DialogEarly, true},
		{"initial straight to confirmed", DialogInitial, DialogConfirmed, false},
		{"early to waiting ack", DialogEarly, DialogWaitingACK, true},
		{"early to confirmed", DialogEarly, DialogConfirmed, true},
		{"waiting ack to confirmed", DialogWaitingACK, DialogConfirmed, true},
		{"confirmed to terminating", DialogConfirmed, DialogTerminating, true},
		{"confirmed to terminated", DialogConfirmed, DialogTerminated, true},
		{"any early to terminated", DialogEarly, DialogTerminated, true},
		{"terminated is final", DialogTerminated, DialogEarly, false},
		{"no going back", DialogConfirmed, DialogEarly, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%v -> %v = %t, want %t", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestDialogStateString(t *testing.T) {
	tests := []struct {
		state DialogState
		want  string
	}{
		{DialogInitial, "Initial"},
		{DialogEarly, "Early"},
		{DialogWaitingACK, "WaitingACK"},
		{DialogConfirmed, "Confirmed"},
		{DialogTerminating, "Terminating"},
		{DialogTerminated, "Terminated"},
		{DialogState(42), "Unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDialogStateIsTerminal(t *testing.T) {
	if DialogTerminating.IsTerminal() {
		t.Error("Terminating should not be terminal")
	}
	if !DialogTerminated.IsTerminal() {
		t.Error("Terminated should be terminal")
	}
}

func TestTerminateReasonString(t *testing.T) {
	tests := []struct {
		reason TerminateReason
		want   string
	}{
		{ReasonLocalBYE, "LocalBYE"},
		{ReasonRemoteBYE, "RemoteBYE"},
		{ReasonCancel, "Cancel"},
		{ReasonRejected, "Rejected"},
		{ReasonTimeout, "Timeout"},
		{ReasonError, "Error"},
		{TerminateReason(42), "Unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDirectionString(t *testing.T) {
	if got := DirectionInbound.String(); got != "inbound" {
		t.Errorf("DirectionInbound = %q", got)
	}
	if got := DirectionOutbound.String(); got != "outbound" {
		t.Errorf("DirectionOutbound = %q", got)
	}
}
