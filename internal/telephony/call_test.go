package telephony

import (
	"errors"
	"sync"
	"testing"

	"github.com/sebas/linegate/internal/telecom"
)

// recordingDriver counts the driver calls the phone model forwards.
type recordingDriver struct {
	mu          sync.Mutex
	err         error
	hangupLegs  []*Leg
	hangupCalls []*Call
	accepts     int
	rejects     int
	switches    int
}

func (d *recordingDriver) HangupLeg(leg *Leg) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hangupLegs = append(d.hangupLegs, leg)
	return d.err
}

func (d *recordingDriver) HangupCall(call *Call) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hangupCalls = append(d.hangupCalls, call)
	return d.err
}

func (d *recordingDriver) SeparateLeg(leg *Leg) error { return d.err }

func (d *recordingDriver) AcceptCall(call *Call, videoMode int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accepts++
	return d.err
}

func (d *recordingDriver) RejectCall(call *Call) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejects++
	return d.err
}

func (d *recordingDriver) SwitchHoldingAndActive() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.switches++
	return d.err
}

func (d *recordingDriver) StartDTMF(digit rune) error    { return d.err }
func (d *recordingDriver) StopDTMF() error               { return d.err }
func (d *recordingDriver) SetEchoSuppression(bool) error { return d.err }

func TestCallStateDerivation(t *testing.T) {
	tests := []struct {
		name   string
		states []CallState
		want   CallState
	}{
		{"no legs", nil, StateIdle},
		{"single incoming", []CallState{StateIncoming}, StateIncoming},
		{"incoming beats active", []CallState{StateActive, StateIncoming}, StateIncoming},
		{"dialing beats active", []CallState{StateActive, StateDialing}, StateDialing},
		{"active beats holding", []CallState{StateHolding, StateActive}, StateActive},
		{"holding alone", []CallState{StateHolding}, StateHolding},
		{"disconnecting beats disconnected", []CallState{StateDisconnected, StateDisconnecting}, StateDisconnecting},
		{"all disconnected", []CallState{StateDisconnected, StateDisconnected}, StateDisconnected},
		{"all idle", []CallState{StateIdle}, StateIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phone := NewPhone(&recordingDriver{})
			call := phone.NewCall()
			for _, s := range tt.states {
				leg := call.NewLeg()
				leg.SetState(s)
			}
			if got := call.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsMultiparty(t *testing.T) {
	phone := NewPhone(&recordingDriver{})
	call := phone.NewCall()

	a := call.NewLeg()
	a.SetState(StateActive)
	if call.IsMultiparty() {
		t.Error("single live leg reported multiparty")
	}

	b := call.NewLeg()
	b.SetState(StateActive)
	if !call.IsMultiparty() {
		t.Error("two live legs not reported multiparty")
	}

	b.SetState(StateDisconnected)
	if call.IsMultiparty() {
		t.Error("dead leg still counted toward multiparty")
	}
}

func TestEarliestLeg(t *testing.T) {
	phone := NewPhone(&recordingDriver{})
	call := phone.NewCall()

	first := call.NewLeg()
	first.SetState(StateActive)
	second := call.NewLeg()
	second.SetState(StateWaiting)

	if got := call.EarliestLeg(); got != first {
		t.Errorf("EarliestLeg() = %v, want the first leg", got)
	}

	first.SetState(StateDisconnected)
	if got := call.EarliestLeg(); got != second {
		t.Errorf("EarliestLeg() after first died = %v, want the second leg", got)
	}

	second.SetState(StateDisconnected)
	if got := call.EarliestLeg(); got != nil {
		t.Errorf("EarliestLeg() with no live legs = %v, want nil", got)
	}
}

func TestHangupOnDeadCallReturnsCallStateError(t *testing.T) {
	phone := NewPhone(&recordingDriver{})
	call := phone.NewCall()
	leg := call.NewLeg()
	leg.SetState(StateDisconnected)

	err := call.Hangup()
	if err == nil {
		t.Fatal("Hangup() on dead call returned nil")
	}
	if !errors.Is(err, ErrCallState) {
		t.Errorf("Hangup() error = %v, want ErrCallState", err)
	}

	var cse *CallStateError
	if !errors.As(err, &cse) {
		t.Fatalf("error %v is not a *CallStateError", err)
	}
	if cse.Op != "hangup" {
		t.Errorf("CallStateError.Op = %q, want hangup", cse.Op)
	}
}

func TestLegHangupRoutesThroughDriver(t *testing.T) {
	driver := &recordingDriver{}
	phone := NewPhone(driver)
	call := phone.NewCall()
	leg := call.NewLeg()
	leg.SetState(StateActive)

	if err := leg.Hangup(); err != nil {
		t.Fatalf("Hangup() error = %v", err)
	}
	if len(driver.hangupLegs) != 1 || driver.hangupLegs[0] != leg {
		t.Errorf("driver saw hangups for %v, want the test leg once", driver.hangupLegs)
	}
}

func TestLegStateChangeHandlerUnregister(t *testing.T) {
	phone := NewPhone(&recordingDriver{})
	call := phone.NewCall()
	leg := call.NewLeg(WithAddress("carol@example.com", telecom.PresentationAllowed))

	count := 0
	unregister := leg.RegisterStateChange(func(*Leg) { count++ })

	leg.SetState(StateIncoming)
	leg.SetState(StateIncoming) // same state, no notification
	leg.SetState(StateActive)
	if count != 2 {
		t.Errorf("handler ran %d times, want 2", count)
	}

	unregister()
	unregister() // idempotent
	leg.SetState(StateHolding)
	if count != 2 {
		t.Errorf("handler ran after unregister, count = %d", count)
	}
}

func TestSetDisconnectedRecordsCause(t *testing.T) {
	phone := NewPhone(&recordingDriver{})
	call := phone.NewCall()
	leg := call.NewLeg()
	leg.SetState(StateIncoming)

	leg.SetDisconnected(telecom.CauseBusy)

	if got := leg.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want Disconnected", got)
	}
	if got := leg.DisconnectCause(); got != telecom.CauseBusy {
		t.Errorf("DisconnectCause() = %v, want Busy", got)
	}
}
