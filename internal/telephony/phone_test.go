package telephony

import (
	"errors"
	"testing"
)

func TestPhoneCallSelectors(t *testing.T) {
	phone := NewPhone(&recordingDriver{})

	ringing := phone.NewCall()
	ringing.NewLeg().SetState(StateIncoming)

	active := phone.NewCall()
	active.NewLeg().SetState(StateActive)

	held := phone.NewCall()
	held.NewLeg().SetState(StateHolding)

	if got := phone.RingingCall(); got != ringing {
		t.Errorf("RingingCall() = %v, want the ringing call", got)
	}
	if got := phone.ActiveCall(); got != active {
		t.Errorf("ActiveCall() = %v, want the active call", got)
	}
	if got := phone.HoldingCall(); got != held {
		t.Errorf("HoldingCall() = %v, want the held call", got)
	}
}

func TestAcceptCallRequiresRinging(t *testing.T) {
	driver := &recordingDriver{}
	phone := NewPhone(driver)

	err := phone.AcceptCall(0)
	if !errors.Is(err, ErrCallState) {
		t.Errorf("AcceptCall() with nothing ringing = %v, want ErrCallState", err)
	}

	call := phone.NewCall()
	call.NewLeg().SetState(StateIncoming)
	if err := phone.AcceptCall(0); err != nil {
		t.Fatalf("AcceptCall() = %v", err)
	}
	if driver.accepts != 1 {
		t.Errorf("driver accepts = %d, want 1", driver.accepts)
	}
}

func TestRejectCallRequiresRinging(t *testing.T) {
	driver := &recordingDriver{}
	phone := NewPhone(driver)

	if err := phone.RejectCall(); !errors.Is(err, ErrCallState) {
		t.Errorf("RejectCall() with nothing ringing = %v, want ErrCallState", err)
	}

	call := phone.NewCall()
	call.NewLeg().SetState(StateWaiting)
	if err := phone.RejectCall(); err != nil {
		t.Fatalf("RejectCall() = %v", err)
	}
	if driver.rejects != 1 {
		t.Errorf("driver rejects = %d, want 1", driver.rejects)
	}
}

func TestSwitchHoldingAndActiveGating(t *testing.T) {
	driver := &recordingDriver{}
	phone := NewPhone(driver)

	if err := phone.SwitchHoldingAndActive(); !errors.Is(err, ErrCallState) {
		t.Errorf("SwitchHoldingAndActive() with no calls = %v, want ErrCallState", err)
	}

	call := phone.NewCall()
	call.NewLeg().SetState(StateActive)
	if err := phone.SwitchHoldingAndActive(); err != nil {
		t.Fatalf("SwitchHoldingAndActive() = %v", err)
	}
	if driver.switches != 1 {
		t.Errorf("driver switches = %d, want 1", driver.switches)
	}
}

func TestMultipartyCapability(t *testing.T) {
	plain := NewPhone(&recordingDriver{})
	if plain.MultipartyCapable() {
		t.Error("default phone reported multiparty capable")
	}

	conf := NewPhone(&recordingDriver{}, WithMultipartyCapability(true))
	if !conf.MultipartyCapable() {
		t.Error("phone with option not reported multiparty capable")
	}
}

func TestReleaseCall(t *testing.T) {
	phone := NewPhone(&recordingDriver{})
	call := phone.NewCall()
	leg := call.NewLeg()
	leg.SetState(StateActive)

	// Still alive: release is refused.
	phone.ReleaseCall(call)
	if len(phone.Calls()) != 1 {
		t.Fatal("live call was released")
	}

	leg.SetState(StateDisconnected)
	phone.ReleaseCall(call)
	if len(phone.Calls()) != 0 {
		t.Error("finished call was not released")
	}
	if len(call.Legs()) != 0 {
		t.Error("released call still holds its legs")
	}
	if leg.Call() != nil {
		t.Error("released leg still references its call")
	}
}
