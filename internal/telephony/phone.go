package telephony

import (
	"sync"
)

// Driver is the signaling backend behind a Phone. The phone model holds
// state; every operation with a wire-level side effect goes through here.
type Driver interface {
	// HangupLeg terminates a single leg.
	HangupLeg(leg *Leg) error
	// HangupCall terminates every leg of a call.
	HangupCall(call *Call) error
	// SeparateLeg splits a leg out of a multi-party call.
	SeparateLeg(leg *Leg) error
	// AcceptCall answers the ringing call.
	AcceptCall(call *Call, videoMode int) error
	// RejectCall declines the ringing call.
	RejectCall(call *Call) error
	// SwitchHoldingAndActive swaps the held and active calls.
	SwitchHoldingAndActive() error
	// StartDTMF begins sending a DTMF digit on the active call.
	StartDTMF(digit rune) error
	// StopDTMF ends the DTMF digit in progress.
	StopDTMF() error
	// SetEchoSuppression toggles echo suppression on the audio path.
	SetEchoSuppression(enabled bool) error
}

// Phone owns the calls of one line and fronts the signaling driver.
type Phone struct {
	mu                sync.RWMutex
	driver            Driver
	calls             []*Call
	multipartyCapable bool
}

// PhoneOption customizes a phone at creation time.
type PhoneOption func(*Phone)

// WithMultipartyCapability marks the phone as able to host conference
// calls, which changes how single-leg disconnects are routed.
func WithMultipartyCapability(capable bool) PhoneOption {
	return func(p *Phone) {
		p.multipartyCapable = capable
	}
}

// NewPhone creates a phone backed by the given driver.
func NewPhone(driver Driver, opts ...PhoneOption) *Phone {
	p := &Phone{driver: driver}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MultipartyCapable reports whether the phone can host conference calls.
func (p *Phone) MultipartyCapable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.multipartyCapable
}

// NewCall creates an empty call owned by this phone.
func (p *Phone) NewCall() *Call {
	c := newCall(p)
	p.mu.Lock()
	p.calls = append(p.calls, c)
	p.mu.Unlock()
	return c
}

// Calls returns a snapshot of the phone's calls.
func (p *Phone) Calls() []*Call {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// RingingCall returns the call currently awaiting answer, or nil.
func (p *Phone) RingingCall() *Call {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.calls {
		if c.State().IsRinging() {
			return c
		}
	}
	return nil
}

// ActiveCall returns the call currently in the Active state, or nil.
func (p *Phone) ActiveCall() *Call {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.calls {
		if c.State() == StateActive {
			return c
		}
	}
	return nil
}

// HoldingCall returns the call currently on hold, or nil.
func (p *Phone) HoldingCall() *Call {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.calls {
		if c.State() == StateHolding {
			return c
		}
	}
	return nil
}

// AcceptCall answers the ringing call. Returns a CallStateError when no
// call is ringing.
func (p *Phone) AcceptCall(videoMode int) error {
	ringing := p.RingingCall()
	if ringing == nil {
		return newCallStateError("accept", StateIdle)
	}
	if p.driver == nil {
		return ErrNoDriver
	}
	return p.driver.AcceptCall(ringing, videoMode)
}

// RejectCall declines the ringing call. Returns a CallStateError when no
// call is ringing.
func (p *Phone) RejectCall() error {
	ringing := p.RingingCall()
	if ringing == nil {
		return newCallStateError("reject", StateIdle)
	}
	if p.driver == nil {
		return ErrNoDriver
	}
	return p.driver.RejectCall(ringing)
}

// SwitchHoldingAndActive swaps the held and active calls. With only an
// active call this holds it; with only a held call this resumes it.
func (p *Phone) SwitchHoldingAndActive() error {
	if p.ActiveCall() == nil && p.HoldingCall() == nil {
		return newCallStateError("switch", StateIdle)
	}
	if p.driver == nil {
		return ErrNoDriver
	}
	return p.driver.SwitchHoldingAndActive()
}

// StartDTMF begins sending a DTMF digit on the active call.
func (p *Phone) StartDTMF(digit rune) error {
	if p.driver == nil {
		return ErrNoDriver
	}
	return p.driver.StartDTMF(digit)
}

// StopDTMF ends the DTMF digit in progress.
func (p *Phone) StopDTMF() error {
	if p.driver == nil {
		return ErrNoDriver
	}
	return p.driver.StopDTMF()
}

// SetEchoSuppression toggles echo suppression on the audio path.
func (p *Phone) SetEchoSuppression(enabled bool) error {
	if p.driver == nil {
		return ErrNoDriver
	}
	return p.driver.SetEchoSuppression(enabled)
}

// removeCall drops a finished call from the phone.
func (p *Phone) removeCall(call *Call) {
	p.mu.Lock()
	for i, c := range p.calls {
		if c == call {
			p.calls = append(p.calls[:i], p.calls[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

// ReleaseCall drops a call whose legs have all ended, detaching each dead
// leg from it. It is exported for the signaling driver's cleanup path.
func (p *Phone) ReleaseCall(call *Call) {
	legs := call.Legs()
	for _, l := range legs {
		if l.State().IsAlive() {
			return
		}
	}
	for _, l := range legs {
		call.removeLeg(l)
	}
	p.removeCall(call)
}
