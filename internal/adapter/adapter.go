// Package adapter bridges a telephony call leg to its visible connection.
// Each adapter watches one leg's precise state changes and projects them
// onto the connection's state, capability set, and caller identity, while
// translating user commands back into telephony operations.
package adapter

import (
	"errors"
	"log/slog"

	"github.com/sebas/linegate/internal/telecom"
	"github.com/sebas/linegate/internal/telephony"
)

// Adapter synchronizes one telephony leg with one visible connection.
//
// All mutable fields below the queue are owned by the queue goroutine;
// nothing touches them except tasks posted through it.
type Adapter struct {
	conn  *telecom.Connection
	queue *Queue

	leg          *telephony.Leg
	lastLegState telephony.CallState
	unregister   func()
}

// New creates an adapter for the given connection. The connection starts
// out Initializing; Bind moves it to Initialized.
func New(conn *telecom.Connection, queueSize int) *Adapter {
	return &Adapter{
		conn:         conn,
		queue:        NewQueue(queueSize),
		lastLegState: telephony.StateIdle,
	}
}

// Connection returns the visible connection this adapter drives.
func (a *Adapter) Connection() *telecom.Connection {
	return a.conn
}

// Bind attaches the adapter to its telephony leg: it subscribes to the
// leg's state changes, seeds the caller identity, and marks the
// connection initialized. Bind must be called exactly once.
func (a *Adapter) Bind(leg *telephony.Leg) {
	a.queue.Post(func() {
		a.leg = leg
		a.unregister = leg.RegisterStateChange(func(*telephony.Leg) {
			a.queue.Post(func() { a.updateState(false) })
		})
		a.syncHandle()
		a.conn.SetInitialized()
	})
}

// AddedToCallService refreshes everything the call service tracks about
// the connection once it has been handed over: a forced state and
// capability write, VoIP audio mode, and the caller identity.
func (a *Adapter) AddedToCallService() {
	a.queue.Post(func() {
		a.updateState(true)
		a.updateCapabilities(true)
		a.conn.SetAudioModeIsVoIP(true)
		a.syncHandle()
	})
}

// Disconnect hangs up the connection. Whole-call hangup is used when the
// leg's call is not multi-party, so the far end is released too.
func (a *Adapter) Disconnect() {
	a.queue.Post(a.doDisconnect)
}

// Abort is treated exactly like Disconnect.
func (a *Adapter) Abort() {
	a.queue.Post(a.doDisconnect)
}

// Separate splits the leg out of a multi-party call.
func (a *Adapter) Separate() {
	a.queue.Post(func() {
		if a.leg == nil {
			return
		}
		if err := a.leg.Separate(); err != nil {
			a.swallow("separate", err)
		}
	})
}

// Hold places the connection on hold. Ignored unless the connection is
// currently active.
func (a *Adapter) Hold() {
	a.queue.Post(func() {
		if a.conn.State() != telecom.StateActive {
			return
		}
		if phone := a.phone(); phone != nil {
			if err := phone.SwitchHoldingAndActive(); err != nil {
				a.swallow("hold", err)
			}
		}
	})
}

// Unhold resumes the connection. Ignored unless the connection is
// currently on hold.
func (a *Adapter) Unhold() {
	a.queue.Post(func() {
		if a.conn.State() != telecom.StateOnHold {
			return
		}
		if phone := a.phone(); phone != nil {
			if err := phone.SwitchHoldingAndActive(); err != nil {
				a.swallow("unhold", err)
			}
		}
	})
}

// Answer accepts the ringing call. Ignored unless this adapter's leg is
// the earliest leg of the phone's ringing call.
func (a *Adapter) Answer(videoMode int) {
	a.queue.Post(func() {
		if !a.isValidRingingCall() {
			return
		}
		if phone := a.phone(); phone != nil {
			if err := phone.AcceptCall(videoMode); err != nil {
				a.swallow("answer", err)
			}
		}
	})
}

// Reject declines the ringing call, gated the same way as Answer.
func (a *Adapter) Reject() {
	a.queue.Post(func() {
		if !a.isValidRingingCall() {
			return
		}
		if phone := a.phone(); phone != nil {
			if err := phone.RejectCall(); err != nil {
				a.swallow("reject", err)
			}
		}
	})
}

// PostDialContinue acknowledges a post-dial wait. The line has no
// post-dial string handling, so this is a no-op.
func (a *Adapter) PostDialContinue(proceed bool) {
	a.queue.Post(func() {})
}

// PlayDTMFTone begins sending the given digit on the active call.
func (a *Adapter) PlayDTMFTone(digit rune) {
	a.queue.Post(func() {
		if phone := a.phone(); phone != nil {
			if err := phone.StartDTMF(digit); err != nil {
				a.swallow("dtmf start", err)
			}
		}
	})
}

// StopDTMFTone ends the digit in progress.
func (a *Adapter) StopDTMFTone() {
	a.queue.Post(func() {
		if phone := a.phone(); phone != nil {
			if err := phone.StopDTMF(); err != nil {
				a.swallow("dtmf stop", err)
			}
		}
	})
}

// AudioRouteChanged reacts to an audio route change by toggling echo
// suppression: speakerphone needs it, everything else does not.
func (a *Adapter) AudioRouteChanged(route telecom.AudioRoute) {
	a.queue.Post(func() {
		if phone := a.phone(); phone != nil {
			if err := phone.SetEchoSuppression(route == telecom.RouteSpeaker); err != nil {
				a.swallow("echo suppression", err)
			}
		}
	})
}

// Flush blocks until all pending adapter work has run. Intended for tests
// and orderly shutdown.
func (a *Adapter) Flush() {
	a.queue.Flush()
}

// Done is closed once the adapter's queue goroutine has exited, which
// happens after teardown.
func (a *Adapter) Done() <-chan struct{} {
	return a.queue.Done()
}

// doDisconnect runs on the queue goroutine.
func (a *Adapter) doDisconnect() {
	if a.leg == nil {
		return
	}
	call := a.leg.Call()
	if call != nil && !call.IsMultiparty() {
		if err := call.Hangup(); err != nil {
			a.swallow("call hangup", err)
		}
		return
	}
	if err := a.leg.Hangup(); err != nil {
		a.swallow("leg hangup", err)
	}
}

// updateState projects the leg's current state onto the connection.
// Repeats of the last observed state are ignored unless force is set;
// Idle and Disconnecting never produce a visible transition.
func (a *Adapter) updateState(force bool) {
	if a.leg == nil {
		return
	}
	state := a.leg.State()
	if state == a.lastLegState && !force {
		return
	}
	a.lastLegState = state

	switch state {
	case telephony.StateIdle, telephony.StateDisconnecting:
		// Quiescent; nothing visible happens.
	case telephony.StateActive:
		a.conn.SetActive()
	case telephony.StateHolding:
		a.conn.SetOnHold()
	case telephony.StateDialing, telephony.StateAlerting:
		a.conn.SetDialing()
		a.conn.SetRequestingRingback(true)
	case telephony.StateIncoming, telephony.StateWaiting:
		a.conn.SetRinging()
	case telephony.StateDisconnected:
		a.conn.SetDisconnected(a.leg.DisconnectCause())
		a.teardown()
	default:
		slog.Warn("[Adapter] Unhandled leg state",
			"connection_id", a.conn.ID(),
			"state", state,
		)
	}
	a.updateCapabilities(force)
}

// updateCapabilities recomputes the capability set from the visible state
// and writes it only when it changed, unless forced.
func (a *Adapter) updateCapabilities(force bool) {
	caps := a.computeCapabilities()
	if caps != a.conn.Capabilities() || force {
		a.conn.SetCapabilities(caps)
	}
}

// computeCapabilities is pure in the connection's visible state: audio is
// always mutable and hold is always supported, and the hold control is
// usable exactly while the call is active or held.
func (a *Adapter) computeCapabilities() telecom.Capability {
	caps := telecom.CapabilityMuteAudio | telecom.CapabilitySupportHold
	switch a.conn.State() {
	case telecom.StateActive, telecom.StateOnHold:
		caps |= telecom.CapabilityHold
	}
	return caps
}

// syncHandle re-derives the handle and display name from the leg and
// writes each only when something changed. A withheld number yields the
// scheme-only handle "sip:" rather than an error.
func (a *Adapter) syncHandle() {
	if a.leg == nil {
		return
	}
	handle := telecom.BuildHandle(a.leg.Address())
	pres := a.leg.NumberPresentation()
	if handle != a.conn.Handle() || pres != a.conn.HandlePresentation() {
		a.conn.SetHandle(handle, pres)
	}

	name := a.leg.DisplayName()
	namePres := a.leg.DisplayNamePresentation()
	if name != a.conn.CallerDisplayName() || namePres != a.conn.CallerDisplayNamePresentation() {
		a.conn.SetCallerDisplayName(name, namePres)
	}
}

// teardown releases the leg subscription, forgets the leg, and destroys
// the connection. After it runs the adapter is permanently inert: the
// queue stops accepting work once the pending tasks drain.
func (a *Adapter) teardown() {
	if a.unregister != nil {
		a.unregister()
		a.unregister = nil
	}
	a.leg = nil
	a.conn.SetDestroyed()
	a.queue.Close()
}

// isValidRingingCall reports whether this adapter's leg is the one a
// ringing-call command should act on: its call must be ringing and the
// leg must be the call's earliest live leg.
func (a *Adapter) isValidRingingCall() bool {
	if a.leg == nil {
		return false
	}
	call := a.leg.Call()
	if call == nil {
		return false
	}
	if !call.State().IsRinging() {
		return false
	}
	return call.EarliestLeg() == a.leg
}

func (a *Adapter) phone() *telephony.Phone {
	if a.leg == nil {
		return nil
	}
	call := a.leg.Call()
	if call == nil {
		return nil
	}
	return call.Phone()
}

// swallow logs a failed command and drops it. Control-state races are
// routine and logged quietly; anything else is a warning.
func (a *Adapter) swallow(op string, err error) {
	if errors.Is(err, telephony.ErrCallState) {
		slog.Info("[Adapter] Command ignored in current call state",
			"connection_id", a.conn.ID(),
			"op", op,
			"error", err,
		)
		return
	}
	slog.Warn("[Adapter] Command failed",
		"connection_id", a.conn.ID(),
		"op", op,
		"error", err,
	)
}
