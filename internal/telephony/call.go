package telephony

import (
	"sync"

	"github.com/google/uuid"
)

// Call groups the legs that share one user-visible call. Its state is
// derived from the states of its legs.
type Call struct {
	id string

	mu    sync.RWMutex
	phone *Phone
	legs  []*Leg
}

func newCall(phone *Phone) *Call {
	return &Call{
		id:    uuid.New().String(),
		phone: phone,
	}
}

// ID returns the call's unique identifier.
func (c *Call) ID() string {
	return c.id
}

// Phone returns the owning phone.
func (c *Call) Phone() *Phone {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phone
}

// NewLeg creates a leg attached to this call.
func (c *Call) NewLeg(opts ...LegOption) *Leg {
	l := newLeg(c, opts...)
	c.mu.Lock()
	c.legs = append(c.legs, l)
	c.mu.Unlock()
	return l
}

// Legs returns a snapshot of the call's legs.
func (c *Call) Legs() []*Leg {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Leg, len(c.legs))
	copy(out, c.legs)
	return out
}

// State derives the call state from its legs. Setup states dominate so
// that a call being answered or dialed reads as such even while an old
// leg is still tearing down; a call with no live legs is Disconnected
// once any leg has ended, Idle otherwise.
func (c *Call) State() CallState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.legs) == 0 {
		return StateIdle
	}
	for _, priority := range []CallState{
		StateIncoming, StateWaiting,
		StateDialing, StateAlerting,
		StateActive, StateHolding,
		StateDisconnecting,
	} {
		for _, l := range c.legs {
			if l.State() == priority {
				return priority
			}
		}
	}
	for _, l := range c.legs {
		if l.State() == StateDisconnected {
			return StateDisconnected
		}
	}
	return StateIdle
}

// IsMultiparty reports whether more than one leg is still alive.
func (c *Call) IsMultiparty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	live := 0
	for _, l := range c.legs {
		if l.State().IsAlive() {
			live++
		}
	}
	return live > 1
}

// EarliestLeg returns the oldest leg that is still part of the call, or
// nil when every leg has ended.
func (c *Call) EarliestLeg() *Leg {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var earliest *Leg
	for _, l := range c.legs {
		if !l.State().IsAlive() {
			continue
		}
		if earliest == nil || l.CreatedAt().Before(earliest.CreatedAt()) {
			earliest = l
		}
	}
	return earliest
}

// Hangup terminates the entire call. Returns a CallStateError when there
// is nothing left to hang up.
func (c *Call) Hangup() error {
	state := c.State()
	if !state.IsAlive() && !state.IsRinging() {
		return newCallStateError("hangup", state)
	}

	c.mu.RLock()
	phone := c.phone
	c.mu.RUnlock()
	if phone == nil || phone.driver == nil {
		return ErrNoDriver
	}
	return phone.driver.HangupCall(c)
}

// removeLeg drops a dead leg from the call and orphans it.
func (c *Call) removeLeg(leg *Leg) {
	c.mu.Lock()
	for i, l := range c.legs {
		if l == leg {
			c.legs = append(c.legs[:i], c.legs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	leg.detach()
}
