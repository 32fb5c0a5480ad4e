package telephony

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sebas/linegate/internal/telecom"
)

// StateChangeHandler receives precise leg state change notifications.
// Handlers run on the signaling stack's notifier goroutine and must not
// block; heavy consumers should hand the work off to their own queue.
type StateChangeHandler func(leg *Leg)

// Leg is a single party's participation in a call. Its state is driven by
// the signaling driver; consumers observe it through registered handlers.
type Leg struct {
	id        string
	createdAt time.Time

	mu                      sync.RWMutex
	call                    *Call
	address                 string
	numberPresentation      telecom.Presentation
	displayName             string
	displayNamePresentation telecom.Presentation
	state                   CallState
	cause                   telecom.DisconnectCause

	nextHandlerID int
	handlers      map[int]StateChangeHandler
}

// LegOption customizes a leg at creation time.
type LegOption func(*Leg)

// WithAddress sets the remote party address and its presentation.
func WithAddress(address string, presentation telecom.Presentation) LegOption {
	return func(l *Leg) {
		l.address = address
		l.numberPresentation = presentation
	}
}

// WithDisplayName sets the remote party display name and its presentation.
func WithDisplayName(name string, presentation telecom.Presentation) LegOption {
	return func(l *Leg) {
		l.displayName = name
		l.displayNamePresentation = presentation
	}
}

func newLeg(call *Call, opts ...LegOption) *Leg {
	l := &Leg{
		id:                      uuid.New().String(),
		createdAt:               time.Now(),
		call:                    call,
		state:                   StateIdle,
		numberPresentation:      telecom.PresentationAllowed,
		displayNamePresentation: telecom.PresentationAllowed,
		handlers:                make(map[int]StateChangeHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ID returns the leg's unique identifier.
func (l *Leg) ID() string {
	return l.id
}

// CreatedAt returns the leg's creation time, used for earliest-leg ordering.
func (l *Leg) CreatedAt() time.Time {
	return l.createdAt
}

// Call returns the owning call, or nil if the leg has been orphaned.
func (l *Leg) Call() *Call {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.call
}

// Address returns the remote party address. Empty means unknown.
func (l *Leg) Address() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.address
}

// NumberPresentation returns the address presentation.
func (l *Leg) NumberPresentation() telecom.Presentation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.numberPresentation
}

// DisplayName returns the remote party display name.
func (l *Leg) DisplayName() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.displayName
}

// DisplayNamePresentation returns the display name presentation.
func (l *Leg) DisplayNamePresentation() telecom.Presentation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.displayNamePresentation
}

// State returns the leg's current call state.
func (l *Leg) State() CallState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// DisconnectCause returns the cause recorded when the leg disconnected.
func (l *Leg) DisconnectCause() telecom.DisconnectCause {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cause
}

// RegisterStateChange registers a handler for precise state changes and
// returns an unregister function. The returned function is safe to call
// more than once; only the first call removes the handler.
func (l *Leg) RegisterStateChange(h StateChangeHandler) func() {
	l.mu.Lock()
	id := l.nextHandlerID
	l.nextHandlerID++
	l.handlers[id] = h
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.handlers, id)
			l.mu.Unlock()
		})
	}
}

// SetState is called by the signaling driver when the leg changes state.
// Registered handlers are notified after the state is committed.
func (l *Leg) SetState(state CallState) {
	l.mu.Lock()
	if l.state == state {
		l.mu.Unlock()
		return
	}
	old := l.state
	l.state = state
	handlers := make([]StateChangeHandler, 0, len(l.handlers))
	for _, h := range l.handlers {
		handlers = append(handlers, h)
	}
	l.mu.Unlock()

	slog.Debug("[Leg] State changed",
		"leg_id", l.id,
		"from", old,
		"to", state,
	)
	for _, h := range handlers {
		h(l)
	}
}

// SetDisconnected records the disconnect cause and moves the leg to
// Disconnected in one step.
func (l *Leg) SetDisconnected(cause telecom.DisconnectCause) {
	l.mu.Lock()
	l.cause = cause
	l.mu.Unlock()
	l.SetState(StateDisconnected)
}

// SetAddress updates the remote party address, e.g. from a later
// identity header on an established call.
func (l *Leg) SetAddress(address string, presentation telecom.Presentation) {
	l.mu.Lock()
	l.address = address
	l.numberPresentation = presentation
	l.mu.Unlock()
}

// Hangup terminates this leg. Returns a CallStateError if the leg is not
// part of a live call.
func (l *Leg) Hangup() error {
	l.mu.RLock()
	state := l.state
	call := l.call
	l.mu.RUnlock()

	if !state.IsAlive() {
		return newCallStateError("hangup", state)
	}
	if call == nil || call.phone == nil || call.phone.driver == nil {
		return ErrNoDriver
	}
	return call.phone.driver.HangupLeg(l)
}

// Separate splits this leg out of a multi-party call into its own call.
// Returns a CallStateError if the leg is not in a separable state.
func (l *Leg) Separate() error {
	l.mu.RLock()
	state := l.state
	call := l.call
	l.mu.RUnlock()

	if state != StateActive && state != StateHolding {
		return newCallStateError("separate", state)
	}
	if call == nil || call.phone == nil || call.phone.driver == nil {
		return ErrNoDriver
	}
	return call.phone.driver.SeparateLeg(l)
}

// detach clears the owning call reference once the leg is dead.
func (l *Leg) detach() {
	l.mu.Lock()
	l.call = nil
	l.mu.Unlock()
}
