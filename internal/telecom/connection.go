package telecom

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DisconnectCause explains why a connection ended.
type DisconnectCause int

const (
	CauseNotValid DisconnectCause = iota
	CauseIncomingMissed
	CauseNormalLocal
	CauseNormalRemote
	CauseBusy
	CauseCongestion
	CauseRejected
	CauseError
)

// String returns a human-readable representation of the cause.
func (c DisconnectCause) String() string {
	switch c {
	case CauseNotValid:
		return "NotValid"
	case CauseIncomingMissed:
		return "IncomingMissed"
	case CauseNormalLocal:
		return "NormalLocal"
	case CauseNormalRemote:
		return "NormalRemote"
	case CauseBusy:
		return "Busy"
	case CauseCongestion:
		return "Congestion"
	case CauseRejected:
		return "Rejected"
	case CauseError:
		return "Error"
	default:
		return "NotValid"
	}
}

// StateChangeFunc is invoked after a connection commits a state transition.
type StateChangeFunc func(conn *Connection, oldState, newState ConnectionState)

// RingbackFunc is invoked when the connection's ringback request changes.
type RingbackFunc func(conn *Connection, requesting bool)

// Connection is the call-management view of a single call leg. It records
// the visible state, capability set, and caller identity that the adapter
// layer projects onto it, and notifies registered listeners on changes.
type Connection struct {
	id string

	mu                      sync.RWMutex
	state                   ConnectionState
	capabilities            Capability
	handle                  string
	handlePresentation      Presentation
	displayName             string
	displayNamePresentation Presentation
	disconnectCause         DisconnectCause
	requestingRingback      bool
	audioModeIsVoIP         bool

	nextListenerID  int
	stateListeners  map[int]StateChangeFunc
	ringListeners   map[int]RingbackFunc
}

// NewConnection creates a connection in the Initializing state.
func NewConnection() *Connection {
	return &Connection{
		id:             uuid.New().String(),
		state:          StateInitializing,
		stateListeners: make(map[int]StateChangeFunc),
		ringListeners:  make(map[int]RingbackFunc),
	}
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string {
	return c.id
}

// OnStateChange registers a state transition listener and returns an
// unregister function. Unregistering more than once is safe.
func (c *Connection) OnStateChange(fn StateChangeFunc) func() {
	c.mu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.stateListeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.stateListeners, id)
		c.mu.Unlock()
	}
}

// OnRingback registers a ringback request listener and returns an
// unregister function.
func (c *Connection) OnRingback(fn RingbackFunc) func() {
	c.mu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.ringListeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.ringListeners, id)
		c.mu.Unlock()
	}
}

// setState commits a transition if it is legal, notifying listeners outside
// the lock. Illegal transitions are logged and ignored.
func (c *Connection) setState(target ConnectionState) {
	c.mu.Lock()
	old := c.state
	if old == target {
		c.mu.Unlock()
		return
	}
	if !old.CanTransitionTo(target) {
		c.mu.Unlock()
		slog.Warn("[Connection] Rejected illegal state transition",
			"connection_id", c.id,
			"from", old,
			"to", target,
		)
		return
	}
	c.state = target
	listeners := make([]StateChangeFunc, 0, len(c.stateListeners))
	for _, fn := range c.stateListeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	slog.Debug("[Connection] State changed",
		"connection_id", c.id,
		"from", old,
		"to", target,
	)
	for _, fn := range listeners {
		fn(c, old, target)
	}
}

// SetInitialized marks the connection bound and ready.
func (c *Connection) SetInitialized() { c.setState(StateInitialized) }

// SetActive marks the connection connected.
func (c *Connection) SetActive() { c.setState(StateActive) }

// SetOnHold marks the connection held.
func (c *Connection) SetOnHold() { c.setState(StateOnHold) }

// SetDialing marks the connection as waiting for the far end.
func (c *Connection) SetDialing() { c.setState(StateDialing) }

// SetRinging marks the connection as awaiting answer.
func (c *Connection) SetRinging() { c.setState(StateRinging) }

// SetDisconnected records the cause and marks the connection disconnected.
func (c *Connection) SetDisconnected(cause DisconnectCause) {
	c.mu.Lock()
	c.disconnectCause = cause
	c.mu.Unlock()
	c.setState(StateDisconnected)
}

// SetDestroyed moves the connection to its terminal state.
func (c *Connection) SetDestroyed() { c.setState(StateDestroyed) }

// SetRequestingRingback toggles locally generated ringback playback.
func (c *Connection) SetRequestingRingback(requesting bool) {
	c.mu.Lock()
	if c.requestingRingback == requesting {
		c.mu.Unlock()
		return
	}
	c.requestingRingback = requesting
	listeners := make([]RingbackFunc, 0, len(c.ringListeners))
	for _, fn := range c.ringListeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(c, requesting)
	}
}

// SetCapabilities replaces the capability set.
func (c *Connection) SetCapabilities(caps Capability) {
	c.mu.Lock()
	c.capabilities = caps
	c.mu.Unlock()
}

// SetHandle records the connection's URI handle and its presentation.
func (c *Connection) SetHandle(uri string, presentation Presentation) {
	c.mu.Lock()
	c.handle = uri
	c.handlePresentation = presentation
	c.mu.Unlock()
}

// SetCallerDisplayName records the caller's display name and its presentation.
func (c *Connection) SetCallerDisplayName(name string, presentation Presentation) {
	c.mu.Lock()
	c.displayName = name
	c.displayNamePresentation = presentation
	c.mu.Unlock()
}

// SetAudioModeIsVoIP flags the connection's audio as packet-switched.
func (c *Connection) SetAudioModeIsVoIP(isVoIP bool) {
	c.mu.Lock()
	c.audioModeIsVoIP = isVoIP
	c.mu.Unlock()
}

// State returns the current visible state.
func (c *Connection) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Capabilities returns the current capability set.
func (c *Connection) Capabilities() Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// Handle returns the connection's URI handle.
func (c *Connection) Handle() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle
}

// HandlePresentation returns the handle's presentation.
func (c *Connection) HandlePresentation() Presentation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlePresentation
}

// CallerDisplayName returns the caller's display name.
func (c *Connection) CallerDisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayName
}

// CallerDisplayNamePresentation returns the display name's presentation.
func (c *Connection) CallerDisplayNamePresentation() Presentation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayNamePresentation
}

// DisconnectCause returns the cause recorded at disconnect.
func (c *Connection) DisconnectCause() DisconnectCause {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disconnectCause
}

// RequestingRingback reports whether ringback playback is requested.
func (c *Connection) RequestingRingback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requestingRingback
}

// AudioModeIsVoIP reports whether the audio mode is packet-switched.
func (c *Connection) AudioModeIsVoIP() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.audioModeIsVoIP
}
