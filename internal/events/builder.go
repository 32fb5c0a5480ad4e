package events

import (
	"time"

	"github.com/google/uuid"
)

// Builder provides fluent construction of connection events with
// consistent defaults.
type Builder struct {
	nodeID string
}

// NewBuilder creates an event builder with global defaults.
func NewBuilder(nodeID string) *Builder {
	return &Builder{nodeID: nodeID}
}

// newBase creates a BaseEvent with common fields populated.
func (b *Builder) newBase(eventType EventType, connectionUUID, sipCallID string) BaseEvent {
	return BaseEvent{
		EventID:        uuid.New().String(),
		EventType:      eventType,
		EventTime:      time.Now().UTC(),
		ConnectionUUID: connectionUUID,
		SIPCallID:      sipCallID,
		NodeID:         b.nodeID,
	}
}

// CreatedBuilder constructs ConnectionCreatedEvent.
type CreatedBuilder struct {
	event *ConnectionCreatedEvent
}

// Created starts building a ConnectionCreatedEvent.
func (b *Builder) Created(connectionUUID, sipCallID string) *CreatedBuilder {
	return &CreatedBuilder{
		event: &ConnectionCreatedEvent{
			BaseEvent: b.newBase(ConnectionCreated, connectionUUID, sipCallID),
			Direction: DirectionInbound,
		},
	}
}

func (cb *CreatedBuilder) Direction(d Direction) *CreatedBuilder {
	cb.event.Direction = d
	return cb
}

func (cb *CreatedBuilder) Handle(handle string) *CreatedBuilder {
	cb.event.Handle = handle
	return cb
}

func (cb *CreatedBuilder) DisplayName(name string) *CreatedBuilder {
	cb.event.DisplayName = name
	return cb
}

func (cb *CreatedBuilder) Build() *ConnectionCreatedEvent {
	return cb.event
}

// DialingBuilder constructs ConnectionDialingEvent.
type DialingBuilder struct {
	event *ConnectionDialingEvent
}

// Dialing starts building a ConnectionDialingEvent.
func (b *Builder) Dialing(connectionUUID, sipCallID string) *DialingBuilder {
	return &DialingBuilder{
		event: &ConnectionDialingEvent{
			BaseEvent: b.newBase(ConnectionDialing, connectionUUID, sipCallID),
		},
	}
}

func (cb *DialingBuilder) Handle(handle string) *DialingBuilder {
	cb.event.Handle = handle
	return cb
}

func (cb *DialingBuilder) Ringback(requesting bool) *DialingBuilder {
	cb.event.Ringback = requesting
	return cb
}

func (cb *DialingBuilder) Build() *ConnectionDialingEvent {
	return cb.event
}

// RingingBuilder constructs ConnectionRingingEvent.
type RingingBuilder struct {
	event *ConnectionRingingEvent
}

// Ringing starts building a ConnectionRingingEvent.
func (b *Builder) Ringing(connectionUUID, sipCallID string) *RingingBuilder {
	return &RingingBuilder{
		event: &ConnectionRingingEvent{
			BaseEvent: b.newBase(ConnectionRinging, connectionUUID, sipCallID),
		},
	}
}

func (cb *RingingBuilder) Handle(handle string) *RingingBuilder {
	cb.event.Handle = handle
	return cb
}

func (cb *RingingBuilder) DisplayName(name string) *RingingBuilder {
	cb.event.DisplayName = name
	return cb
}

func (cb *RingingBuilder) Build() *ConnectionRingingEvent {
	return cb.event
}

// ActiveBuilder constructs ConnectionActiveEvent.
type ActiveBuilder struct {
	event *ConnectionActiveEvent
}

// Active starts building a ConnectionActiveEvent.
func (b *Builder) Active(connectionUUID, sipCallID string) *ActiveBuilder {
	return &ActiveBuilder{
		event: &ConnectionActiveEvent{
			BaseEvent: b.newBase(ConnectionActive, connectionUUID, sipCallID),
		},
	}
}

func (cb *ActiveBuilder) Capabilities(caps string) *ActiveBuilder {
	cb.event.Capabilities = caps
	return cb
}

func (cb *ActiveBuilder) Build() *ConnectionActiveEvent {
	return cb.event
}

// Held builds a ConnectionHeldEvent directly; it carries no extras.
func (b *Builder) Held(connectionUUID, sipCallID string) *ConnectionHeldEvent {
	return &ConnectionHeldEvent{
		BaseEvent: b.newBase(ConnectionHeld, connectionUUID, sipCallID),
	}
}

// DisconnectedBuilder constructs ConnectionDisconnectedEvent.
type DisconnectedBuilder struct {
	event *ConnectionDisconnectedEvent
}

// Disconnected starts building a ConnectionDisconnectedEvent.
func (b *Builder) Disconnected(connectionUUID, sipCallID string) *DisconnectedBuilder {
	return &DisconnectedBuilder{
		event: &ConnectionDisconnectedEvent{
			BaseEvent: b.newBase(ConnectionDisconnected, connectionUUID, sipCallID),
		},
	}
}

func (cb *DisconnectedBuilder) Cause(cause string) *DisconnectedBuilder {
	cb.event.Cause = cause
	return cb
}

func (cb *DisconnectedBuilder) Durations(talk, total time.Duration) *DisconnectedBuilder {
	cb.event.TalkDurationMs = talk.Milliseconds()
	cb.event.TotalDurationMs = total.Milliseconds()
	return cb
}

func (cb *DisconnectedBuilder) Build() *ConnectionDisconnectedEvent {
	return cb.event
}

// Destroyed builds a ConnectionDestroyedEvent directly.
func (b *Builder) Destroyed(connectionUUID, sipCallID string) *ConnectionDestroyedEvent {
	return &ConnectionDestroyedEvent{
		BaseEvent: b.newBase(ConnectionDestroyed, connectionUUID, sipCallID),
	}
}
