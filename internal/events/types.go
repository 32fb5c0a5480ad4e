// Package events defines connection lifecycle event types and the
// publishing infrastructure that delivers them. Transport-agnostic:
// delivery is an in-process channel today, a broker tomorrow.
package events

import (
	"time"
)

// EventType identifies the type of connection event.
type EventType string

const (
	// ConnectionCreated fires when a connection is created for a new leg.
	ConnectionCreated EventType = "connection.created"
	// ConnectionDialing fires when an outbound connection starts waiting
	// for the far end.
	ConnectionDialing EventType = "connection.dialing"
	// ConnectionRinging fires when an inbound connection awaits answer.
	ConnectionRinging EventType = "connection.ringing"
	// ConnectionActive fires when the call connects.
	ConnectionActive EventType = "connection.active"
	// ConnectionHeld fires when the call is placed on hold.
	ConnectionHeld EventType = "connection.held"
	// ConnectionDisconnected fires when the call ends, with its cause.
	ConnectionDisconnected EventType = "connection.disconnected"
	// ConnectionDestroyed fires when the connection is torn down for good.
	ConnectionDestroyed EventType = "connection.destroyed"
)

// Direction indicates which side initiated the connection.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Event is the base interface for all connection events.
type Event interface {
	// Type returns the event type for routing/filtering.
	Type() EventType
	// Subject returns the subject this event publishes to.
	Subject() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
	// ConnectionID returns the primary correlation ID.
	ConnectionID() string
}

// BaseEvent contains fields common to all events.
type BaseEvent struct {
	// EventID is unique per event instance, for deduplication.
	EventID string `json:"event_id"`
	// EventType identifies the event.
	EventType EventType `json:"event_type"`
	// EventTime is when the event occurred (RFC3339Nano).
	EventTime time.Time `json:"event_time"`
	// ConnectionUUID is the connection's stable identifier.
	ConnectionUUID string `json:"connection_uuid"`
	// SIPCallID is the SIP Call-ID header value, when known.
	SIPCallID string `json:"sip_call_id,omitempty"`
	// NodeID identifies the linegate instance.
	NodeID string `json:"node_id,omitempty"`
}

func (e *BaseEvent) Type() EventType      { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTime }
func (e *BaseEvent) ConnectionID() string { return e.ConnectionUUID }

// Subject returns the subject for routing.
// Format: linegate.connections.<connection_uuid>.<event_type_suffix>
func (e *BaseEvent) Subject() string {
	suffix := string(e.EventType)[len("connection."):]
	return ConnectionSubject(e.ConnectionUUID, suffix)
}

// ConnectionCreatedEvent announces a new connection.
type ConnectionCreatedEvent struct {
	BaseEvent
	Direction   Direction `json:"direction"`
	Handle      string    `json:"handle,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
}

// ConnectionDialingEvent announces outbound setup in progress.
type ConnectionDialingEvent struct {
	BaseEvent
	Handle   string `json:"handle,omitempty"`
	Ringback bool   `json:"ringback"`
}

// ConnectionRingingEvent announces an inbound connection awaiting answer.
type ConnectionRingingEvent struct {
	BaseEvent
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// ConnectionActiveEvent announces a connected call.
type ConnectionActiveEvent struct {
	BaseEvent
	Capabilities string `json:"capabilities,omitempty"`
}

// ConnectionHeldEvent announces a call placed on hold.
type ConnectionHeldEvent struct {
	BaseEvent
}

// ConnectionDisconnectedEvent announces the end of a call.
type ConnectionDisconnectedEvent struct {
	BaseEvent
	Cause           string `json:"cause"`
	TalkDurationMs  int64  `json:"talk_duration_ms,omitempty"`
	TotalDurationMs int64  `json:"total_duration_ms,omitempty"`
}

// ConnectionDestroyedEvent announces final teardown.
type ConnectionDestroyedEvent struct {
	BaseEvent
}
