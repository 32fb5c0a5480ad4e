package events

import "fmt"

// Subject naming conventions.
//
// Hierarchy:
//   linegate.connections.<connection_uuid>.<event_suffix>  - Per-connection events
//   linegate.sessions.<session_id>.media                   - RTP session events
//
// Wildcard subscriptions:
//   linegate.connections.>                  - All connection events
//   linegate.connections.*.disconnected     - All disconnects
//   linegate.connections.<uuid>.*           - All events for one connection

const (
	// SubjectPrefix is the root of all linegate subjects.
	SubjectPrefix = "linegate"

	// Connection event subjects.
	SubjectConnections            = SubjectPrefix + ".connections"
	SubjectConnectionCreated      = "created"
	SubjectConnectionDialing      = "dialing"
	SubjectConnectionRinging      = "ringing"
	SubjectConnectionActive       = "active"
	SubjectConnectionHeld         = "held"
	SubjectConnectionDisconnected = "disconnected"
	SubjectConnectionDestroyed    = "destroyed"

	// Media session subjects.
	SubjectSessions = SubjectPrefix + ".sessions"
)

// ConnectionSubject builds a subject for a specific connection event.
// Example: ConnectionSubject("abc-123", "active") => "linegate.connections.abc-123.active"
func ConnectionSubject(connectionUUID string, eventSuffix string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectConnections, connectionUUID, eventSuffix)
}

// SessionSubject builds a subject for RTP session events.
func SessionSubject(sessionID string, event string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectSessions, sessionID, event)
}

// Subject patterns for common consumer configurations.
var (
	// PatternAllConnections matches all connection events.
	PatternAllConnections = SubjectConnections + ".>"

	// PatternDisconnected matches all connection.disconnected events.
	PatternDisconnected = SubjectConnections + ".*.disconnected"

	// PatternAllSessions matches all RTP session events.
	PatternAllSessions = SubjectSessions + ".>"
)

// SubjectForEventType returns the suffix used for a given event type.
func SubjectForEventType(t EventType) string {
	switch t {
	case ConnectionCreated:
		return SubjectConnectionCreated
	case ConnectionDialing:
		return SubjectConnectionDialing
	case ConnectionRinging:
		return SubjectConnectionRinging
	case ConnectionActive:
		return SubjectConnectionActive
	case ConnectionHeld:
		return SubjectConnectionHeld
	case ConnectionDisconnected:
		return SubjectConnectionDisconnected
	case ConnectionDestroyed:
		return SubjectConnectionDestroyed
	default:
		return "unknown"
	}
}
