package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestEventSubjectNaming(t *testing.T) {
	builder := NewBuilder("test-node")

	event := builder.Created("conn-123", "sip-call-id").Build()

	expected := "linegate.connections.conn-123.created"
	if got := event.Subject(); got != expected {
		t.Errorf("Subject() = %q, want %q", got, expected)
	}
}

func TestCreatedEventJSON(t *testing.T) {
	builder := NewBuilder("test-node")

	event := builder.Created("conn-123", "abc@192.168.1.1").
		Direction(DirectionInbound).
		Handle("sip:alice@example.com").
		DisplayName("Alice").
		Build()

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	checks := map[string]string{
		"event_type":      "connection.created",
		"connection_uuid": "conn-123",
		"sip_call_id":     "abc@192.168.1.1",
		"node_id":         "test-node",
		"direction":       "inbound",
		"handle":          "sip:alice@example.com",
		"display_name":    "Alice",
	}

	for k, want := range checks {
		if got, ok := m[k].(string); !ok || got != want {
			t.Errorf("m[%q] = %v, want %q", k, m[k], want)
		}
	}
}

func TestDisconnectedEventDurations(t *testing.T) {
	builder := NewBuilder("test-node")

	event := builder.Disconnected("conn-123", "abc@192.168.1.1").
		Cause("NormalRemote").
		Durations(120*time.Second, 127*time.Second).
		Build()

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if got := m["cause"].(string); got != "NormalRemote" {
		t.Errorf("cause = %v, want NormalRemote", got)
	}
	if got := m["talk_duration_ms"].(float64); got != 120000 {
		t.Errorf("talk_duration_ms = %v, want 120000", got)
	}
	if got := m["total_duration_ms"].(float64); got != 127000 {
		t.Errorf("total_duration_ms = %v, want 127000", got)
	}
}

func TestNoopPublisher(t *testing.T) {
	pub := NewNoopPublisher()
	builder := NewBuilder("test")

	event := builder.Created("conn-1", "sip-1").Build()

	if err := pub.Publish(context.Background(), event); err != nil {
		t.Errorf("NoopPublisher.Publish() error = %v", err)
	}

	pub.PublishAsync(event)

	if err := pub.Flush(context.Background()); err != nil {
		t.Errorf("NoopPublisher.Flush() error = %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Errorf("NoopPublisher.Close() error = %v", err)
	}
}

func TestChannelPublisher(t *testing.T) {
	pub := NewChannelPublisher(10)
	builder := NewBuilder("test")

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		event := builder.Created("conn-"+string(rune('0'+i)), "sip").Build()
		if err := pub.Publish(ctx, event); err != nil {
			t.Errorf("Publish() error = %v", err)
		}
	}

	ch := pub.Events()
	for i := 0; i < 5; i++ {
		select {
		case e := <-ch:
			if e.Type() != ConnectionCreated {
				t.Errorf("got type %v, want ConnectionCreated", e.Type())
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}

	pub.Close()
}

func TestChannelPublisherDropsOnFull(t *testing.T) {
	pub := NewChannelPublisher(2)
	builder := NewBuilder("test")

	pub.PublishAsync(builder.Created("conn-1", "sip").Build())
	pub.PublishAsync(builder.Created("conn-2", "sip").Build())

	// This should be dropped.
	pub.PublishAsync(builder.Created("conn-3", "sip").Build())

	if got := pub.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount() = %d, want 1", got)
	}

	pub.Close()
}

func TestMultiPublisher(t *testing.T) {
	ch1 := NewChannelPublisher(10)
	ch2 := NewChannelPublisher(10)

	multi := NewMultiPublisher(ch1, ch2)
	builder := NewBuilder("test")

	event := builder.Created("conn-1", "sip").Build()
	if err := multi.Publish(context.Background(), event); err != nil {
		t.Errorf("MultiPublisher.Publish() error = %v", err)
	}

	select {
	case <-ch1.Events():
	case <-time.After(time.Second):
		t.Error("ch1 did not receive event")
	}

	select {
	case <-ch2.Events():
	case <-time.After(time.Second):
		t.Error("ch2 did not receive event")
	}

	multi.Close()
}

func TestSubjectPatterns(t *testing.T) {
	tests := []struct {
		name    string
		evtType EventType
		want    string
	}{
		{"created", ConnectionCreated, "linegate.connections.abc-123.created"},
		{"dialing", ConnectionDialing, "linegate.connections.abc-123.dialing"},
		{"ringing", ConnectionRinging, "linegate.connections.abc-123.ringing"},
		{"active", ConnectionActive, "linegate.connections.abc-123.active"},
		{"held", ConnectionHeld, "linegate.connections.abc-123.held"},
		{"disconnected", ConnectionDisconnected, "linegate.connections.abc-123.disconnected"},
		{"destroyed", ConnectionDestroyed, "linegate.connections.abc-123.destroyed"},
	}

	builder := NewBuilder("test")
	connUUID := "abc-123"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var event Event
			switch tt.evtType {
			case ConnectionCreated:
				event = builder.Created(connUUID, "sip").Build()
			case ConnectionDialing:
				event = builder.Dialing(connUUID, "sip").Build()
			case ConnectionRinging:
				event = builder.Ringing(connUUID, "sip").Build()
			case ConnectionActive:
				event = builder.Active(connUUID, "sip").Build()
			case ConnectionHeld:
				event = builder.Held(connUUID, "sip")
			case ConnectionDisconnected:
				event = builder.Disconnected(connUUID, "sip").Build()
			case ConnectionDestroyed:
				event = builder.Destroyed(connUUID, "sip")
			}

			if got := event.Subject(); got != tt.want {
				t.Errorf("Subject() = %q, want %q", got, tt.want)
			}
		})
	}
}
