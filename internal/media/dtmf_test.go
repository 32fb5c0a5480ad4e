package media

import "testing"

func TestRuneToEvent(t *testing.T) {
	tests := []struct {
		r    rune
		want uint8
		ok   bool
	}{
		{'0', DTMF0, true},
		{'9', DTMF9, true},
		{'*', DTMFStar, true},
		{'#', DTMFPound, true},
		{'A', DTMFA, true},
		{'d', DTMFD, true},
		{'x', 0, false},
		{' ', 0, false},
	}

	for _, tt := range tests {
		got, ok := RuneToEvent(tt.r)
		if got != tt.want || ok != tt.ok {
			t.Errorf("RuneToEvent(%q) = (%d, %t), want (%d, %t)", tt.r, got, ok, tt.want, tt.ok)
		}
	}
}

func TestEventToRune(t *testing.T) {
	for _, r := range "0123456789*#ABCD" {
		event, ok := RuneToEvent(r)
		if !ok {
			t.Fatalf("RuneToEvent(%q) not ok", r)
		}
		back, ok := EventToRune(event)
		if !ok || back != r {
			t.Errorf("EventToRune(%d) = (%q, %t), want (%q, true)", event, back, ok, r)
		}
	}

	if _, ok := EventToRune(16); ok {
		t.Error("EventToRune(16) = ok for out-of-range event")
	}
}

func TestDTMFEventWireFormat(t *testing.T) {
	ev := DTMFEvent{
		Event:      DTMFPound,
		EndOfEvent: true,
		Volume:     DefaultDTMFVolume,
		Duration:   800,
	}

	encoded := ev.Encode()
	if len(encoded) != 4 {
		t.Fatalf("Encode() produced %d bytes, want 4", len(encoded))
	}
	if encoded[0] != DTMFPound {
		t.Errorf("event byte = %d, want %d", encoded[0], DTMFPound)
	}
	if encoded[1]&0x80 == 0 {
		t.Error("E bit not set for end-of-event packet")
	}

	decoded, err := DecodeDTMFEvent(encoded)
	if err != nil {
		t.Fatalf("DecodeDTMFEvent() error = %v", err)
	}
	if decoded != ev {
		t.Errorf("round trip = %+v, want %+v", decoded, ev)
	}
}

func TestDecodeDTMFEventTooShort(t *testing.T) {
	if _, err := DecodeDTMFEvent([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeDTMFEvent() accepted a 3-byte payload")
	}
}
