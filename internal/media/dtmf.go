package media

import (
	"encoding/binary"
	"fmt"
)

// DTMFEvent is an RFC 4733 telephone-event payload. The wire format is
// 4 bytes:
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|     event     |E|R| volume    |          duration             |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type DTMFEvent struct {
	Event      uint8  // 0-15: 0-9, *, #, A-D
	EndOfEvent bool   // E bit: final packet of the event
	Volume     uint8  // 0-63 in -dBm0 (typically 10)
	Duration   uint16 // Duration in timestamp units
}

// DTMF event codes.
const (
	DTMF0     uint8 = 0
	DTMF1     uint8 = 1
	DTMF2     uint8 = 2
	DTMF3     uint8 = 3
	DTMF4     uint8 = 4
	DTMF5     uint8 = 5
	DTMF6     uint8 = 6
	DTMF7     uint8 = 7
	DTMF8     uint8 = 8
	DTMF9     uint8 = 9
	DTMFStar  uint8 = 10
	DTMFPound uint8 = 11
	DTMFA     uint8 = 12
	DTMFB     uint8 = 13
	DTMFC     uint8 = 14
	DTMFD     uint8 = 15
)

// Default DTMF parameters.
const (
	DefaultDTMFVolume uint8  = 10   // -10 dBm0
	MinDTMFDuration   uint16 = 400  // 50ms at 8kHz
	DTMFPayloadType   uint8  = 101  // Common default for telephone-event
	DTMFSampleRate    uint32 = 8000 // 8kHz
)

// RuneToEvent converts a DTMF character to its event code.
func RuneToEvent(r rune) (uint8, bool) {
	switch r {
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return uint8(r - '0'), true
	case '*':
		return DTMFStar, true
	case '#':
		return DTMFPound, true
	case 'A', 'a':
		return DTMFA, true
	case 'B', 'b':
		return DTMFB, true
	case 'C', 'c':
		return DTMFC, true
	case 'D', 'd':
		return DTMFD, true
	}
	return 0, false
}

// EventToRune converts a DTMF event code to its character.
func EventToRune(event uint8) (rune, bool) {
	switch {
	case event <= DTMF9:
		return rune('0' + event), true
	case event == DTMFStar:
		return '*', true
	case event == DTMFPound:
		return '#', true
	case event >= DTMFA && event <= DTMFD:
		return rune('A' + event - DTMFA), true
	}
	return 0, false
}

// Encode serializes the event to the RFC 4733 4-byte format.
func (e DTMFEvent) Encode() []byte {
	b := make([]byte, 4)
	b[0] = e.Event
	b[1] = e.Volume & 0x3F
	if e.EndOfEvent {
		b[1] |= 0x80
	}
	binary.BigEndian.PutUint16(b[2:], e.Duration)
	return b
}

// DecodeDTMFEvent parses an RFC 4733 payload.
func DecodeDTMFEvent(payload []byte) (DTMFEvent, error) {
	if len(payload) < 4 {
		return DTMFEvent{}, fmt.Errorf("DTMF payload too short: %d bytes", len(payload))
	}
	return DTMFEvent{
		Event:      payload[0],
		EndOfEvent: (payload[1] & 0x80) != 0,
		Volume:     payload[1] & 0x3F,
		Duration:   binary.BigEndian.Uint16(payload[2:]),
	}, nil
}

// String returns a human-readable representation of the event.
func (e DTMFEvent) String() string {
	char, ok := EventToRune(e.Event)
	if !ok {
		char = '?'
	}
	endStr := ""
	if e.EndOfEvent {
		endStr = " END"
	}
	return fmt.Sprintf("DTMF '%c' vol=%d dur=%d%s", char, e.Volume, e.Duration, endStr)
}
