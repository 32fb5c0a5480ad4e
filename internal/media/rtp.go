package media

import (
	"crypto/rand"
	"encoding/binary"
)

// GenerateSSRC picks a random 32-bit SSRC. Per RFC 3550 the SSRC should
// be chosen randomly to minimize collisions between sessions.
func GenerateSSRC() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively fatal; fall back to a fixed
		// value so the stream still works.
		return 0x4c696e65
	}
	return binary.BigEndian.Uint32(b[:])
}

// GenerateSequenceStart picks a random initial sequence number per RFC 3550.
func GenerateSequenceStart() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint16(b[:])
}

// GenerateTimestampStart picks a random initial timestamp per RFC 3550.
func GenerateTimestampStart() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}
