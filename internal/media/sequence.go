package media

// SequenceTracker follows incoming RTP sequence numbers across 16-bit
// rollover, maintaining an extended 32-bit counter and loss statistics.
type SequenceTracker struct {
	initialized bool
	lastSeq     uint16
	cycles      uint32
	lost        uint64
	received    uint64
}

// NewSequenceTracker creates an empty tracker.
func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{}
}

// Update records a received sequence number. It returns the extended
// 32-bit sequence (rollover count in the upper bits) and the packets
// detected as lost since the previous one.
func (s *SequenceTracker) Update(seq uint16) (extended uint32, lost int) {
	s.received++

	if !s.initialized {
		s.initialized = true
		s.lastSeq = seq
		return uint32(seq), 0
	}

	// Forward distance in uint16 arithmetic, reinterpreted as signed to
	// tell a jump ahead from a late packet.
	diff := int16(seq - s.lastSeq)
	if diff > 1 {
		lost = int(diff) - 1
		s.lost += uint64(lost)
	}

	if s.lastSeq > 0xF000 && seq < 0x1000 {
		s.cycles++
	}

	s.lastSeq = seq
	return (s.cycles << 16) | uint32(seq), lost
}

// Stats returns cumulative received and lost counts.
func (s *SequenceTracker) Stats() (received, lost uint64) {
	return s.received, s.lost
}

// LossRate returns the loss fraction between 0.0 and 1.0.
func (s *SequenceTracker) LossRate() float64 {
	if s.received == 0 && s.lost == 0 {
		return 0.0
	}
	total := s.received + s.lost
	return float64(s.lost) / float64(total)
}

// Reset clears all tracking state.
func (s *SequenceTracker) Reset() {
	*s = SequenceTracker{}
}
