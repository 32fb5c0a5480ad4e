package media

import "testing"

func TestSequenceTrackerInOrder(t *testing.T) {
	tracker := NewSequenceTracker()

	for seq := uint16(100); seq < 110; seq++ {
		extended, lost := tracker.Update(seq)
		if lost != 0 {
			t.Errorf("Update(%d) reported %d lost", seq, lost)
		}
		if extended != uint32(seq) {
			t.Errorf("Update(%d) extended = %d", seq, extended)
		}
	}

	received, lost := tracker.Stats()
	if received != 10 || lost != 0 {
		t.Errorf("Stats() = (%d, %d), want (10, 0)", received, lost)
	}
}

func TestSequenceTrackerDetectsLoss(t *testing.T) {
	tracker := NewSequenceTracker()

	tracker.Update(1)
	_, lost := tracker.Update(5)
	if lost != 3 {
		t.Errorf("gap 1->5 reported %d lost, want 3", lost)
	}

	if rate := tracker.LossRate(); rate <= 0 {
		t.Errorf("LossRate() = %f, want > 0", rate)
	}
}

func TestSequenceTrackerRollover(t *testing.T) {
	tracker := NewSequenceTracker()

	tracker.Update(0xFFFE)
	tracker.Update(0xFFFF)
	extended, lost := tracker.Update(0)
	if lost != 0 {
		t.Errorf("rollover reported %d lost", lost)
	}
	if extended != (1<<16)|0 {
		t.Errorf("extended after rollover = %d, want %d", extended, 1<<16)
	}

	extended, _ = tracker.Update(1)
	if extended != (1<<16)|1 {
		t.Errorf("extended = %d, want %d", extended, (1<<16)|1)
	}
}

func TestSequenceTrackerReset(t *testing.T) {
	tracker := NewSequenceTracker()
	tracker.Update(10)
	tracker.Update(20)
	tracker.Reset()

	received, lost := tracker.Stats()
	if received != 0 || lost != 0 {
		t.Errorf("Stats() after Reset = (%d, %d), want (0, 0)", received, lost)
	}
	if rate := tracker.LossRate(); rate != 0 {
		t.Errorf("LossRate() after Reset = %f, want 0", rate)
	}
}
