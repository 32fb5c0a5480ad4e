package media

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
)

const (
	// dtmfPacketInterval is the spacing of event packets during a digit.
	dtmfPacketInterval = 20 * time.Millisecond

	// dtmfIntervalSamples is the duration increment per packet, 20ms at 8kHz.
	dtmfIntervalSamples uint16 = 160

	// dtmfEndRedundancy is how many end-of-event packets are sent.
	// RFC 4733 recommends three for reliable detection.
	dtmfEndRedundancy = 3
)

// DTMFWriter sends RFC 4733 telephone events over an RTP writer.
//
// It exposes the start/stop split the telephony layer uses: StartDigit
// begins streaming event packets with increasing duration, StopDigit
// finishes the digit with redundant end-of-event packets. Starting a new
// digit while one is in progress stops the old one first.
type DTMFWriter struct {
	writer      RTPWriter
	payloadType uint8

	mu     sync.Mutex
	active *activeDigit
}

type activeDigit struct {
	stop chan struct{}
	done chan struct{}
}

// NewDTMFWriter creates a DTMF writer sending events via the given RTP writer.
func NewDTMFWriter(writer RTPWriter, payloadType uint8) *DTMFWriter {
	return &DTMFWriter{
		writer:      writer,
		payloadType: payloadType,
	}
}

// StartDigit begins sending the given digit. The digit keeps playing,
// with its reported duration growing per packet, until StopDigit.
func (d *DTMFWriter) StartDigit(digit rune) error {
	event, ok := RuneToEvent(digit)
	if !ok {
		return fmt.Errorf("invalid DTMF digit: %c", digit)
	}

	d.mu.Lock()
	if d.active != nil {
		active := d.active
		d.active = nil
		d.mu.Unlock()
		close(active.stop)
		<-active.done
		d.mu.Lock()
	}
	active := &activeDigit{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	d.active = active
	d.mu.Unlock()

	go d.streamDigit(event, active)
	return nil
}

// StopDigit ends the digit in progress. Calling it with no digit active
// is a no-op.
func (d *DTMFWriter) StopDigit() {
	d.mu.Lock()
	active := d.active
	d.active = nil
	d.mu.Unlock()

	if active == nil {
		return
	}
	close(active.stop)
	<-active.done
}

// SendDigit sends a complete digit of the given duration, blocking until
// the end-of-event packets have gone out.
func (d *DTMFWriter) SendDigit(digit rune, duration time.Duration) error {
	if err := d.StartDigit(digit); err != nil {
		return err
	}
	time.Sleep(duration)
	d.StopDigit()
	return nil
}

// streamDigit runs until stopped. Per RFC 4733 the timestamp stays
// constant for the whole event, the duration field grows packet by
// packet, and the final duration is repeated in the end packets.
func (d *DTMFWriter) streamDigit(event uint8, active *activeDigit) {
	defer close(active.done)

	seq := GenerateSequenceStart()
	tsStart := GenerateTimestampStart()
	duration := dtmfIntervalSamples
	first := true

	ticker := time.NewTicker(dtmfPacketInterval)
	defer ticker.Stop()

	for {
		evt := DTMFEvent{
			Event:    event,
			Volume:   DefaultDTMFVolume,
			Duration: duration,
		}
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         first,
				PayloadType:    d.payloadType,
				SequenceNumber: seq,
				Timestamp:      tsStart,
			},
			Payload: evt.Encode(),
		}
		if err := d.writer.WriteRTP(pkt); err != nil {
			return
		}
		first = false
		seq++
		if duration < 0xFFFF-dtmfIntervalSamples {
			duration += dtmfIntervalSamples
		}

		select {
		case <-active.stop:
			if duration < MinDTMFDuration {
				duration = MinDTMFDuration
			}
			for i := 0; i < dtmfEndRedundancy; i++ {
				end := DTMFEvent{
					Event:      event,
					EndOfEvent: true,
					Volume:     DefaultDTMFVolume,
					Duration:   duration,
				}
				pkt := &rtp.Packet{
					Header: rtp.Header{
						Version:        2,
						PayloadType:    d.payloadType,
						SequenceNumber: seq,
						Timestamp:      tsStart,
					},
					Payload: end.Encode(),
				}
				if err := d.writer.WriteRTP(pkt); err != nil {
					return
				}
				seq++
				if i < dtmfEndRedundancy-1 {
					time.Sleep(5 * time.Millisecond)
				}
			}
			return
		case <-ticker.C:
		}
	}
}
