package media

import (
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"
)

// RTPWriter writes RTP packets to an underlying destination.
type RTPWriter interface {
	WriteRTP(p *rtp.Packet) error
}

// RTPStreamWriter writes RTP packets with clock-based pacing. Payload
// writes block until the next codec-interval tick so the stream plays
// out in real time without drift.
type RTPStreamWriter struct {
	conn       net.PacketConn
	remoteAddr net.Addr

	ssrc      uint32
	pt        uint8
	seq       uint16
	timestamp uint32

	codec  Codec
	ticker *time.Ticker

	mu     sync.Mutex
	closed bool
}

// NewRTPStreamWriter creates a clock-paced writer for the given codec.
func NewRTPStreamWriter(conn net.PacketConn, remote net.Addr, codec Codec) *RTPStreamWriter {
	return &RTPStreamWriter{
		conn:       conn,
		remoteAddr: remote,
		ssrc:       GenerateSSRC(),
		pt:         codec.PayloadType,
		seq:        GenerateSequenceStart(),
		timestamp:  GenerateTimestampStart(),
		codec:      codec,
		ticker:     time.NewTicker(codec.SampleDur),
	}
}

// WritePayload sends one frame, blocking until the next clock tick.
// The marker bit flags the start of a talkspurt.
func (w *RTPStreamWriter) WritePayload(payload []byte, marker bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return net.ErrClosed
	}

	<-w.ticker.C

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    w.pt,
			SequenceNumber: w.seq,
			Timestamp:      w.timestamp,
			SSRC:           w.ssrc,
		},
		Payload: payload,
	}

	data, err := pkt.Marshal()
	if err != nil {
		return err
	}
	if _, err := w.conn.WriteTo(data, w.remoteAddr); err != nil {
		return err
	}

	w.seq++
	w.timestamp += w.codec.TimestampIncrement()
	return nil
}

// WriteRTP sends a packet as-is, without clock pacing. The SSRC is
// overridden to keep the stream consistent. DTMF events use this path
// because their timing is controlled by the caller.
func (w *RTPStreamWriter) WriteRTP(pkt *rtp.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return net.ErrClosed
	}

	pkt.SSRC = w.ssrc

	data, err := pkt.Marshal()
	if err != nil {
		return err
	}
	_, err = w.conn.WriteTo(data, w.remoteAddr)
	return err
}

// SSRC returns the stream's SSRC.
func (w *RTPStreamWriter) SSRC() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ssrc
}

// Close stops the pacing clock and rejects further writes.
func (w *RTPStreamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		w.closed = true
		w.ticker.Stop()
	}
	return nil
}
