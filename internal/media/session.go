package media

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
)

// Session is one call leg's RTP media endpoint. It owns the UDP socket,
// the paced stream writer toward the remote party, the DTMF writer, and
// the local ringback playout.
type Session struct {
	id   string
	conn net.PacketConn

	mu              sync.Mutex
	codec           Codec
	remote          net.Addr
	writer          *RTPStreamWriter
	dtmf            *DTMFWriter
	echoSuppression bool
	ringback        *ringbackPlayout
	closed          bool
}

type ringbackPlayout struct {
	stop chan struct{}
	done chan struct{}
}

// NewSession binds a UDP socket on the first free port in [portMin, portMax].
func NewSession(localIP string, portMin, portMax int) (*Session, error) {
	for port := portMin; port <= portMax; port += 2 {
		conn, err := net.ListenPacket("udp", fmt.Sprintf("%s:%d", localIP, port))
		if err != nil {
			continue
		}
		return &Session{
			id:    uuid.New().String(),
			conn:  conn,
			codec: CodecPCMU,
		}, nil
	}
	return nil, fmt.Errorf("no free RTP port in range %d-%d", portMin, portMax)
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// LocalAddr returns the bound RTP address.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// LocalPort returns the bound RTP port.
func (s *Session) LocalPort() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// SetRemote points the session at the far end's RTP address, creating
// the stream and DTMF writers. May be called again on re-INVITE.
func (s *Session) SetRemote(host string, port int) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("resolve remote RTP address: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}
	if s.writer != nil {
		s.writer.Close()
	}
	s.remote = addr
	s.writer = NewRTPStreamWriter(s.conn, addr, s.codec)
	s.dtmf = NewDTMFWriter(s.writer, DTMFPayloadType)

	slog.Debug("[Media] Remote endpoint set",
		"session_id", s.id,
		"remote", addr.String(),
		"codec", s.codec.Name,
	)
	return nil
}

// StartRingback begins playing the locally generated ringback tone
// toward the remote party. No-op if already playing or no remote is set.
func (s *Session) StartRingback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.writer == nil || s.ringback != nil {
		return
	}

	playout := &ringbackPlayout{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.ringback = playout

	writer := s.writer
	codec := s.codec
	go func() {
		defer close(playout.done)
		tone := NewRingbackTone()
		samples := codec.SamplesPerFrame()
		first := true
		for {
			select {
			case <-playout.stop:
				return
			default:
			}
			if err := writer.WritePayload(tone.NextFrame(samples), first); err != nil {
				return
			}
			first = false
		}
	}()
}

// StopRingback stops the ringback playout and waits for it to finish.
func (s *Session) StopRingback() {
	s.mu.Lock()
	playout := s.ringback
	s.ringback = nil
	s.mu.Unlock()

	if playout == nil {
		return
	}
	close(playout.stop)
	<-playout.done
}

// StartDTMF begins an RFC 4733 event for the given digit.
func (s *Session) StartDTMF(digit rune) error {
	s.mu.Lock()
	dtmf := s.dtmf
	s.mu.Unlock()
	if dtmf == nil {
		return fmt.Errorf("no remote endpoint for DTMF")
	}
	return dtmf.StartDigit(digit)
}

// StopDTMF ends the DTMF event in progress.
func (s *Session) StopDTMF() {
	s.mu.Lock()
	dtmf := s.dtmf
	s.mu.Unlock()
	if dtmf == nil {
		return
	}
	dtmf.StopDigit()
}

// SetEchoSuppression toggles echo suppression on the audio path.
func (s *Session) SetEchoSuppression(enabled bool) {
	s.mu.Lock()
	changed := s.echoSuppression != enabled
	s.echoSuppression = enabled
	s.mu.Unlock()
	if changed {
		slog.Debug("[Media] Echo suppression toggled", "session_id", s.id, "enabled", enabled)
	}
}

// EchoSuppression reports whether echo suppression is enabled.
func (s *Session) EchoSuppression() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.echoSuppression
}

// Close stops playout, releases the writers, and closes the socket.
func (s *Session) Close() error {
	s.StopRingback()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.dtmf != nil {
		s.dtmf.StopDigit()
	}
	if s.writer != nil {
		s.writer.Close()
	}
	s.mu.Unlock()

	return s.conn.Close()
}
