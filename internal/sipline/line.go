package sipline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sebas/linegate/internal/adapter"
	"github.com/sebas/linegate/internal/api"
	"github.com/sebas/linegate/internal/events"
	"github.com/sebas/linegate/internal/media"
	"github.com/sebas/linegate/internal/telecom"
	"github.com/sebas/linegate/internal/telephony"
)

// line ties one SIP dialog to everything built on top of it: the media
// session, the telephony call and leg, and the visible connection with its
// adapter.
type line struct {
	dialog  *Dialog
	session *media.Session
	call    *telephony.Call
	leg     *telephony.Leg
	adp     *adapter.Adapter

	mu         sync.Mutex
	createdAt  time.Time
	answeredAt time.Time
	sdpVersion uint64
	unwatch    []func()
}

// nextSDPVersion returns a strictly increasing session version for each
// SDP body offered or answered on this line.
func (ln *line) nextSDPVersion() uint64 {
	ln.mu.Lock()
	defer ln.mu.Unlock()
	ln.sdpVersion++
	return ln.sdpVersion
}

func (ln *line) conn() *telecom.Connection {
	return ln.adp.Connection()
}

// markAnswered records the answer time once.
func (ln *line) markAnswered() {
	ln.mu.Lock()
	if ln.answeredAt.IsZero() {
		ln.answeredAt = time.Now()
	}
	ln.mu.Unlock()
}

// durations returns talk time and total time at the moment of disconnect.
func (ln *line) durations() (talk, total time.Duration) {
	ln.mu.Lock()
	defer ln.mu.Unlock()
	now := time.Now()
	if !ln.answeredAt.IsZero() {
		talk = now.Sub(ln.answeredAt)
	}
	total = now.Sub(ln.createdAt)
	return talk, total
}

// addWatcher records a listener unsubscribe for teardown.
func (ln *line) addWatcher(unsub func()) {
	ln.mu.Lock()
	ln.unwatch = append(ln.unwatch, unsub)
	ln.mu.Unlock()
}

// release unsubscribes all connection listeners.
func (ln *line) release() {
	ln.mu.Lock()
	watchers := ln.unwatch
	ln.unwatch = nil
	ln.mu.Unlock()
	for _, unsub := range watchers {
		unsub()
	}
}

// watchConnection wires the line's connection to events, metrics, and the
// media session. State transitions publish lifecycle events; the ringback
// request drives local tone playout.
func (s *Service) watchConnection(ln *line) {
	conn := ln.conn()
	callID := ln.dialog.CallID
	direction := events.DirectionInbound
	if ln.dialog.Direction == DirectionOutbound {
		direction = events.DirectionOutbound
	}

	unsubState := conn.OnStateChange(func(c *telecom.Connection, old, next telecom.ConnectionState) {
		s.collector.StateTransition(old.String(), next.String())

		switch next {
		case telecom.StateDialing:
			s.publisher.PublishAsync(s.builder.Dialing(c.ID(), callID).
				Handle(c.Handle()).
				Ringback(c.RequestingRingback()).
				Build())
		case telecom.StateRinging:
			s.publisher.PublishAsync(s.builder.Ringing(c.ID(), callID).
				Handle(c.Handle()).
				DisplayName(c.CallerDisplayName()).
				Build())
		case telecom.StateActive:
			ln.markAnswered()
			ln.session.StopRingback()
			s.publisher.PublishAsync(s.builder.Active(c.ID(), callID).
				Capabilities(c.Capabilities().String()).
				Build())
		case telecom.StateOnHold:
			s.publisher.PublishAsync(s.builder.Held(c.ID(), callID))
		case telecom.StateDisconnected:
			ln.session.StopRingback()
			talk, total := ln.durations()
			s.publisher.PublishAsync(s.builder.Disconnected(c.ID(), callID).
				Cause(c.DisconnectCause().String()).
				Durations(talk, total).
				Build())
			if talk > 0 {
				s.collector.CallEnded(talk)
			}
		case telecom.StateDestroyed:
			s.publisher.PublishAsync(s.builder.Destroyed(c.ID(), callID))
			s.collector.ConnectionDestroyed()
			ln.release()
			s.finishLine(ln)
		}
	})
	ln.addWatcher(unsubState)

	unsubRing := conn.OnRingback(func(_ *telecom.Connection, requesting bool) {
		if requesting {
			ln.session.StartRingback()
		} else {
			ln.session.StopRingback()
		}
	})
	ln.addWatcher(unsubRing)

	// The adapter has not synced the connection identity yet, so the
	// created event derives it from the leg directly.
	handle := telecom.BuildHandle(ln.leg.Address())
	s.publisher.PublishAsync(s.builder.Created(conn.ID(), callID).
		Direction(direction).
		Handle(handle).
		DisplayName(ln.leg.DisplayName()).
		Build())
	s.collector.ConnectionCreated(string(direction))
}

// finishLine releases the line's media and drops its finished call from the
// phone. The dialog entry stays in the registry with a short TTL so late
// retransmissions still match.
func (s *Service) finishLine(ln *line) {
	_ = ln.session.Close()
	if ln.call != nil {
		s.phone.ReleaseCall(ln.call)
	}
	s.lines.Set(ln.dialog.CallID, ln, TerminatedLineTTL)
}

// --- api.Dialer ---

// DialOut originates a call for the admin API. The INVITE transaction
// outlives the HTTP request, so it runs under its own context.
func (s *Service) DialOut(target, displayName string) (api.ConnectionInfo, error) {
	conn, err := s.Dial(context.Background(), target, displayName)
	if err != nil {
		return api.ConnectionInfo{}, err
	}
	info, ok := s.GetConnection(conn.ID())
	if !ok {
		return api.ConnectionInfo{}, fmt.Errorf("dial: connection %s not tracked", conn.ID())
	}
	return info, nil
}

// --- api.ConnectionProvider ---

// ListConnections returns the API view of every tracked connection.
func (s *Service) ListConnections() []api.ConnectionInfo {
	var infos []api.ConnectionInfo
	s.lines.ForEach(func(_ string, ln *line) bool {
		infos = append(infos, s.connectionInfo(ln))
		return true
	})
	return infos
}

// GetConnection returns one connection by its identifier.
func (s *Service) GetConnection(id string) (api.ConnectionInfo, bool) {
	var found *line
	s.lines.ForEach(func(_ string, ln *line) bool {
		if ln.conn().ID() == id {
			found = ln
			return false
		}
		return true
	})
	if found == nil {
		return api.ConnectionInfo{}, false
	}
	return s.connectionInfo(found), true
}

func (s *Service) connectionInfo(ln *line) api.ConnectionInfo {
	conn := ln.conn()
	ln.mu.Lock()
	createdAt := ln.createdAt
	ln.mu.Unlock()

	info := api.ConnectionInfo{
		ID:           conn.ID(),
		State:        conn.State().String(),
		Direction:    ln.dialog.Direction.String(),
		Handle:       conn.Handle(),
		DisplayName:  conn.CallerDisplayName(),
		Capabilities: conn.Capabilities().String(),
		CreatedAt:    createdAt,
	}
	if state := conn.State(); state == telecom.StateDisconnected || state == telecom.StateDestroyed {
		info.Cause = conn.DisconnectCause().String()
	}
	return info
}
