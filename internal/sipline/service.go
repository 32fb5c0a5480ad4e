// Package sipline is the SIP signaling backend of the line. It terminates
// INVITE dialogs with sipgo, owns the RTP media session of each call, and
// drives the telephony model that the adapter layer projects onto visible
// connections.
package sipline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"

	"github.com/sebas/linegate/internal/adapter"
	"github.com/sebas/linegate/internal/config"
	"github.com/sebas/linegate/internal/events"
	"github.com/sebas/linegate/internal/media"
	"github.com/sebas/linegate/internal/metrics"
	"github.com/sebas/linegate/internal/telecom"
	"github.com/sebas/linegate/internal/telephony"
)

// Line registry TTLs.
const (
	// ActiveLineTTL bounds how long an established call may live.
	ActiveLineTTL = 4 * time.Hour
	// TerminatedLineTTL keeps finished lines around for retransmissions.
	TerminatedLineTTL = 32 * time.Second
	// lineCleanupInterval is how often expired lines are collected.
	lineCleanupInterval = 10 * time.Second

	// ackTimeout is RFC 3261 Timer B: how long to wait for the ACK
	// confirming a sent 200 OK.
	ackTimeout = 32 * time.Second
	// requestTimeout bounds in-dialog client transactions (BYE, re-INVITE).
	requestTimeout = 5 * time.Second
)

// Service is the SIP line. It implements telephony.Driver for the phone
// model and api.ConnectionProvider for the admin API.
type Service struct {
	cfg *config.Config

	ua       *sipgo.UserAgent
	srv      *sipgo.Server
	client   *sipgo.Client
	dialogUA *sipgo.DialogUA

	phone     *telephony.Phone
	builder   *events.Builder
	publisher events.Publisher
	collector *metrics.Collector

	lines        *ttlStore[string, *line]
	localContact sip.Uri
}

// New creates the SIP line service.
func New(cfg *config.Config, collector *metrics.Collector, publisher events.Publisher) (*Service, error) {
	ua, err := sipgo.NewUA()
	if err != nil {
		return nil, fmt.Errorf("create user agent: %w", err)
	}
	srv, err := sipgo.NewServer(ua)
	if err != nil {
		ua.Close()
		return nil, fmt.Errorf("create server: %w", err)
	}
	client, err := sipgo.NewClient(ua)
	if err != nil {
		ua.Close()
		return nil, fmt.Errorf("create client: %w", err)
	}

	localContact := sip.Uri{
		Scheme: telecom.URISchemeSIP,
		User:   cfg.UserAgent,
		Host:   cfg.AdvertiseAddr,
		Port:   cfg.SIPPort,
	}
	dialogUA := &sipgo.DialogUA{
		Client:     client,
		ContactHDR: sip.ContactHeader{Address: localContact},
	}

	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}

	s := &Service{
		cfg:          cfg,
		ua:           ua,
		srv:          srv,
		client:       client,
		dialogUA:     dialogUA,
		builder:      events.NewBuilder(cfg.NodeID),
		publisher:    publisher,
		collector:    collector,
		localContact: localContact,
	}
	s.phone = telephony.NewPhone(s, telephony.WithMultipartyCapability(cfg.MultipartyCapable))
	s.lines = newTTLStore[string, *line](lineCleanupInterval, func(callID string, ln *line) {
		slog.Debug("[Line] Evicted from registry", "call_id", callID, "state", ln.dialog.GetState())
	})

	srv.OnRequest(sip.INVITE, s.handleINVITE)
	srv.OnRequest(sip.ACK, s.handleACK)
	srv.OnRequest(sip.BYE, s.handleBYE)
	srv.OnRequest(sip.CANCEL, s.handleCANCEL)

	return s, nil
}

// Phone returns the telephony model this service drives.
func (s *Service) Phone() *telephony.Phone {
	return s.phone
}

// Start binds the SIP listener and serves until the context ends.
func (s *Service) Start(ctx context.Context) error {
	listenAddr := fmt.Sprintf("%s:%d", s.cfg.BindAddr, s.cfg.SIPPort)
	slog.Info("[SIP] Starting listener", "addr", listenAddr)
	return s.srv.ListenAndServe(ctx, "udp", listenAddr)
}

// Close hangs up every live call and releases the SIP stack.
func (s *Service) Close() error {
	s.lines.ForEach(func(_ string, ln *line) bool {
		if ln.leg != nil && ln.leg.State().IsAlive() {
			if err := s.HangupLeg(ln.leg); err != nil {
				slog.Warn("[SIP] Hangup during shutdown failed",
					"call_id", ln.dialog.CallID,
					"error", err,
				)
			}
		}
		return true
	})
	s.lines.Close()
	return s.ua.Close()
}

// findLine returns the line for a Call-ID.
func (s *Service) findLine(callID string) (*line, bool) {
	return s.lines.Get(callID)
}

// findLineByLeg returns the line owning the given leg.
func (s *Service) findLineByLeg(leg *telephony.Leg) (*line, bool) {
	var found *line
	s.lines.ForEach(func(_ string, ln *line) bool {
		if ln.leg == leg {
			found = ln
			return false
		}
		return true
	})
	return found, found != nil
}

// findLineByCall returns the line whose leg belongs to the given call.
func (s *Service) findLineByCall(call *telephony.Call) (*line, bool) {
	var found *line
	s.lines.ForEach(func(_ string, ln *line) bool {
		if ln.call == call {
			found = ln
			return false
		}
		return true
	})
	return found, found != nil
}

// newLine builds the full per-call stack for a dialog: media session,
// telephony call and leg, connection, and adapter, all wired together.
func (s *Service) newLine(dlg *Dialog, session *media.Session, address, displayName string) *line {
	call := s.phone.NewCall()
	opts := []telephony.LegOption{
		telephony.WithAddress(address, telecom.PresentationAllowed),
	}
	if displayName != "" {
		opts = append(opts, telephony.WithDisplayName(displayName, telecom.PresentationAllowed))
	}
	leg := call.NewLeg(opts...)

	conn := telecom.NewConnection()
	adp := adapter.New(conn, s.cfg.EventBufferSize)

	ln := &line{
		dialog:    dlg,
		session:   session,
		call:      call,
		leg:       leg,
		adp:       adp,
		createdAt: time.Now(),
	}
	s.lines.Set(dlg.CallID, ln, ActiveLineTTL)

	s.watchConnection(ln)
	adp.Bind(leg)
	adp.AddedToCallService()
	return ln
}

// --- Inbound request handlers ---

// handleINVITE processes a new incoming call, or a re-INVITE on an
// established dialog.
func (s *Service) handleINVITE(req *sip.Request, tx sip.ServerTransaction) {
	callID := callIDOf(req)
	slog.Info("[SIP] INVITE received",
		"call_id", callID,
		"from", req.From(),
		"to", req.To(),
	)

	if existing, ok := s.findLine(callID); ok && !existing.dialog.IsTerminated() {
		s.handleReINVITE(existing, req, tx)
		return
	}

	dlg := newInboundDialog(req, tx)
	s.respond(req, tx, sip.StatusTrying, "Trying", nil)
	if err := dlg.TransitionTo(DialogEarly); err != nil {
		slog.Warn("[SIP] Dialog transition failed", "call_id", callID, "error", err)
	}

	remote, err := parseRemoteMedia(req.Body())
	if err != nil {
		slog.Warn("[SIP] INVITE with unusable SDP", "call_id", callID, "error", err)
		s.respond(req, tx, sip.StatusNotAcceptable, "Not Acceptable", nil)
		s.terminateDialog(dlg, ReasonError)
		return
	}

	session, err := media.NewSession(s.cfg.BindAddr, s.cfg.RTPPortMin, s.cfg.RTPPortMax)
	if err != nil {
		slog.Error("[SIP] RTP allocation failed", "call_id", callID, "error", err)
		s.respond(req, tx, sip.StatusServiceUnavailable, "Service Unavailable", nil)
		s.terminateDialog(dlg, ReasonError)
		return
	}
	if err := session.SetRemote(remote.Addr, remote.Port); err != nil {
		slog.Error("[SIP] Remote media endpoint rejected", "call_id", callID, "error", err)
		s.respond(req, tx, sip.StatusNotAcceptable, "Not Acceptable", nil)
		_ = session.Close()
		s.terminateDialog(dlg, ReasonError)
		return
	}

	// A second incoming call while one is already ringing is refused; one
	// on top of an established call rings as call waiting.
	ringingState := telephony.StateIncoming
	if s.phone.RingingCall() != nil {
		slog.Info("[SIP] Line busy, refusing INVITE", "call_id", callID)
		s.respond(req, tx, sip.StatusBusyHere, "Busy Here", nil)
		_ = session.Close()
		s.terminateDialog(dlg, ReasonRejected)
		return
	}
	if s.phone.ActiveCall() != nil || s.phone.HoldingCall() != nil {
		ringingState = telephony.StateWaiting
	}

	address, displayName := callerIdentity(req)
	ln := s.newLine(dlg, session, address, displayName)

	s.respond(req, tx, sip.StatusRinging, "Ringing", nil)
	ln.leg.SetState(ringingState)
}

// handleReINVITE answers a session refresh on an established dialog. The
// remote endpoint may have moved, so the media session is repointed, and
// the answer repeats our unchanged local endpoint.
func (s *Service) handleReINVITE(ln *line, req *sip.Request, tx sip.ServerTransaction) {
	callID := ln.dialog.CallID
	slog.Info("[SIP] re-INVITE received", "call_id", callID)

	if ln.dialog.GetState() != DialogConfirmed {
		// Could also be an INVITE retransmission while we ring; ignore it
		// and let the transaction layer retransmit our provisional.
		slog.Debug("[SIP] INVITE retransmission ignored",
			"call_id", callID,
			"state", ln.dialog.GetState(),
		)
		return
	}

	if remote, err := parseRemoteMedia(req.Body()); err == nil {
		if err := ln.session.SetRemote(remote.Addr, remote.Port); err != nil {
			slog.Warn("[SIP] re-INVITE remote update failed", "call_id", callID, "error", err)
		}
	}

	answer, err := buildSDP(s.cfg.UserAgent, s.cfg.AdvertiseAddr, ln.session.LocalPort(), ln.nextSDPVersion(), sdpSendRecv)
	if err != nil {
		slog.Error("[SIP] re-INVITE answer SDP failed", "call_id", callID, "error", err)
		s.respond(req, tx, sip.StatusInternalServerError, "Server Error", nil)
		return
	}
	resp := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", answer)
	ct := sip.ContentTypeHeader("application/sdp")
	resp.AppendHeader(&ct)
	if err := tx.Respond(resp); err != nil {
		slog.Error("[SIP] re-INVITE response failed", "call_id", callID, "error", err)
	}
}

// handleACK confirms a dialog we answered.
func (s *Service) handleACK(req *sip.Request, tx sip.ServerTransaction) {
	callID := callIDOf(req)
	ln, ok := s.findLine(callID)
	if !ok {
		slog.Debug("[SIP] ACK for unknown dialog", "call_id", callID)
		return
	}

	state := ln.dialog.GetState()
	if state != DialogWaitingACK {
		if state == DialogConfirmed {
			slog.Debug("[SIP] ACK retransmission ignored", "call_id", callID)
		} else {
			slog.Debug("[SIP] ACK in unexpected state", "call_id", callID, "state", state)
		}
		return
	}

	if ln.dialog.Session != nil {
		if err := ln.dialog.Session.ReadAck(req, tx); err != nil {
			slog.Warn("[SIP] ACK read failed", "call_id", callID, "error", err)
		}
	}
	if err := ln.dialog.TransitionTo(DialogConfirmed); err != nil {
		slog.Warn("[SIP] Dialog transition failed", "call_id", callID, "error", err)
		return
	}
	slog.Info("[SIP] Dialog confirmed", "call_id", callID)
}

// handleBYE ends an established call at the remote party's request.
func (s *Service) handleBYE(req *sip.Request, tx sip.ServerTransaction) {
	callID := callIDOf(req)
	ln, ok := s.findLine(callID)
	if !ok {
		s.respond(req, tx, 481, "Call/Transaction Does Not Exist", nil)
		return
	}

	if ln.dialog.Session != nil {
		if err := ln.dialog.Session.ReadBye(req, tx); err != nil {
			slog.Warn("[SIP] BYE read failed", "call_id", callID, "error", err)
		}
	} else {
		s.respond(req, tx, sip.StatusOK, "OK", nil)
	}

	slog.Info("[SIP] BYE received", "call_id", callID)
	s.terminateDialog(ln.dialog, ReasonRemoteBYE)
	ln.leg.SetDisconnected(telecom.CauseNormalRemote)
}

// handleCANCEL abandons a call we have not answered yet. The caller gave up,
// so the leg ends as a missed call.
func (s *Service) handleCANCEL(req *sip.Request, tx sip.ServerTransaction) {
	callID := callIDOf(req)
	ln, ok := s.findLine(callID)
	if !ok {
		s.respond(req, tx, 481, "Call/Transaction Does Not Exist", nil)
		return
	}

	state := ln.dialog.GetState()
	if state != DialogEarly && state != DialogWaitingACK {
		slog.Warn("[SIP] CANCEL in unexpected state", "call_id", callID, "state", state)
		s.respond(req, tx, 481, "Call/Transaction Does Not Exist", nil)
		return
	}

	s.respond(req, tx, sip.StatusOK, "OK", nil)
	if ln.dialog.Transaction != nil {
		terminated := sip.NewResponseFromRequest(ln.dialog.InviteRequest, 487, "Request Terminated", nil)
		if err := ln.dialog.Transaction.Respond(terminated); err != nil {
			slog.Warn("[SIP] 487 response failed", "call_id", callID, "error", err)
		}
	}

	slog.Info("[SIP] CANCEL received", "call_id", callID)
	s.terminateDialog(ln.dialog, ReasonCancel)
	ln.leg.SetDisconnected(telecom.CauseIncomingMissed)
}

// respond sends a simple response on a server transaction.
func (s *Service) respond(req *sip.Request, tx sip.ServerTransaction, code sip.StatusCode, reason string, body []byte) {
	resp := sip.NewResponseFromRequest(req, code, reason, body)
	if err := tx.Respond(resp); err != nil {
		slog.Warn("[SIP] Response failed",
			"call_id", callIDOf(req),
			"status", code,
			"error", err,
		)
	}
}

// terminateDialog moves a dialog to its final state and closes its sipgo
// session. The line entry is reduced to the retransmission TTL.
func (s *Service) terminateDialog(dlg *Dialog, reason TerminateReason) {
	if dlg.IsTerminated() {
		return
	}
	dlg.mu.Lock()
	dlg.TerminateReason = reason
	dlg.mu.Unlock()

	dlg.Cancel()
	if err := dlg.TransitionTo(DialogTerminated); err != nil {
		slog.Warn("[SIP] Dialog termination transition failed", "call_id", dlg.CallID, "error", err)
	}
	if dlg.Session != nil {
		_ = dlg.Session.Close()
	}
	if ln, ok := s.findLine(dlg.CallID); ok {
		s.lines.Set(dlg.CallID, ln, TerminatedLineTTL)
	}
	slog.Debug("[SIP] Dialog terminated", "call_id", dlg.CallID, "reason", reason)
}

// watchACKTimeout terminates the dialog when the ACK for a sent 200 OK
// never arrives.
func (s *Service) watchACKTimeout(ln *line) {
	select {
	case <-ln.dialog.Context().Done():
		return
	case <-time.After(ackTimeout):
		if ln.dialog.GetState() != DialogWaitingACK {
			return
		}
		slog.Warn("[SIP] ACK timeout", "call_id", ln.dialog.CallID)
		s.terminateDialog(ln.dialog, ReasonTimeout)
		ln.leg.SetDisconnected(telecom.CauseError)
	}
}

// callerIdentity extracts the remote party's address and display name from
// the INVITE's From header.
func callerIdentity(req *sip.Request) (address, displayName string) {
	from := req.From()
	if from == nil {
		return "", ""
	}
	address = from.Address.User
	if address == "" {
		address = from.Address.Host
	}
	displayName = from.DisplayName
	return address, displayName
}

// newTag generates a tag for From headers on requests we originate.
func newTag() string {
	return uuid.New().String()[:8]
}
