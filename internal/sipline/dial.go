package sipline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"

	"github.com/sebas/linegate/internal/media"
	"github.com/sebas/linegate/internal/telecom"
	"github.com/sebas/linegate/internal/telephony"
)

// dialTimeout bounds how long an outbound INVITE may ring unanswered.
const dialTimeout = 60 * time.Second

// Dial originates an outbound call to the given target, which may be a
// full SIP URI or a user@host address. It returns the visible connection
// immediately; the INVITE transaction runs in the background and drives
// the connection through Dialing, Ringing (remote), and Active.
func (s *Service) Dial(ctx context.Context, target, displayName string) (*telecom.Connection, error) {
	address := strings.TrimPrefix(target, telecom.URISchemeSIP+":")
	if !strings.Contains(address, "@") {
		address = fmt.Sprintf("%s@%s", address, s.cfg.AdvertiseAddr)
	}

	var targetURI sip.Uri
	if err := sip.ParseUri(telecom.BuildHandle(address), &targetURI); err != nil {
		return nil, fmt.Errorf("dial: invalid target %q: %w", target, err)
	}

	session, err := media.NewSession(s.cfg.BindAddr, s.cfg.RTPPortMin, s.cfg.RTPPortMax)
	if err != nil {
		return nil, fmt.Errorf("dial: allocate RTP: %w", err)
	}

	offer, err := buildSDP(s.cfg.UserAgent, s.cfg.AdvertiseAddr, session.LocalPort(), 1, sdpSendRecv)
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("dial: %w", err)
	}

	invite := s.buildINVITE(targetURI, uuid.New().String(), offer)
	dlg := newOutboundDialog(invite)

	ln := s.newLine(dlg, session, targetURI.User, displayName)
	ln.mu.Lock()
	ln.sdpVersion = 1
	ln.mu.Unlock()

	slog.Info("[SIP] Dialing", "call_id", dlg.CallID, "target", targetURI.String())
	ln.leg.SetState(telephony.StateDialing)

	go s.runDial(ctx, ln, invite)
	return ln.conn(), nil
}

// buildINVITE constructs the initial out-of-dialog INVITE.
func (s *Service) buildINVITE(targetURI sip.Uri, callID string, sdpBody []byte) *sip.Request {
	invite := sip.NewRequest(sip.INVITE, targetURI)

	maxFwd := sip.MaxForwardsHeader(70)
	invite.AppendHeader(&maxFwd)

	fromParams := sip.NewParams()
	fromParams.Add("tag", newTag())
	invite.AppendHeader(&sip.FromHeader{
		DisplayName: s.cfg.UserAgent,
		Address:     s.localContact,
		Params:      fromParams,
	})
	invite.AppendHeader(&sip.ToHeader{
		Address: targetURI,
		Params:  sip.NewParams(),
	})

	callIDHdr := sip.CallIDHeader(callID)
	invite.AppendHeader(&callIDHdr)
	invite.AppendHeader(&sip.CSeqHeader{
		SeqNo:      1,
		MethodName: sip.INVITE,
	})
	invite.AppendHeader(&sip.ContactHeader{Address: s.localContact})

	contentType := sip.ContentTypeHeader("application/sdp")
	invite.AppendHeader(&contentType)
	invite.SetBody(sdpBody)

	return invite
}

// runDial sends the INVITE and walks the response flow until the call is
// answered, rejected, cancelled, or times out.
func (s *Service) runDial(ctx context.Context, ln *line, invite *sip.Request) {
	dlg := ln.dialog

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	tx, err := s.client.TransactionRequest(dialCtx, invite)
	if err != nil {
		slog.Error("[SIP] INVITE send failed", "call_id", dlg.CallID, "error", err)
		s.terminateDialog(dlg, ReasonError)
		ln.leg.SetDisconnected(telecom.CauseError)
		return
	}

	for {
		select {
		case <-dlg.Context().Done():
			// Local hangup while dialing.
			s.sendCANCEL(dlg, invite)
			s.terminateDialog(dlg, ReasonCancel)
			if ln.leg.State().IsAlive() {
				ln.leg.SetDisconnected(telecom.CauseNormalLocal)
			}
			return

		case <-dialCtx.Done():
			s.sendCANCEL(dlg, invite)
			if ctx.Err() != nil {
				s.terminateDialog(dlg, ReasonCancel)
				if ln.leg.State().IsAlive() {
					ln.leg.SetDisconnected(telecom.CauseNormalLocal)
				}
				return
			}
			slog.Info("[SIP] Dial timed out", "call_id", dlg.CallID)
			s.terminateDialog(dlg, ReasonTimeout)
			ln.leg.SetDisconnected(telecom.CauseError)
			return

		case resp := <-tx.Responses():
			if resp == nil {
				s.terminateDialog(dlg, ReasonError)
				ln.leg.SetDisconnected(telecom.CauseError)
				return
			}
			if done := s.handleDialResponse(ln, invite, resp); done {
				return
			}

		case <-tx.Done():
			if ln.leg.State().IsAlive() {
				s.terminateDialog(dlg, ReasonError)
				ln.leg.SetDisconnected(telecom.CauseError)
			}
			return
		}
	}
}

// handleDialResponse processes one response to the outbound INVITE.
// Returns true once a final response settled the call.
func (s *Service) handleDialResponse(ln *line, invite *sip.Request, resp *sip.Response) bool {
	dlg := ln.dialog
	code := int(resp.StatusCode)

	switch {
	case code == 100:
		slog.Debug("[SIP] 100 Trying", "call_id", dlg.CallID)
		if dlg.GetState() == DialogInitial {
			_ = dlg.TransitionTo(DialogEarly)
		}
		return false

	case code == 180 || code == 181:
		slog.Info("[SIP] Remote ringing", "call_id", dlg.CallID)
		if dlg.GetState() == DialogInitial {
			_ = dlg.TransitionTo(DialogEarly)
		}
		ln.leg.SetState(telephony.StateAlerting)
		return false

	case code == 183:
		// Early media: the far end streams its own progress audio.
		if dlg.GetState() == DialogInitial {
			_ = dlg.TransitionTo(DialogEarly)
		}
		if remote, err := parseRemoteMedia(resp.Body()); err == nil {
			if err := ln.session.SetRemote(remote.Addr, remote.Port); err != nil {
				slog.Warn("[SIP] Early media setup failed", "call_id", dlg.CallID, "error", err)
			}
		}
		ln.leg.SetState(telephony.StateAlerting)
		return false

	case code >= 200 && code < 300:
		if err := dlg.ConfirmOutbound(resp); err != nil {
			slog.Warn("[SIP] Dialog confirm failed", "call_id", dlg.CallID, "error", err)
		}
		if remote, err := parseRemoteMedia(resp.Body()); err == nil {
			if err := ln.session.SetRemote(remote.Addr, remote.Port); err != nil {
				slog.Warn("[SIP] Answer media setup failed", "call_id", dlg.CallID, "error", err)
			}
		} else {
			slog.Warn("[SIP] Answer without usable SDP", "call_id", dlg.CallID, "error", err)
		}
		if err := s.sendACK(invite, resp); err != nil {
			// The 200 OK still stands; the far end will retransmit it
			// until an ACK gets through.
			slog.Warn("[SIP] ACK failed", "call_id", dlg.CallID, "error", err)
		}
		slog.Info("[SIP] Call answered by remote", "call_id", dlg.CallID)
		ln.leg.SetState(telephony.StateActive)
		return true

	case code >= 300:
		slog.Info("[SIP] Call failed",
			"call_id", dlg.CallID,
			"status", code,
			"reason", resp.Reason,
		)
		s.terminateDialog(dlg, ReasonRejected)
		ln.leg.SetDisconnected(causeForStatus(code))
		return true
	}

	return false
}

// sendACK acknowledges a 2xx response. Per RFC 3261 the ACK for a 2xx is a
// new request outside the INVITE transaction, targeted at the Contact from
// the response and sent back to where the response came from.
func (s *Service) sendACK(invite *sip.Request, resp *sip.Response) error {
	requestURI := invite.Recipient
	if contact := resp.Contact(); contact != nil {
		requestURI = contact.Address
	}

	ack := sip.NewRequest(sip.ACK, requestURI)
	sip.CopyHeaders("From", invite, ack)
	sip.CopyHeaders("Call-ID", invite, ack)
	if to := resp.To(); to != nil {
		ack.AppendHeader(&sip.ToHeader{
			DisplayName: to.DisplayName,
			Address:     to.Address,
			Params:      to.Params,
		})
	}
	if cseq := invite.CSeq(); cseq != nil {
		ack.AppendHeader(&sip.CSeqHeader{
			SeqNo:      cseq.SeqNo,
			MethodName: sip.ACK,
		})
	}
	maxFwd := sip.MaxForwardsHeader(70)
	ack.AppendHeader(&maxFwd)

	destAddr := resp.Source()
	if destAddr == "" {
		if via := resp.Via(); via != nil {
			host := via.Host
			port := via.Port
			if received, ok := via.Params.Get("received"); ok {
				host = received
			}
			if rport, ok := via.Params.Get("rport"); ok && rport != "" {
				_, _ = fmt.Sscanf(rport, "%d", &port)
			}
			destAddr = fmt.Sprintf("%s:%d", host, port)
		}
	}
	if destAddr == "" {
		port := requestURI.Port
		if port == 0 {
			port = 5060
		}
		destAddr = fmt.Sprintf("%s:%d", requestURI.Host, port)
	}
	ack.SetDestination(destAddr)

	if err := s.client.WriteRequest(ack); err != nil {
		return fmt.Errorf("write ACK: %w", err)
	}
	slog.Debug("[SIP] ACK sent", "dest", destAddr)
	return nil
}

// sendCANCEL cancels an in-progress INVITE per RFC 3261 Section 9.1.
func (s *Service) sendCANCEL(dlg *Dialog, invite *sip.Request) {
	cancelReq := sip.NewRequest(sip.CANCEL, invite.Recipient)
	sip.CopyHeaders("Via", invite, cancelReq)
	sip.CopyHeaders("From", invite, cancelReq)
	sip.CopyHeaders("To", invite, cancelReq)
	sip.CopyHeaders("Call-ID", invite, cancelReq)
	if cseq := invite.CSeq(); cseq != nil {
		cancelReq.AppendHeader(&sip.CSeqHeader{
			SeqNo:      cseq.SeqNo,
			MethodName: sip.CANCEL,
		})
	}
	maxFwd := sip.MaxForwardsHeader(70)
	cancelReq.AppendHeader(&maxFwd)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	tx, err := s.client.TransactionRequest(ctx, cancelReq)
	if err != nil {
		slog.Warn("[SIP] CANCEL send failed", "call_id", dlg.CallID, "error", err)
		return
	}
	select {
	case resp := <-tx.Responses():
		if resp != nil {
			slog.Debug("[SIP] CANCEL response", "call_id", dlg.CallID, "status", resp.StatusCode)
		}
	case <-tx.Done():
	case <-ctx.Done():
	}
	slog.Info("[SIP] CANCEL sent", "call_id", dlg.CallID)
}

// causeForStatus maps a SIP failure status to a disconnect cause.
func causeForStatus(code int) telecom.DisconnectCause {
	switch code {
	case 486, 600:
		return telecom.CauseBusy
	case 480, 503:
		return telecom.CauseCongestion
	case 403, 603:
		return telecom.CauseRejected
	default:
		return telecom.CauseError
	}
}
