package sipline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/linegate/internal/telecom"
	"github.com/sebas/linegate/internal/telephony"
)

// The service is the phone's signaling driver: every telephony operation
// with a wire side effect lands here and turns into SIP.
var _ telephony.Driver = (*Service)(nil)

// outcome maps a driver result to a command metric label.
func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

// HangupLeg ends one leg. An established dialog gets a BYE; an unanswered
// incoming call is refused with 486; an unanswered outgoing call is
// cancelled.
func (s *Service) HangupLeg(leg *telephony.Leg) (err error) {
	defer func() { s.collector.Command("hangup_leg", outcome(err)) }()
	ln, ok := s.findLineByLeg(leg)
	if !ok {
		return fmt.Errorf("hangup: no dialog for leg %s", leg.ID())
	}

	dlg := ln.dialog
	state := dlg.GetState()
	slog.Info("[SIP] Local hangup",
		"call_id", dlg.CallID,
		"dialog_state", state,
		"direction", dlg.Direction,
	)

	switch {
	case state == DialogConfirmed || state == DialogWaitingACK:
		leg.SetState(telephony.StateDisconnecting)
		if err := s.sendBYE(dlg); err != nil {
			slog.Warn("[SIP] BYE failed", "call_id", dlg.CallID, "error", err)
		}
		s.terminateDialog(dlg, ReasonLocalBYE)

	case dlg.Direction == DirectionInbound:
		// Ringing, never answered. Refusing locally looks like busy to
		// the caller.
		if dlg.Transaction != nil {
			busy := sip.NewResponseFromRequest(dlg.InviteRequest, sip.StatusBusyHere, "Busy Here", nil)
			if err := dlg.Transaction.Respond(busy); err != nil {
				slog.Warn("[SIP] 486 response failed", "call_id", dlg.CallID, "error", err)
			}
		}
		s.terminateDialog(dlg, ReasonRejected)

	default:
		// Outbound, no final response yet. The dial loop owns the client
		// transaction; cancelling the dialog context makes it send CANCEL.
		leg.SetState(telephony.StateDisconnecting)
		dlg.Cancel()
	}

	leg.SetDisconnected(telecom.CauseNormalLocal)
	return nil
}

// HangupCall ends every live leg of a call.
func (s *Service) HangupCall(call *telephony.Call) (err error) {
	defer func() { s.collector.Command("hangup_call", outcome(err)) }()

	var firstErr error
	for _, leg := range call.Legs() {
		if !leg.State().IsAlive() && !leg.State().IsRinging() {
			continue
		}
		if err := s.HangupLeg(leg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SeparateLeg would split a leg out of a conference. The line has no local
// mixer, so there is nothing to separate from.
func (s *Service) SeparateLeg(leg *telephony.Leg) error {
	s.collector.Command("separate", "failed")
	return fmt.Errorf("separate: no conference bridge on this line")
}

// AcceptCall answers a ringing inbound call: 200 OK with our SDP answer,
// then the leg goes active while the ACK watcher confirms the dialog.
func (s *Service) AcceptCall(call *telephony.Call, videoMode int) (err error) {
	defer func() { s.collector.Command("accept", outcome(err)) }()

	ln, ok := s.findLineByCall(call)
	if !ok {
		return fmt.Errorf("accept: no dialog for call %s", call.ID())
	}
	dlg := ln.dialog
	if dlg.Direction != DirectionInbound || dlg.GetState() != DialogEarly {
		return fmt.Errorf("accept: dialog %s not answerable in state %s", dlg.CallID, dlg.GetState())
	}

	answer, err := buildSDP(s.cfg.UserAgent, s.cfg.AdvertiseAddr, ln.session.LocalPort(), ln.nextSDPVersion(), sdpSendRecv)
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}

	session, err := s.dialogUA.ReadInvite(dlg.InviteRequest, dlg.Transaction)
	if err != nil {
		return fmt.Errorf("accept: create dialog session: %w", err)
	}
	dlg.SetSession(session)

	if err := session.RespondSDP(answer); err != nil {
		_ = session.Close()
		return fmt.Errorf("accept: send 200 OK: %w", err)
	}
	dlg.SetInviteResponse(session.InviteResponse)

	if err := dlg.TransitionTo(DialogWaitingACK); err != nil {
		slog.Warn("[SIP] Dialog transition failed", "call_id", dlg.CallID, "error", err)
	}
	go s.watchACKTimeout(ln)

	slog.Info("[SIP] Call answered", "call_id", dlg.CallID)
	ln.leg.SetState(telephony.StateActive)
	return nil
}

// RejectCall declines a ringing inbound call with 486 Busy Here.
func (s *Service) RejectCall(call *telephony.Call) (err error) {
	defer func() { s.collector.Command("reject", outcome(err)) }()

	ln, ok := s.findLineByCall(call)
	if !ok {
		return fmt.Errorf("reject: no dialog for call %s", call.ID())
	}
	dlg := ln.dialog
	if dlg.Direction != DirectionInbound || dlg.GetState() != DialogEarly {
		return fmt.Errorf("reject: dialog %s not rejectable in state %s", dlg.CallID, dlg.GetState())
	}

	if dlg.Transaction != nil {
		busy := sip.NewResponseFromRequest(dlg.InviteRequest, sip.StatusBusyHere, "Busy Here", nil)
		if err := dlg.Transaction.Respond(busy); err != nil {
			slog.Warn("[SIP] 486 response failed", "call_id", dlg.CallID, "error", err)
		}
	}
	s.terminateDialog(dlg, ReasonRejected)

	slog.Info("[SIP] Call rejected", "call_id", dlg.CallID)
	ln.leg.SetDisconnected(telecom.CauseRejected)
	return nil
}

// SwitchHoldingAndActive swaps hold state via re-INVITE: an active call is
// put on hold with a sendonly offer, a held call is resumed with sendrecv.
func (s *Service) SwitchHoldingAndActive() (err error) {
	defer func() { s.collector.Command("switch_hold", outcome(err)) }()

	if active := s.phone.ActiveCall(); active != nil {
		ln, ok := s.findLineByCall(active)
		if !ok {
			return fmt.Errorf("hold: no dialog for call %s", active.ID())
		}
		if err := s.sendHoldReINVITE(ln, sdpSendOnly); err != nil {
			return fmt.Errorf("hold: %w", err)
		}
		ln.leg.SetState(telephony.StateHolding)
		slog.Info("[SIP] Call held", "call_id", ln.dialog.CallID)
		return nil
	}

	if holding := s.phone.HoldingCall(); holding != nil {
		ln, ok := s.findLineByCall(holding)
		if !ok {
			return fmt.Errorf("unhold: no dialog for call %s", holding.ID())
		}
		if err := s.sendHoldReINVITE(ln, sdpSendRecv); err != nil {
			return fmt.Errorf("unhold: %w", err)
		}
		ln.leg.SetState(telephony.StateActive)
		slog.Info("[SIP] Call resumed", "call_id", ln.dialog.CallID)
		return nil
	}

	return fmt.Errorf("switch: no active or held call")
}

// StartDTMF begins an RFC 4733 digit on the active call's media session.
func (s *Service) StartDTMF(digit rune) (err error) {
	defer func() { s.collector.Command("dtmf", outcome(err)) }()

	ln, err := s.activeLine()
	if err != nil {
		return err
	}
	return ln.session.StartDTMF(digit)
}

// StopDTMF ends the digit in progress on the active call.
func (s *Service) StopDTMF() error {
	ln, err := s.activeLine()
	if err != nil {
		return err
	}
	ln.session.StopDTMF()
	return nil
}

// SetEchoSuppression toggles echo suppression on the active call's audio.
func (s *Service) SetEchoSuppression(enabled bool) error {
	ln, err := s.activeLine()
	if err != nil {
		return err
	}
	ln.session.SetEchoSuppression(enabled)
	return nil
}

// activeLine returns the line carrying the active call.
func (s *Service) activeLine() (*line, error) {
	active := s.phone.ActiveCall()
	if active == nil {
		return nil, fmt.Errorf("no active call")
	}
	ln, ok := s.findLineByCall(active)
	if !ok {
		return nil, fmt.Errorf("no dialog for call %s", active.ID())
	}
	return ln, nil
}

// sendBYE terminates an established dialog. Inbound dialogs go through the
// sipgo session; outbound ones build the BYE from the dialog state.
func (s *Service) sendBYE(dlg *Dialog) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if dlg.Session != nil && dlg.Direction == DirectionInbound {
		if err := dlg.Session.Bye(ctx); err != nil {
			return fmt.Errorf("send BYE: %w", err)
		}
		slog.Debug("[SIP] BYE sent via session", "call_id", dlg.CallID)
		return nil
	}

	bye, err := dlg.BuildBYE(s.localContact)
	if err != nil {
		return fmt.Errorf("build BYE: %w", err)
	}
	tx, err := s.client.TransactionRequest(ctx, bye)
	if err != nil {
		return fmt.Errorf("send BYE: %w", err)
	}

	select {
	case resp := <-tx.Responses():
		if resp != nil {
			slog.Debug("[SIP] BYE response", "call_id", dlg.CallID, "status", resp.StatusCode)
		}
	case <-tx.Done():
	case <-ctx.Done():
		slog.Warn("[SIP] BYE timeout", "call_id", dlg.CallID)
	}
	return nil
}

// sendHoldReINVITE renegotiates the session with the given direction
// attribute and waits for the final response.
func (s *Service) sendHoldReINVITE(ln *line, direction string) error {
	dlg := ln.dialog
	if dlg.GetState() != DialogConfirmed {
		return fmt.Errorf("dialog %s not confirmed", dlg.CallID)
	}

	offer, err := buildSDP(s.cfg.UserAgent, s.cfg.AdvertiseAddr, ln.session.LocalPort(), ln.nextSDPVersion(), direction)
	if err != nil {
		return err
	}

	reInvite, err := dlg.BuildReINVITE(s.localContact, offer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	tx, err := s.client.TransactionRequest(ctx, reInvite)
	if err != nil {
		dlg.CompleteReINVITE()
		return fmt.Errorf("send re-INVITE: %w", err)
	}
	defer tx.Terminate()

	for {
		select {
		case <-ctx.Done():
			dlg.CompleteReINVITE()
			return ctx.Err()
		case resp := <-tx.Responses():
			if resp == nil {
				dlg.CompleteReINVITE()
				return fmt.Errorf("re-INVITE transaction ended without response")
			}
			code := int(resp.StatusCode)
			if code < 200 {
				continue
			}

			// Final responses to an INVITE always get an ACK.
			ack := sip.NewAckRequest(reInvite, resp, nil)
			if err := s.client.WriteRequest(ack); err != nil {
				slog.Warn("[SIP] re-INVITE ACK failed", "call_id", dlg.CallID, "error", err)
			}
			dlg.CompleteReINVITE()

			if code >= 300 {
				return fmt.Errorf("re-INVITE rejected: %d %s", code, resp.Reason)
			}
			if remote, err := parseRemoteMedia(resp.Body()); err == nil {
				if err := ln.session.SetRemote(remote.Addr, remote.Port); err != nil {
					slog.Warn("[SIP] re-INVITE remote update failed", "call_id", dlg.CallID, "error", err)
				}
			}
			slog.Debug("[SIP] re-INVITE accepted", "call_id", dlg.CallID, "direction", direction)
			return nil
		}
	}
}
