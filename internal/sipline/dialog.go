package sipline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
)

// Direction indicates whether this side initiated or received the dialog.
type Direction int

const (
	// DirectionInbound means the remote party sent the INVITE (UAS role).
	DirectionInbound Direction = iota
	// DirectionOutbound means this side sent the INVITE (UAC role).
	DirectionOutbound
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Dialog tracks one SIP dialog: its RFC 3261 identifiers, lifecycle state,
// and the requests needed to build in-dialog BYE and re-INVITE messages.
type Dialog struct {
	mu sync.RWMutex

	// Identification per RFC 3261 Section 12.
	CallID    string
	LocalTag  string
	RemoteTag string

	Direction Direction

	State          DialogState
	CreatedAt      time.Time
	StateChangedAt time.Time

	// Session is the sipgo UAS dialog session, set once 200 OK is sent.
	Session     *sipgo.DialogServerSession
	Transaction sip.ServerTransaction

	// InviteRequest and InviteResponse anchor in-dialog request building.
	InviteRequest  *sip.Request
	InviteResponse *sip.Response

	// RemoteContactURI is the Request-URI target for in-dialog requests on
	// outbound dialogs, taken from the Contact of the 200 OK.
	RemoteContactURI string

	// localCSeq numbers the requests this side initiates.
	localCSeq atomic.Uint32

	// Only one re-INVITE may be outstanding at a time.
	reInviteInProgress atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	TerminateReason TerminateReason
}

// newInboundDialog creates a dialog from a received INVITE.
func newInboundDialog(req *sip.Request, tx sip.ServerTransaction) *Dialog {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dialog{
		CallID:         callIDOf(req),
		Direction:      DirectionInbound,
		State:          DialogInitial,
		CreatedAt:      time.Now(),
		StateChangedAt: time.Now(),
		InviteRequest:  req,
		Transaction:    tx,
		ctx:            ctx,
		cancel:         cancel,
	}
	if from := req.From(); from != nil {
		if tag, ok := from.Params.Get("tag"); ok {
			d.RemoteTag = tag
		}
	}
	if cseq := req.CSeq(); cseq != nil {
		d.localCSeq.Store(cseq.SeqNo)
	}
	return d
}

// newOutboundDialog creates a dialog for an INVITE this side is about to
// send. The remote half of the dialog state is filled in by
// ConfirmOutbound once the 200 OK arrives.
func newOutboundDialog(invite *sip.Request) *Dialog {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dialog{
		CallID:         callIDOf(invite),
		Direction:      DirectionOutbound,
		State:          DialogInitial,
		CreatedAt:      time.Now(),
		StateChangedAt: time.Now(),
		InviteRequest:  invite,
		ctx:            ctx,
		cancel:         cancel,
	}
	if from := invite.From(); from != nil {
		if tag, ok := from.Params.Get("tag"); ok {
			d.LocalTag = tag
		}
	}

	var initialCSeq uint32 = 1
	if cseq := invite.CSeq(); cseq != nil {
		initialCSeq = cseq.SeqNo
	}
	d.localCSeq.Store(initialCSeq)
	return d
}

// ConfirmOutbound completes the dialog from the 200 OK: remote tag, remote
// target, and the confirmed state. The ACK goes out right after, so the
// dialog confirms straight from Early; a 2xx with no provisional before it
// passes through Early on the way.
func (d *Dialog) ConfirmOutbound(resp *sip.Response) error {
	d.mu.Lock()
	d.InviteResponse = resp
	if to := resp.To(); to != nil {
		if tag, ok := to.Params.Get("tag"); ok {
			d.RemoteTag = tag
		}
	}
	if contact := resp.Contact(); contact != nil {
		d.RemoteContactURI = contact.Address.String()
	}
	d.mu.Unlock()

	if d.GetState() == DialogInitial {
		if err := d.TransitionTo(DialogEarly); err != nil {
			return err
		}
	}
	return d.TransitionTo(DialogConfirmed)
}

// callIDOf extracts the Call-ID value from a request. The header's String()
// method includes the header name, so the value is cast directly.
func callIDOf(req *sip.Request) string {
	if req.CallID() == nil {
		return ""
	}
	return string(*req.CallID())
}

// SetSession stores the sipgo dialog session once created.
func (d *Dialog) SetSession(session *sipgo.DialogServerSession) {
	d.mu.Lock()
	d.Session = session
	d.mu.Unlock()
}

// SetInviteResponse records the final response sent for the INVITE and
// captures this side's tag from it.
func (d *Dialog) SetInviteResponse(resp *sip.Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.InviteResponse = resp
	if to := resp.To(); to != nil {
		if tag, ok := to.Params.Get("tag"); ok {
			d.LocalTag = tag
		}
	}
}

// GetState returns the current dialog state.
func (d *Dialog) GetState() DialogState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.State
}

// TransitionTo moves the dialog to a new state if the edge is legal.
func (d *Dialog) TransitionTo(next DialogState) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.State.CanTransitionTo(next) {
		return fmt.Errorf("invalid dialog transition: %s -> %s", d.State, next)
	}
	d.State = next
	d.StateChangedAt = time.Now()
	return nil
}

// Context returns the dialog's lifetime context.
func (d *Dialog) Context() context.Context {
	return d.ctx
}

// Cancel cancels the dialog's context.
func (d *Dialog) Cancel() {
	d.cancel()
}

// IsTerminated returns true once the dialog has fully ended.
func (d *Dialog) IsTerminated() bool {
	return d.GetState() == DialogTerminated
}

// requestURI picks the Request-URI for in-dialog requests. Outbound dialogs
// target the Contact from the 200 OK; inbound dialogs target the Contact
// from the INVITE.
func (d *Dialog) requestURI() (sip.Uri, error) {
	var recipient sip.Uri
	if d.Direction == DirectionOutbound {
		if d.RemoteContactURI != "" {
			if err := sip.ParseUri(d.RemoteContactURI, &recipient); err != nil {
				return recipient, fmt.Errorf("parse remote contact URI: %w", err)
			}
			return recipient, nil
		}
		if d.InviteResponse != nil && d.InviteResponse.Contact() != nil {
			return d.InviteResponse.Contact().Address, nil
		}
		if to := d.InviteRequest.To(); to != nil {
			return to.Address, nil
		}
		return recipient, fmt.Errorf("no target for in-dialog request")
	}

	if contact := d.InviteRequest.Contact(); contact != nil {
		recipient = contact.Address
		recipient.UriParams = sip.NewParams()
		return recipient, nil
	}
	return d.InviteRequest.From().Address, nil
}

// appendDialogHeaders writes the From/To/Call-ID headers for an in-dialog
// request. On outbound dialogs From/To mirror the original INVITE with the
// remote tag learned from the 200 OK; on inbound dialogs the identities are
// swapped, with this side's identity taken from its own 200 OK.
func (d *Dialog) appendDialogHeaders(req *sip.Request) {
	if d.Direction == DirectionOutbound {
		if from := d.InviteRequest.From(); from != nil {
			req.AppendHeader(&sip.FromHeader{
				DisplayName: from.DisplayName,
				Address:     from.Address,
				Params:      from.Params.Clone(),
			})
		}
		if to := d.InviteRequest.To(); to != nil {
			toHdr := &sip.ToHeader{
				DisplayName: to.DisplayName,
				Address:     to.Address,
				Params:      sip.NewParams(),
			}
			if d.RemoteTag != "" {
				toHdr.Params.Add("tag", d.RemoteTag)
			}
			req.AppendHeader(toHdr)
		}
	} else {
		if d.InviteResponse != nil {
			if to := d.InviteResponse.To(); to != nil {
				req.AppendHeader(&sip.FromHeader{
					DisplayName: to.DisplayName,
					Address:     to.Address,
					Params:      to.Params.Clone(),
				})
			}
		}
		if from := d.InviteRequest.From(); from != nil {
			req.AppendHeader(&sip.ToHeader{
				DisplayName: from.DisplayName,
				Address:     from.Address,
				Params:      from.Params.Clone(),
			})
		}
	}

	if callIDHdr := d.InviteRequest.CallID(); callIDHdr != nil {
		req.AppendHeader(callIDHdr)
	}
}

// BuildBYE constructs an in-dialog BYE per RFC 3261 Section 15.1.1.
func (d *Dialog) BuildBYE(localContact sip.Uri) (*sip.Request, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.InviteRequest == nil {
		return nil, fmt.Errorf("cannot build BYE: missing INVITE request")
	}

	recipient, err := d.requestURI()
	if err != nil {
		return nil, err
	}

	bye := sip.NewRequest(sip.BYE, recipient)
	if len(d.InviteRequest.GetHeaders("Route")) > 0 {
		sip.CopyHeaders("Route", d.InviteRequest, bye)
	}
	d.appendDialogHeaders(bye)

	bye.AppendHeader(&sip.CSeqHeader{
		SeqNo:      d.localCSeq.Add(1),
		MethodName: sip.BYE,
	})
	maxFwd := sip.MaxForwardsHeader(70)
	bye.AppendHeader(&maxFwd)
	bye.AppendHeader(&sip.ContactHeader{Address: localContact})

	return bye, nil
}

// BuildReINVITE constructs an in-dialog INVITE carrying a new SDP offer.
// Fails when a previous re-INVITE has not completed yet; the caller must
// call CompleteReINVITE once the response is handled.
func (d *Dialog) BuildReINVITE(localContact sip.Uri, sdpBody []byte) (*sip.Request, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.InviteRequest == nil {
		return nil, fmt.Errorf("cannot build re-INVITE: missing INVITE request")
	}
	if !d.reInviteInProgress.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("re-INVITE already in progress for dialog %s", d.CallID)
	}

	recipient, err := d.requestURI()
	if err != nil {
		d.reInviteInProgress.Store(false)
		return nil, err
	}

	reInvite := sip.NewRequest(sip.INVITE, recipient)
	if len(d.InviteRequest.GetHeaders("Route")) > 0 {
		sip.CopyHeaders("Route", d.InviteRequest, reInvite)
	}
	d.appendDialogHeaders(reInvite)

	reInvite.AppendHeader(&sip.CSeqHeader{
		SeqNo:      d.localCSeq.Add(1),
		MethodName: sip.INVITE,
	})
	maxFwd := sip.MaxForwardsHeader(70)
	reInvite.AppendHeader(&maxFwd)
	reInvite.AppendHeader(&sip.ContactHeader{Address: localContact})

	if len(sdpBody) > 0 {
		reInvite.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
		reInvite.SetBody(sdpBody)
	}

	return reInvite, nil
}

// CompleteReINVITE clears the in-progress flag after the response arrived.
func (d *Dialog) CompleteReINVITE() {
	d.reInviteInProgress.Store(false)
}
