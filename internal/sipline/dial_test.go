package sipline

import (
	"testing"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/linegate/internal/telecom"
)

func TestCauseForStatus(t *testing.T) {
	tests := []struct {
		code int
		want telecom.DisconnectCause
	}{
		{486, telecom.CauseBusy},
		{600, telecom.CauseBusy},
		{480, telecom.CauseCongestion},
		{503, telecom.CauseCongestion},
		{403, telecom.CauseRejected},
		{603, telecom.CauseRejected},
		{404, telecom.CauseError},
		{500, telecom.CauseError},
	}

	for _, tt := range tests {
		if got := causeForStatus(tt.code); got != tt.want {
			t.Errorf("causeForStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestCallerIdentity(t *testing.T) {
	var uri sip.Uri
	if err := sip.ParseUri("sip:service@linegate.local", &uri); err != nil {
		t.Fatalf("ParseUri() error = %v", err)
	}

	req := sip.NewRequest(sip.INVITE, uri)
	var fromURI sip.Uri
	if err := sip.ParseUri("sip:alice@example.com", &fromURI); err != nil {
		t.Fatalf("ParseUri() error = %v", err)
	}
	req.AppendHeader(&sip.FromHeader{
		DisplayName: "Alice",
		Address:     fromURI,
		Params:      sip.NewParams(),
	})

	address, displayName := callerIdentity(req)
	if address != "alice" {
		t.Errorf("address = %q, want alice", address)
	}
	if displayName != "Alice" {
		t.Errorf("displayName = %q, want Alice", displayName)
	}
}

func TestCallerIdentityWithoutFrom(t *testing.T) {
	var uri sip.Uri
	if err := sip.ParseUri("sip:service@linegate.local", &uri); err != nil {
		t.Fatalf("ParseUri() error = %v", err)
	}

	req := sip.NewRequest(sip.INVITE, uri)
	address, displayName := callerIdentity(req)
	if address != "" || displayName != "" {
		t.Errorf("callerIdentity() = (%q, %q), want empty", address, displayName)
	}
}

func TestNewOutboundDialog(t *testing.T) {
	var uri sip.Uri
	if err := sip.ParseUri("sip:bob@example.com", &uri); err != nil {
		t.Fatalf("ParseUri() error = %v", err)
	}

	invite := sip.NewRequest(sip.INVITE, uri)
	callID := sip.CallIDHeader("call-abc")
	invite.AppendHeader(&callID)
	params := sip.NewParams()
	params.Add("tag", "local-tag")
	var fromURI sip.Uri
	if err := sip.ParseUri("sip:service@linegate.local", &fromURI); err != nil {
		t.Fatalf("ParseUri() error = %v", err)
	}
	invite.AppendHeader(&sip.FromHeader{Address: fromURI, Params: params})
	invite.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})

	dlg := newOutboundDialog(invite)
	if dlg.CallID != "call-abc" {
		t.Errorf("CallID = %q, want call-abc", dlg.CallID)
	}
	if dlg.Direction != DirectionOutbound {
		t.Errorf("Direction = %v, want outbound", dlg.Direction)
	}
	if dlg.LocalTag != "local-tag" {
		t.Errorf("LocalTag = %q, want local-tag", dlg.LocalTag)
	}
	if got := dlg.GetState(); got != DialogInitial {
		t.Errorf("GetState() = %v, want Initial", got)
	}
	if dlg.IsTerminated() {
		t.Error("fresh dialog reported terminated")
	}
}

func outboundInviteForTest(t *testing.T) *sip.Request {
	t.Helper()

	var uri sip.Uri
	if err := sip.ParseUri("sip:bob@example.com", &uri); err != nil {
		t.Fatalf("ParseUri() error = %v", err)
	}

	invite := sip.NewRequest(sip.INVITE, uri)
	callID := sip.CallIDHeader("call-confirm")
	invite.AppendHeader(&callID)
	params := sip.NewParams()
	params.Add("tag", "local-tag")
	var fromURI sip.Uri
	if err := sip.ParseUri("sip:service@linegate.local", &fromURI); err != nil {
		t.Fatalf("ParseUri() error = %v", err)
	}
	invite.AppendHeader(&sip.FromHeader{Address: fromURI, Params: params})
	invite.AppendHeader(&sip.ToHeader{Address: uri, Params: sip.NewParams()})
	invite.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})
	return invite
}

func TestConfirmOutbound(t *testing.T) {
	invite := outboundInviteForTest(t)
	dlg := newOutboundDialog(invite)

	// A provisional moved the dialog to Early before the 200 OK.
	if err := dlg.TransitionTo(DialogEarly); err != nil {
		t.Fatalf("TransitionTo(Early) error = %v", err)
	}

	resp := sip.NewResponseFromRequest(invite, sip.StatusOK, "OK", nil)
	resp.To().Params.Add("tag", "remote-tag")
	var contactURI sip.Uri
	if err := sip.ParseUri("sip:bob@192.0.2.10", &contactURI); err != nil {
		t.Fatalf("ParseUri() error = %v", err)
	}
	resp.AppendHeader(&sip.ContactHeader{Address: contactURI})

	if err := dlg.ConfirmOutbound(resp); err != nil {
		t.Fatalf("ConfirmOutbound() error = %v", err)
	}
	if got := dlg.GetState(); got != DialogConfirmed {
		t.Errorf("GetState() = %v, want Confirmed", got)
	}
	if dlg.RemoteTag != "remote-tag" {
		t.Errorf("RemoteTag = %q, want remote-tag", dlg.RemoteTag)
	}
	if dlg.RemoteContactURI != contactURI.String() {
		t.Errorf("RemoteContactURI = %q, want %q", dlg.RemoteContactURI, contactURI.String())
	}
}

func TestConfirmOutboundWithoutProvisional(t *testing.T) {
	invite := outboundInviteForTest(t)
	dlg := newOutboundDialog(invite)

	resp := sip.NewResponseFromRequest(invite, sip.StatusOK, "OK", nil)
	if err := dlg.ConfirmOutbound(resp); err != nil {
		t.Fatalf("ConfirmOutbound() error = %v", err)
	}
	if got := dlg.GetState(); got != DialogConfirmed {
		t.Errorf("GetState() = %v, want Confirmed", got)
	}
}
