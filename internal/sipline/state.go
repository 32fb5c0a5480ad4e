package sipline

import "fmt"

// DialogState is the lifecycle state of a SIP dialog.
type DialogState int

const (
	// DialogInitial is the state right after the dialog is created.
	DialogInitial DialogState = iota
	// DialogEarly is entered once a provisional response has been exchanged.
	DialogEarly
	// DialogWaitingACK is entered after a 200 OK was sent, before the ACK.
	DialogWaitingACK
	// DialogConfirmed means the dialog is fully established.
	DialogConfirmed
	// DialogTerminating means a BYE has been sent and we await the response.
	DialogTerminating
	// DialogTerminated is the final state.
	DialogTerminated
)

// String returns the string representation of the state.
func (s DialogState) String() string {
	switch s {
	case DialogInitial:
		return "Initial"
	case DialogEarly:
		return "Early"
	case DialogWaitingACK:
		return "WaitingACK"
	case DialogConfirmed:
		return "Confirmed"
	case DialogTerminating:
		return "Terminating"
	case DialogTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// validDialogTransitions defines which state transitions are allowed.
// Early goes straight to Confirmed on outbound dialogs: the ACK for a
// received 2xx is sent immediately, so WaitingACK never applies there.
var validDialogTransitions = map[DialogState][]DialogState{
	DialogInitial:     {DialogEarly, DialogTerminated},
	DialogEarly:       {DialogWaitingACK, DialogConfirmed, DialogTerminated},
	DialogWaitingACK:  {DialogConfirmed, DialogTerminated},
	DialogConfirmed:   {DialogTerminating, DialogTerminated},
	DialogTerminating: {DialogTerminated},
	DialogTerminated:  {},
}

// CanTransitionTo checks whether moving to next is a legal edge.
func (s DialogState) CanTransitionTo(next DialogState) bool {
	for _, allowed := range validDialogTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for the final state.
func (s DialogState) IsTerminal() bool {
	return s == DialogTerminated
}

// TerminateReason explains why a dialog ended.
type TerminateReason int

const (
	// ReasonLocalBYE means this side initiated the BYE.
	ReasonLocalBYE TerminateReason = iota
	// ReasonRemoteBYE means the remote party sent BYE.
	ReasonRemoteBYE
	// ReasonCancel means CANCEL arrived during the early dialog.
	ReasonCancel
	// ReasonRejected means the call was declined before answer.
	ReasonRejected
	// ReasonTimeout means an ACK or response timeout occurred.
	ReasonTimeout
	// ReasonError means a protocol or media error occurred.
	ReasonError
)

// String returns the string representation of the reason.
func (r TerminateReason) String() string {
	switch r {
	case ReasonLocalBYE:
		return "LocalBYE"
	case ReasonRemoteBYE:
		return "RemoteBYE"
	case ReasonCancel:
		return "Cancel"
	case ReasonRejected:
		return "Rejected"
	case ReasonTimeout:
		return "Timeout"
	case ReasonError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", r)
	}
}
