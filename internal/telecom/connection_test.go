package telecom

import "testing"

func TestConnectionLifecycle(t *testing.T) {
	conn := NewConnection()

	if got := conn.State(); got != StateInitializing {
		t.Fatalf("new connection state = %v, want Initializing", got)
	}

	conn.SetInitialized()
	conn.SetRinging()
	conn.SetActive()
	conn.SetOnHold()
	conn.SetActive()
	conn.SetDisconnected(CauseNormalLocal)
	conn.SetDestroyed()

	if got := conn.State(); got != StateDestroyed {
		t.Errorf("final state = %v, want Destroyed", got)
	}
	if got := conn.DisconnectCause(); got != CauseNormalLocal {
		t.Errorf("DisconnectCause() = %v, want NormalLocal", got)
	}
}

func TestConnectionRejectsIllegalTransition(t *testing.T) {
	conn := NewConnection()

	// Straight to Active without initialization is not a legal edge.
	conn.SetActive()
	if got := conn.State(); got != StateInitializing {
		t.Errorf("state after illegal transition = %v, want Initializing", got)
	}

	conn.SetInitialized()
	conn.SetDisconnected(CauseError)
	conn.SetActive()
	if got := conn.State(); got != StateDisconnected {
		t.Errorf("state after disconnect = %v, want Disconnected", got)
	}
}

func TestStateChangeListeners(t *testing.T) {
	conn := NewConnection()

	var transitions [][2]ConnectionState
	unsub := conn.OnStateChange(func(_ *Connection, old, next ConnectionState) {
		transitions = append(transitions, [2]ConnectionState{old, next})
	})

	conn.SetInitialized()
	conn.SetRinging()

	if len(transitions) != 2 {
		t.Fatalf("got %d notifications, want 2", len(transitions))
	}
	if transitions[0] != [2]ConnectionState{StateInitializing, StateInitialized} {
		t.Errorf("first transition = %v", transitions[0])
	}
	if transitions[1] != [2]ConnectionState{StateInitialized, StateRinging} {
		t.Errorf("second transition = %v", transitions[1])
	}

	unsub()
	unsub() // safe to call again
	conn.SetActive()
	if len(transitions) != 2 {
		t.Errorf("listener fired after unregister, got %d notifications", len(transitions))
	}
}

func TestRedundantStateIsNotNotified(t *testing.T) {
	conn := NewConnection()
	conn.SetInitialized()

	count := 0
	conn.OnStateChange(func(*Connection, ConnectionState, ConnectionState) { count++ })

	conn.SetInitialized()
	if count != 0 {
		t.Errorf("same-state write notified %d times, want 0", count)
	}
}

func TestRingbackListener(t *testing.T) {
	conn := NewConnection()

	var seen []bool
	conn.OnRingback(func(_ *Connection, requesting bool) {
		seen = append(seen, requesting)
	})

	conn.SetRequestingRingback(true)
	conn.SetRequestingRingback(true) // no change, no notification
	conn.SetRequestingRingback(false)

	want := []bool{true, false}
	if len(seen) != len(want) {
		t.Fatalf("notifications = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %t, want %t", i, seen[i], want[i])
		}
	}
}

func TestIdentitySetters(t *testing.T) {
	conn := NewConnection()

	conn.SetHandle("sip:bob@example.com", PresentationAllowed)
	conn.SetCallerDisplayName("Bob", PresentationRestricted)

	if got := conn.Handle(); got != "sip:bob@example.com" {
		t.Errorf("Handle() = %q", got)
	}
	if got := conn.HandlePresentation(); got != PresentationAllowed {
		t.Errorf("HandlePresentation() = %v", got)
	}
	if got := conn.CallerDisplayName(); got != "Bob" {
		t.Errorf("CallerDisplayName() = %q", got)
	}
	if got := conn.CallerDisplayNamePresentation(); got != PresentationRestricted {
		t.Errorf("CallerDisplayNamePresentation() = %v", got)
	}
}
