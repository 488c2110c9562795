package status

import (
	"testing"
	"time"

	"waview/internal/bus"
)

func walkTo(t *testing.T, m *Machine, states ...State) {
	t.Helper()
	for _, s := range states {
		if err := m.Transition(s); err != nil {
			t.Fatalf("transition to %s failed: %v", s, err)
		}
	}
}

func TestHappyPathFirstLogin(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, AwaitingQR, Connecting, Connected)

	if m.Current() != Connected {
		t.Errorf("state = %s, want CONNECTED", m.Current())
	}
}

func TestReconnectLoop(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connecting, Connected, Reconnecting, Connecting, Connected)

	if m.Current() != Connected {
		t.Errorf("state = %s, want CONNECTED after reconnect", m.Current())
	}
}

func TestDropBeforeConnectedEntersReconnecting(t *testing.T) {
	// A QR challenge timing out drops the connection before it was ever
	// Connected; the backoff state must still be reachable.
	m := NewMachine(nil)
	walkTo(t, m, AwaitingQR, Reconnecting, Connecting)

	m2 := NewMachine(nil)
	walkTo(t, m2, Reconnecting)
	if m2.Current() != Reconnecting {
		t.Errorf("state = %s, want RECONNECTING from DISCONNECTED", m2.Current())
	}
}

func TestLoggedOutIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connecting, Connected, LoggedOut)

	if !m.Terminal() {
		t.Error("Terminal() = false, want true")
	}
	if err := m.Transition(Connecting); err == nil {
		t.Error("transition out of LOGGED_OUT succeeded, want error")
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("DISCONNECTED -> CONNECTED succeeded, want error")
	}
	if m.Current() != Disconnected {
		t.Errorf("state = %s, want unchanged DISCONNECTED", m.Current())
	}
}

func TestSelfTransitionIsNoop(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	ch, unsub := b.Subscribe(bus.KindStatusChanged, 4)
	defer unsub()

	if err := m.Transition(Disconnected); err != nil {
		t.Errorf("self transition error = %v, want nil", err)
	}
	select {
	case <-ch:
		t.Error("self transition published a change event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransitionPublishesChange(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	ch, unsub := b.Subscribe(bus.KindStatusChanged, 4)
	defer unsub()

	walkTo(t, m, AwaitingQR)

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(Change)
		if !ok {
			t.Fatalf("payload type = %T, want Change", evt.Payload)
		}
		if change.From != Disconnected || change.To != AwaitingQR {
			t.Errorf("change = %+v, want DISCONNECTED -> AWAITING_QR", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status change event")
	}
}
