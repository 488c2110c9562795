// Package status tracks the connection lifecycle of the transport session.
package status

import (
	"fmt"
	"slices"
	"sync"

	"waview/internal/bus"
)

// State represents a connection lifecycle state.
type State string

const (
	Disconnected State = "DISCONNECTED"
	AwaitingQR   State = "AWAITING_QR"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	LoggedOut    State = "LOGGED_OUT"
)

// validTransitions defines allowed state transitions. LoggedOut is terminal:
// it is the only close that does not re-enter the connect path. A connection
// can drop before it ever reached Connected (a QR challenge timing out, a
// failed first dial), so Reconnecting is reachable from the pre-connect
// states too.
var validTransitions = map[State][]State{
	Disconnected: {AwaitingQR, Connecting, Reconnecting, LoggedOut},
	AwaitingQR:   {Connecting, Connected, Reconnecting, LoggedOut},
	Connecting:   {Connected, AwaitingQR, Reconnecting, LoggedOut},
	Connected:    {Reconnecting, LoggedOut},
	Reconnecting: {Connecting, LoggedOut},
	LoggedOut:    {},
}

// Machine tracks and enforces lifecycle state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Disconnected.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Terminal reports whether the session has reached its terminal state.
func (m *Machine) Terminal() bool {
	return m.Current() == LoggedOut
}

// Transition attempts to move to a new state. Returns an error if the
// transition is invalid; the current state is unchanged in that case.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Emit(bus.KindStatusChanged, Change{From: from, To: to})
	}
	return nil
}

// Change is the payload for status change events.
type Change struct {
	From State
	To   State
}
