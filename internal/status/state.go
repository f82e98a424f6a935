// Package status tracks the push channel's connection lifecycle as an
// explicit state machine so the supervisor cannot wander into an
// inconsistent state during reconnect storms.
package status

import (
	"fmt"
	"slices"
	gosync "sync"
	"time"

	"github.com/psousa/waconsole/internal/bus"
)

// State represents a push connection state.
type State string

const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	// Failed is the deliberate fail-stop after the retry budget is
	// exhausted: no automatic attempts happen from here, only a manual
	// reconnect.
	Failed State = "FAILED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Reconnecting, Failed, Disconnected},
	Connected:    {Reconnecting, Disconnected},
	Reconnecting: {Connecting, Failed, Disconnected},
	Failed:       {Disconnected},
}

// Machine tracks and enforces push connection state transitions.
type Machine struct {
	mu      gosync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Disconnected.
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

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		cur := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", cur, to)
	}
	from := m.current
	m.current = to
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindPushStatus,
			Timestamp: time.Now(),
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for connection status change events.
type StatusChange struct {
	From State
	To   State
}
