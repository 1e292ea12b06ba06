package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/omnichat/internal/bus"
)

// State represents a client session lifecycle state.
type State string

const (
	Disconnected                State = "disconnected"
	Connecting                  State = "connecting"
	AwaitingPhoneNumber         State = "awaiting_phone_number"
	AwaitingPairingConfirmation State = "awaiting_pairing_confirmation"
	Ready                       State = "ready"
	Failed                      State = "failed"
)

// Changed is published on the session bus after every successful transition.
const Changed bus.Topic[Change] = "session:state"

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disconnected:                {Connecting, AwaitingPhoneNumber, Failed},
	Connecting:                  {AwaitingPhoneNumber, AwaitingPairingConfirmation, Ready, Failed, Disconnected},
	AwaitingPhoneNumber:         {Connecting, Failed, Disconnected},
	AwaitingPairingConfirmation: {Connecting, Ready, AwaitingPhoneNumber, Failed, Disconnected},
	Ready:                       {AwaitingPhoneNumber, AwaitingPairingConfirmation, Failed, Disconnected},
	Failed:                      {Connecting, AwaitingPhoneNumber, Ready, Disconnected},
}

// Machine tracks and enforces session state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Disconnected state.
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

// Transition attempts to move to a new state. Moving to the current state is
// a no-op. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	from := m.current
	if from == to {
		m.mu.Unlock()
		return nil
	}
	if !slices.Contains(validTransitions[from], to) {
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	m.current = to
	m.mu.Unlock()

	bus.Emit(m.bus, Changed, Change{From: from, To: to})
	return nil
}

// Change is the payload for state change events.
type Change struct {
	From State
	To   State
}
