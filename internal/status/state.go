package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/replykit/internal/bus"
)

// State is the load state of the contact directory cache.
type State string

const (
	Unloaded State = "UNLOADED"
	Loading  State = "LOADING"
	Loaded   State = "LOADED"
	// Partial means at least one contact database could not be read. The
	// cache still serves whatever the other sources produced.
	Partial State = "PARTIAL"
)

// Loading is re-entered from a finished state only by an explicit rebuild.
var validTransitions = map[State][]State{
	Unloaded: {Loading},
	Loading:  {Loaded, Partial},
	Loaded:   {Loading},
	Partial:  {Loading},
}

// Machine tracks and enforces directory load transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a machine in the Unloaded state. b may be nil.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Unloaded, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Done reports whether a build has finished at least once.
func (m *Machine) Done() bool {
	s := m.Current()
	return s == Loaded || s == Partial
}

// Transition moves to a new state, or returns an error if the move is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Emit(bus.KindDirectoryStatusChanged, Change{From: from, To: to})
	return nil
}

// Change is the payload for status change events.
type Change struct {
	From State `json:"from"`
	To   State `json:"to"`
}
