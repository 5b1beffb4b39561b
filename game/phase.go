// Package game holds the pure round logic of the oogiri game: the phase
// machine, ballots, scoring, and answer anonymization. It has no knowledge
// of connections or persistence so it can be exercised directly in tests.
package game

import "errors"

// Phase is the room-wide state driving which commands are valid.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseAnswering Phase = "answering"
	PhaseVoting    Phase = "voting"
	PhaseResults   Phase = "results"
)

// ErrTransitionNotAllowed is returned when a phase change is not an edge of
// the transition table.
var ErrTransitionNotAllowed = errors.New("phase transition not allowed")

// transitions is the closed set of legal phase edges. There is no terminal
// phase; the cycle repeats.
var transitions = map[Phase]map[Phase]bool{
	PhaseWaiting:   {PhaseAnswering: true},
	PhaseAnswering: {PhaseVoting: true},
	PhaseVoting:    {PhaseResults: true},
	PhaseResults:   {PhaseWaiting: true, PhaseAnswering: true},
}

// Machine tracks the current phase and rejects transitions outside the
// table. It is not goroutine-safe; the owning room serializes access.
type Machine struct {
	current Phase
}

// NewMachine returns a machine in the waiting phase.
func NewMachine() *Machine {
	return &Machine{current: PhaseWaiting}
}

func (m *Machine) Current() Phase {
	return m.current
}

// Advance moves to the target phase if the edge exists in the table.
func (m *Machine) Advance(to Phase) error {
	if !transitions[m.current][to] {
		return ErrTransitionNotAllowed
	}
	m.current = to
	return nil
}
