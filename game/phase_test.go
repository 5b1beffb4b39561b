package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_StartsWaiting(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, PhaseWaiting, m.Current())
}

func TestMachine_FullCycle(t *testing.T) {
	m := NewMachine()

	require.NoError(t, m.Advance(PhaseAnswering))
	require.NoError(t, m.Advance(PhaseVoting))
	require.NoError(t, m.Advance(PhaseResults))

	// Results may either restart a round or return to the lobby.
	require.NoError(t, m.Advance(PhaseAnswering))
	require.NoError(t, m.Advance(PhaseVoting))
	require.NoError(t, m.Advance(PhaseResults))
	require.NoError(t, m.Advance(PhaseWaiting))
}

func TestMachine_RejectsEdgesOutsideTable(t *testing.T) {
	illegal := map[Phase][]Phase{
		PhaseWaiting:   {PhaseVoting, PhaseResults, PhaseWaiting},
		PhaseAnswering: {PhaseWaiting, PhaseResults, PhaseAnswering},
		PhaseVoting:    {PhaseWaiting, PhaseAnswering, PhaseVoting},
		PhaseResults:   {PhaseVoting, PhaseResults},
	}

	for from, targets := range illegal {
		for _, to := range targets {
			m := &Machine{current: from}
			err := m.Advance(to)
			assert.ErrorIs(t, err, ErrTransitionNotAllowed, "%s -> %s should be rejected", from, to)
			assert.Equal(t, from, m.Current(), "phase must be untouched after a rejected transition")
		}
	}
}
