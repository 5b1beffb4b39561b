package room

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oogiri/gameserver/network"
	"github.com/oogiri/gameserver/timer"
)

// readyThree joins three players and marks them ready, which starts a round.
func readyThree(t *testing.T, env *testEnv) {
	t.Helper()
	env.join(1, "alice")
	env.join(2, "bob")
	env.join(3, "carol")
	env.room.Ready(1)
	env.room.Ready(2)
	env.room.Ready(3)
	require.Equal(t, "answering", string(env.room.Phase()))
}

// answerIndex finds the ballot-sheet position of an answer text from the
// last voting_phase broadcast, the same way a client would.
func answerIndex(t *testing.T, env *testEnv, text string) int {
	t.Helper()
	data, ok := env.broadcaster.last(network.EventVotingPhase)
	require.True(t, ok, "expected a voting_phase broadcast")
	var payload network.VotingPhase
	require.NoError(t, json.Unmarshal(data, &payload))
	for i, a := range payload.Answers {
		if a == text {
			return i
		}
	}
	t.Fatalf("answer %q not found in %v", text, payload.Answers)
	return -1
}

func TestRoom_ReadyCheckStartsRound(t *testing.T) {
	env := newTestEnv()
	readyThree(t, env)

	data, ok := env.broadcaster.last(network.EventGameStart)
	require.True(t, ok)
	var start network.GameStart
	require.NoError(t, json.Unmarshal(data, &start))
	assert.Equal(t, "test topic", start.Topic)
	assert.NotZero(t, start.Deadline)

	// Ready flags are cleared for the answering phase.
	for _, p := range env.room.Players() {
		assert.False(t, p.Ready)
		assert.Empty(t, p.Answer)
		assert.Zero(t, p.Points)
	}
}

func TestRoom_AnswersMoveToVoting(t *testing.T) {
	env := newTestEnv()
	readyThree(t, env)

	env.room.SubmitAnswer(1, "a1")
	env.room.SubmitAnswer(2, "a2")
	assert.Equal(t, "answering", string(env.room.Phase()), "two of three answers must not advance the phase")

	env.room.SubmitAnswer(3, "a3")
	require.Equal(t, "voting", string(env.room.Phase()))

	data, ok := env.broadcaster.last(network.EventVotingPhase)
	require.True(t, ok)
	var payload network.VotingPhase
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Len(t, payload.Answers, 3)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, payload.Answers)
	for _, a := range payload.Answers {
		assert.NotEmpty(t, a)
	}
}

func TestRoom_EmptyAnswerIgnored(t *testing.T) {
	env := newTestEnv()
	readyThree(t, env)

	env.room.SubmitAnswer(1, "")
	players := env.room.Players()
	assert.False(t, players[0].Ready)
	assert.Equal(t, "answering", string(env.room.Phase()))
}

func TestRoom_VotingScoresAndPersists(t *testing.T) {
	env := newTestEnv()
	readyThree(t, env)

	env.room.SubmitAnswer(1, "a1")
	env.room.SubmitAnswer(2, "a2")
	env.room.SubmitAnswer(3, "a3")

	idx1 := answerIndex(t, env, "a1")
	idx2 := answerIndex(t, env, "a2")

	// Everyone prefers alice's answer, bob's second. Self-voting is fine.
	require.NoError(t, env.room.SubmitVote(1, idx1, idx2))
	require.NoError(t, env.room.SubmitVote(2, idx1, idx2))
	assert.Equal(t, "voting", string(env.room.Phase()))
	require.NoError(t, env.room.SubmitVote(3, idx1, idx2))

	require.Equal(t, "results", string(env.room.Phase()))

	players := env.room.Players()
	assert.Equal(t, 6, players[0].Points)
	assert.Equal(t, 3, players[1].Points)
	assert.Equal(t, 0, players[2].Points)

	// First round: cumulative equals the round scores.
	assert.Equal(t, 6, env.room.CumulativeScore(1))
	assert.Equal(t, 3, env.room.CumulativeScore(2))

	data, ok := env.broadcaster.last(network.EventGameResults)
	require.True(t, ok)
	var results network.GameResults
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Equal(t, int64(1), results.Winner.UserID)
	assert.Equal(t, 6, results.CumulativePoints[1])

	outcomes := env.recorder.recorded()
	require.Len(t, outcomes, 3)
	assert.Contains(t, outcomes, recordedOutcome{userID: 1, won: true, points: 6})
	assert.Contains(t, outcomes, recordedOutcome{userID: 2, won: false, points: 3})
	assert.Contains(t, outcomes, recordedOutcome{userID: 3, won: false, points: 0})
}

func TestRoom_WinnerTieBreaksByJoinOrder(t *testing.T) {
	env := newTestEnv()
	readyThree(t, env)

	env.room.SubmitAnswer(1, "a1")
	env.room.SubmitAnswer(2, "a2")
	env.room.SubmitAnswer(3, "a3")

	idx1 := answerIndex(t, env, "a1")
	idx2 := answerIndex(t, env, "a2")
	idx3 := answerIndex(t, env, "a3")

	// alice 2+2=4, bob 2+1+1=4, carol 1: a dead heat between the first
	// two joiners resolves to alice, who joined first.
	require.NoError(t, env.room.SubmitVote(1, idx1, idx2))
	require.NoError(t, env.room.SubmitVote(2, idx1, idx2))
	require.NoError(t, env.room.SubmitVote(3, idx2, idx3))

	data, ok := env.broadcaster.last(network.EventGameResults)
	require.True(t, ok)
	var results network.GameResults
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Equal(t, 4, results.CumulativePoints[1])
	assert.Equal(t, 4, results.CumulativePoints[2])
	assert.Equal(t, int64(1), results.Winner.UserID)
}

func TestRoom_InvalidVoteDoesNotCount(t *testing.T) {
	env := newTestEnv()
	readyThree(t, env)
	env.room.SubmitAnswer(1, "a1")
	env.room.SubmitAnswer(2, "a2")
	env.room.SubmitAnswer(3, "a3")

	assert.Error(t, env.room.SubmitVote(1, 0, 7), "out-of-range index must be rejected")
	assert.Error(t, env.room.SubmitVote(1, 1, 1), "identical choices must be rejected")

	require.NoError(t, env.room.SubmitVote(2, 0, 1))
	require.NoError(t, env.room.SubmitVote(3, 0, 1))
	assert.Equal(t, "voting", string(env.room.Phase()), "rejected ballots must not count toward all-voted")
}

func TestRoom_DuplicateVoteOverwrites(t *testing.T) {
	env := newTestEnv()
	readyThree(t, env)
	env.room.SubmitAnswer(1, "a1")
	env.room.SubmitAnswer(2, "a2")
	env.room.SubmitAnswer(3, "a3")

	idx1 := answerIndex(t, env, "a1")
	idx2 := answerIndex(t, env, "a2")
	idx3 := answerIndex(t, env, "a3")

	// bob re-votes before the round closes: only the second ballot counts.
	require.NoError(t, env.room.SubmitVote(2, idx1, idx2))
	require.NoError(t, env.room.SubmitVote(2, idx3, idx2))
	assert.Equal(t, "voting", string(env.room.Phase()))

	require.NoError(t, env.room.SubmitVote(1, idx2, idx3))
	require.NoError(t, env.room.SubmitVote(3, idx2, idx3))

	require.Equal(t, "results", string(env.room.Phase()))
	// carol's answer took bob's first-choice vote (2) plus two seconds.
	assert.Equal(t, 4, env.room.CumulativeScore(3))
	assert.Equal(t, 0, env.room.CumulativeScore(1))
}

func TestRoom_LeaveDuringAnsweringCompletesCheck(t *testing.T) {
	env := newTestEnv()
	env.join(1, "alice")
	env.join(2, "bob")
	carol := env.join(3, "carol")
	env.room.Ready(1)
	env.room.Ready(2)
	env.room.Ready(3)

	env.room.SubmitAnswer(1, "a1")
	env.room.SubmitAnswer(2, "a2")
	env.room.Leave(3, carol.GetID())

	require.Equal(t, "voting", string(env.room.Phase()))
	data, _ := env.broadcaster.last(network.EventVotingPhase)
	var payload network.VotingPhase
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.ElementsMatch(t, []string{"a1", "a2"}, payload.Answers)
}

func TestRoom_LeaveDuringVotingCompletesCheck(t *testing.T) {
	env := newTestEnv()
	env.join(1, "alice")
	env.join(2, "bob")
	carol := env.join(3, "carol")
	env.room.Ready(1)
	env.room.Ready(2)
	env.room.Ready(3)

	env.room.SubmitAnswer(1, "a1")
	env.room.SubmitAnswer(2, "a2")
	env.room.SubmitAnswer(3, "a3")

	require.NoError(t, env.room.SubmitVote(1, 0, 1))
	require.NoError(t, env.room.SubmitVote(2, 0, 1))
	env.room.Leave(3, carol.GetID())

	assert.Equal(t, "results", string(env.room.Phase()))
}

func TestRoom_RosterCollapseDuringAnsweringSkipsVoting(t *testing.T) {
	env := newTestEnv()
	env.join(1, "alice")
	bob := env.join(2, "bob")
	carol := env.join(3, "carol")
	env.room.Ready(1)
	env.room.Ready(2)
	env.room.Ready(3)

	env.room.SubmitAnswer(1, "only answer")
	env.room.Leave(2, bob.GetID())
	env.room.Leave(3, carol.GetID())

	// A one-answer sheet admits no valid ballot, so the round is scored
	// immediately instead of entering a voting phase nobody could leave.
	require.Equal(t, "results", string(env.room.Phase()))
	assert.Zero(t, env.broadcaster.count(network.EventVotingPhase))

	data, ok := env.broadcaster.last(network.EventGameResults)
	require.True(t, ok)
	var results network.GameResults
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Equal(t, int64(1), results.Winner.UserID)
	assert.Zero(t, results.CumulativePoints[1])

	recs := env.recorder.recorded()
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0].userID)
	assert.True(t, recs[0].won)
	assert.Zero(t, recs[0].points)

	// The survivor is not stuck: a game action still works.
	env.room.GameAction(1, "end")
	assert.Equal(t, "waiting", string(env.room.Phase()))
	assert.Equal(t, 1, env.broadcaster.count(network.EventRedirectHome))
}

func TestRoom_GameActions(t *testing.T) {
	finishRound := func(t *testing.T) *testEnv {
		env := newTestEnv()
		readyThree(t, env)
		env.room.SubmitAnswer(1, "a1")
		env.room.SubmitAnswer(2, "a2")
		env.room.SubmitAnswer(3, "a3")
		idx1 := answerIndex(t, env, "a1")
		idx2 := answerIndex(t, env, "a2")
		require.NoError(t, env.room.SubmitVote(1, idx1, idx2))
		require.NoError(t, env.room.SubmitVote(2, idx1, idx2))
		require.NoError(t, env.room.SubmitVote(3, idx1, idx2))
		require.Equal(t, "results", string(env.room.Phase()))
		return env
	}

	t.Run("continue keeps cumulative scores", func(t *testing.T) {
		env := finishRound(t)
		before := env.room.CumulativeScore(1)
		require.Greater(t, before, 0)

		env.room.GameAction(1, "continue")
		assert.Equal(t, "answering", string(env.room.Phase()))
		assert.Equal(t, before, env.room.CumulativeScore(1))
		for _, p := range env.room.Players() {
			assert.False(t, p.Ready)
			assert.Empty(t, p.Answer)
		}
	})

	t.Run("new_game resets cumulative scores", func(t *testing.T) {
		env := finishRound(t)
		env.room.GameAction(1, "new_game")
		assert.Equal(t, "waiting", string(env.room.Phase()))
		assert.Zero(t, env.room.CumulativeScore(1))
		_, ok := env.broadcaster.last(network.EventRedirectHome)
		assert.False(t, ok)
	})

	t.Run("end redirects everyone home", func(t *testing.T) {
		env := finishRound(t)
		env.room.GameAction(1, "end")
		assert.Equal(t, "waiting", string(env.room.Phase()))
		assert.Zero(t, env.room.CumulativeScore(1))
		assert.Equal(t, 1, env.broadcaster.count(network.EventRedirectHome))
	})

	t.Run("actions outside results are dropped", func(t *testing.T) {
		env := newTestEnv()
		env.join(1, "alice")
		env.room.GameAction(1, "end")
		assert.Equal(t, "waiting", string(env.room.Phase()))
		assert.Zero(t, env.broadcaster.count(network.EventRedirectHome))
	})
}

func TestRoom_ConcurrentAnswersSingleTransition(t *testing.T) {
	for i := 0; i < 20; i++ {
		t.Run(fmt.Sprintf("attempt_%d", i), func(t *testing.T) {
			env := newTestEnv()
			readyThree(t, env)

			var wg sync.WaitGroup
			for _, id := range []int64{1, 2, 3} {
				wg.Add(1)
				go func(id int64) {
					defer wg.Done()
					env.room.SubmitAnswer(id, fmt.Sprintf("answer %d", id))
				}(id)
			}
			wg.Wait()

			assert.Equal(t, "voting", string(env.room.Phase()))
			assert.Equal(t, 1, env.broadcaster.count(network.EventVotingPhase),
				"simultaneous submissions must yield exactly one transition")
		})
	}
}

func TestRoom_DeadlineForcesVoting(t *testing.T) {
	env := newTestEnv()
	timers := timer.NewManager()
	defer timers.Stop()
	env.room.cfg.AnswerTimeout = 50 * time.Millisecond
	env.room.deps.Timers = timers

	readyThree(t, env)
	env.room.SubmitAnswer(1, "only one answered")

	require.Eventually(t, func() bool {
		return env.room.Phase() == "voting"
	}, 2*time.Second, 20*time.Millisecond)

	data, ok := env.broadcaster.last(network.EventVotingPhase)
	require.True(t, ok)
	var payload network.VotingPhase
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Len(t, payload.Answers, 3, "stragglers count as empty answers")
	assert.Contains(t, payload.Answers, "only one answered")
}

func TestRoom_StaleDeadlineIsNoOp(t *testing.T) {
	env := newTestEnv()
	timers := timer.NewManager()
	defer timers.Stop()
	env.room.cfg.AnswerTimeout = 150 * time.Millisecond
	env.room.deps.Timers = timers

	readyThree(t, env)
	env.room.SubmitAnswer(1, "a1")
	env.room.SubmitAnswer(2, "a2")
	env.room.SubmitAnswer(3, "a3")
	require.Equal(t, "voting", string(env.room.Phase()))

	// Let the original deadline pass: the phase must not move again and no
	// second ballot sheet may be broadcast.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, "voting", string(env.room.Phase()))
	assert.Equal(t, 1, env.broadcaster.count(network.EventVotingPhase))
}
