package game

import (
	"errors"
	"math/rand"
)

// AnswerEntry pairs an answer text with its true author. The slice order is
// what clients vote on; the AuthorID never leaves the server during voting.
type AnswerEntry struct {
	Text     string
	AuthorID int64
}

// Ballot is one player's vote: indices into the anonymized answer list.
type Ballot struct {
	First  int
	Second int
}

var (
	ErrInvalidVoteReference = errors.New("vote references a non-existent answer")
	ErrDuplicateChoice      = errors.New("vote must name two distinct answers")
)

// ShuffleAnswers builds the anonymized ballot sheet for a round: one entry
// per (author, text) pair, uniformly shuffled.
func ShuffleAnswers(entries []AnswerEntry) []AnswerEntry {
	shuffled := make([]AnswerEntry, len(entries))
	copy(shuffled, entries)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// AnswerTexts extracts the client-visible half of the ballot sheet.
func AnswerTexts(entries []AnswerEntry) []string {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	return texts
}

// ValidateBallot checks index bounds and distinctness against a ballot
// sheet of the given size. Self-voting is allowed.
func ValidateBallot(b Ballot, answerCount int) error {
	if b.First < 0 || b.First >= answerCount || b.Second < 0 || b.Second >= answerCount {
		return ErrInvalidVoteReference
	}
	if b.First == b.Second {
		return ErrDuplicateChoice
	}
	return nil
}

// Vote point values: first choice earns the answer's author two points,
// second choice one.
const (
	FirstChoicePoints  = 2
	SecondChoicePoints = 1
)

// ScoreVotes maps every recorded ballot back to the true authors and tallies
// round points. Ballots are assumed validated; authors absent from the sheet
// cannot occur, but callers may still drop scores for players who left.
func ScoreVotes(ballots map[int64]Ballot, sheet []AnswerEntry) map[int64]int {
	scores := make(map[int64]int, len(sheet))
	for _, entry := range sheet {
		scores[entry.AuthorID] = 0
	}
	for _, b := range ballots {
		scores[sheet[b.First].AuthorID] += FirstChoicePoints
		scores[sheet[b.Second].AuthorID] += SecondChoicePoints
	}
	return scores
}
