// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/oogiri/gameserver/game"
	"github.com/oogiri/gameserver/logger"
	"github.com/oogiri/gameserver/models"
	"github.com/oogiri/gameserver/network"
	"github.com/oogiri/gameserver/persistence"
	"github.com/oogiri/gameserver/session"
)

// Player is the membership record of one identity inside a room. Points is
// what the player earned in the current round.
type Player struct {
	UserID   int64
	Username string
	Ready    bool
	Answer   string
	Points   int
}

// Config holds the room rules.
type Config struct {
	MinPlayers    int
	AnswerTimeout time.Duration
}

// Deps are the collaborators a room needs. Timers may be nil, which leaves
// the answering deadline advisory.
type Deps struct {
	Broadcaster Broadcaster
	Topics      TopicSource
	Records     OutcomeRecorder
	Timers      TimerScheduler
}

// roundOutcome is buffered under the lock and persisted after release.
type roundOutcome struct {
	userID int64
	won    bool
	points int
}

// Room 是游戏房间的核心结构. Every command for a room is serialized under a
// single mutex; commands for different rooms proceed in parallel. The
// mutex is never held across the topic draw or the stats write.
type Room struct {
	ID   string
	cfg  Config
	deps Deps

	mu               sync.Mutex
	machine          *game.Machine
	players          []*Player // join order
	sessions         map[string]*session.Session
	currentTopic     string
	roundDeadline    time.Time
	roundGen         int64 // bumped per round start; stale deadline timers no-op
	sheet            []game.AnswerEntry
	votes            map[int64]game.Ballot
	roundScores      map[int64]int
	cumulativeScores map[int64]int
}

// NewRoom 创建一个新房间
func NewRoom(id string, cfg Config, deps Deps) *Room {
	return &Room{
		ID:               id,
		cfg:              cfg,
		deps:             deps,
		machine:          game.NewMachine(),
		sessions:         make(map[string]*session.Session),
		votes:            make(map[int64]game.Ballot),
		roundScores:      make(map[int64]int),
		cumulativeScores: make(map[int64]int),
	}
}

// Phase returns the current phase.
func (r *Room) Phase() game.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.Current()
}

// PlayerCount returns the number of joined players.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Players returns a copy of the roster in join order.
func (r *Room) Players() []Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]Player, len(r.players))
	for i, p := range r.players {
		players[i] = *p
	}
	return players
}

// CumulativeScore returns the points a player accumulated this session.
func (r *Room) CumulativeScore(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cumulativeScores[userID]
}

// GetSessions returns all sessions currently joined to the room.
func (r *Room) GetSessions() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// --- commands ---

// Join adds the identity to the roster. Re-joining is idempotent: the
// player appears at most once, though the new connection is registered for
// broadcasts either way.
func (r *Room) Join(identity models.Identity, s *session.Session) {
	r.mu.Lock()
	if r.findPlayerLocked(identity.UserID) == nil {
		r.players = append(r.players, &Player{
			UserID:   identity.UserID,
			Username: identity.Username,
		})
		r.roundScores[identity.UserID] = 0
		r.cumulativeScores[identity.UserID] = 0
	}
	r.sessions[s.ID] = s
	s.RoomID = r.ID
	update := r.rosterLocked()
	r.mu.Unlock()

	r.broadcast(network.EventRoomUpdate, update)
}

// Leave removes the player and their connection. A disconnect runs the same
// path. Leaving twice has the same effect as once. During answering and
// voting the all-ready / all-voted condition is re-evaluated against the
// smaller roster.
func (r *Room) Leave(userID int64, sessionID string) {
	r.mu.Lock()
	if s, ok := r.sessions[sessionID]; ok {
		s.RoomID = ""
		delete(r.sessions, sessionID)
	}

	removed := false
	for i, p := range r.players {
		if p.UserID == userID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		r.mu.Unlock()
		return
	}
	delete(r.votes, userID)
	delete(r.roundScores, userID)

	update := r.rosterLocked()

	var voting *network.VotingPhase
	var results *network.GameResults
	var outcomes []roundOutcome
	if len(r.players) > 0 {
		switch r.machine.Current() {
		case game.PhaseAnswering:
			if r.allReadyLocked() {
				voting, results, outcomes = r.advanceFromAnsweringLocked()
			}
		case game.PhaseVoting:
			if r.allVotedLocked() {
				results, outcomes = r.finishRoundLocked()
			}
		}
	}
	r.mu.Unlock()

	r.broadcast(network.EventRoomUpdate, update)
	if voting != nil {
		r.broadcast(network.EventVotingPhase, voting)
	}
	if results != nil {
		r.broadcast(network.EventGameResults, results)
		r.persistOutcomes(outcomes)
	}
}

// Ready flags the player as ready during the waiting phase. When the roster
// has reached the minimum size and every player is ready, a round starts.
func (r *Room) Ready(userID int64) {
	r.mu.Lock()
	if r.machine.Current() != game.PhaseWaiting {
		r.mu.Unlock()
		return
	}
	p := r.findPlayerLocked(userID)
	if p == nil {
		r.mu.Unlock()
		return
	}
	changed := !p.Ready
	p.Ready = true
	update := r.rosterLocked()
	start := changed && len(r.players) >= r.cfg.MinPlayers && r.allReadyLocked()
	r.mu.Unlock()

	r.broadcast(network.EventRoomUpdate, update)
	if start {
		r.startRound(game.PhaseWaiting)
	}
}

// SubmitAnswer stores a non-empty answer during the answering phase and
// flags the player ready. The last outstanding answer moves the room to
// voting in the same critical section, so concurrent submissions yield
// exactly one transition.
func (r *Room) SubmitAnswer(userID int64, text string) {
	if text == "" {
		return
	}

	r.mu.Lock()
	if r.machine.Current() != game.PhaseAnswering {
		r.mu.Unlock()
		return
	}
	p := r.findPlayerLocked(userID)
	if p == nil {
		r.mu.Unlock()
		return
	}
	p.Answer = text
	changed := !p.Ready
	p.Ready = true

	var voting *network.VotingPhase
	var results *network.GameResults
	var outcomes []roundOutcome
	if changed && r.allReadyLocked() {
		voting, results, outcomes = r.advanceFromAnsweringLocked()
	}
	r.mu.Unlock()

	if voting != nil {
		r.broadcast(network.EventVotingPhase, voting)
	}
	if results != nil {
		r.broadcast(network.EventGameResults, results)
		r.persistOutcomes(outcomes)
	}
}

// SubmitVote records a ballot. A rejected ballot does not count toward the
// all-voted condition; a re-vote overwrites the previous one. When every
// current player has voted the round is scored and results broadcast.
func (r *Room) SubmitVote(userID int64, first, second int) error {
	r.mu.Lock()
	if r.machine.Current() != game.PhaseVoting {
		r.mu.Unlock()
		return game.ErrTransitionNotAllowed
	}
	if r.findPlayerLocked(userID) == nil {
		r.mu.Unlock()
		return nil
	}

	ballot := game.Ballot{First: first, Second: second}
	if err := game.ValidateBallot(ballot, len(r.sheet)); err != nil {
		r.mu.Unlock()
		return err
	}
	r.votes[userID] = ballot

	var results *network.GameResults
	var outcomes []roundOutcome
	if r.allVotedLocked() {
		results, outcomes = r.finishRoundLocked()
	}
	r.mu.Unlock()

	if results != nil {
		r.broadcast(network.EventGameResults, results)
		r.persistOutcomes(outcomes)
	}
	return nil
}

// GameAction handles the results-phase choices: end the session, start a
// fresh game, or continue with the next topic keeping cumulative scores.
func (r *Room) GameAction(userID int64, action string) {
	r.mu.Lock()
	if r.machine.Current() != game.PhaseResults {
		r.mu.Unlock()
		return
	}
	if r.findPlayerLocked(userID) == nil {
		r.mu.Unlock()
		return
	}

	switch action {
	case "end":
		r.resetToWaitingLocked()
		r.mu.Unlock()
		r.broadcast(network.EventRedirectHome, struct{}{})
	case "new_game":
		r.resetToWaitingLocked()
		update := r.rosterLocked()
		r.mu.Unlock()
		r.broadcast(network.EventRoomUpdate, update)
	case "continue":
		r.mu.Unlock()
		r.startRound(game.PhaseResults)
	default:
		r.mu.Unlock()
		logger.Log.Warnf("room %s: unknown game action %q from user %d", r.ID, action, userID)
	}
}

// --- round lifecycle ---

// startRound draws a topic and moves the room into the answering phase.
// The draw happens before the lock is taken; the from-phase guard under the
// lock makes a racing second trigger a no-op. Cumulative scores are only
// preserved, never touched, so a continue carries them across rounds.
func (r *Room) startRound(from game.Phase) {
	topic, err := r.deps.Topics.DrawRandomTopic()

	r.mu.Lock()
	if r.machine.Current() != from {
		r.mu.Unlock()
		return
	}
	// A leave may have raced the trigger; a round never starts below the
	// minimum roster.
	if len(r.players) < r.cfg.MinPlayers {
		r.mu.Unlock()
		return
	}
	if err != nil {
		r.mu.Unlock()
		logger.Log.Warnf("room %s: cannot start round: %v", r.ID, err)
		msg := "could not start round"
		if errors.Is(err, persistence.ErrNoTopics) {
			msg = "no topics available"
		}
		r.broadcast(network.EventError, &network.ErrorMessage{Message: msg})
		return
	}

	if err := r.machine.Advance(game.PhaseAnswering); err != nil {
		r.mu.Unlock()
		return
	}

	r.currentTopic = topic.Content
	r.roundDeadline = time.Now().Add(r.cfg.AnswerTimeout)
	r.roundGen++
	gen := r.roundGen

	for _, p := range r.players {
		p.Answer = ""
		p.Ready = false
		p.Points = 0
		r.roundScores[p.UserID] = 0
	}
	r.votes = make(map[int64]game.Ballot)
	r.sheet = nil

	start := &network.GameStart{
		Topic:    r.currentTopic,
		Deadline: r.roundDeadline.Unix(),
	}
	delay := time.Until(r.roundDeadline)
	r.mu.Unlock()

	r.broadcast(network.EventGameStart, start)

	if r.deps.Timers != nil && r.cfg.AnswerTimeout > 0 {
		r.deps.Timers.AddTimer(delay, 0, func() {
			r.expireAnswerDeadline(gen)
		})
	}
}

// expireAnswerDeadline forces answering -> voting when the deadline passes,
// as if the stragglers had submitted empty answers. A firing for an old
// round, or after the phase already advanced, is a no-op.
func (r *Room) expireAnswerDeadline(gen int64) {
	r.mu.Lock()
	if r.machine.Current() != game.PhaseAnswering || r.roundGen != gen {
		r.mu.Unlock()
		return
	}
	logger.Log.Infof("room %s: answering deadline expired", r.ID)
	voting, results, outcomes := r.advanceFromAnsweringLocked()
	r.mu.Unlock()

	if voting != nil {
		r.broadcast(network.EventVotingPhase, voting)
	}
	if results != nil {
		r.broadcast(network.EventGameResults, results)
		r.persistOutcomes(outcomes)
	}
}

// advanceFromAnsweringLocked moves the room out of answering. A sheet with
// fewer than two answers admits no valid ballot (a ballot names two distinct
// answers), so such a round skips voting and is scored immediately; votes
// are empty and everyone scores zero.
func (r *Room) advanceFromAnsweringLocked() (*network.VotingPhase, *network.GameResults, []roundOutcome) {
	voting := r.beginVotingLocked()
	if voting == nil {
		return nil, nil, nil
	}
	if len(r.sheet) < 2 {
		results, outcomes := r.finishRoundLocked()
		return nil, results, outcomes
	}
	return voting, nil, nil
}

// beginVotingLocked builds the anonymized, shuffled ballot sheet and moves
// the room into voting. The author mapping stays server-side; only the
// texts are broadcast. Ready flags are cleared so the next check starts
// clean.
func (r *Room) beginVotingLocked() *network.VotingPhase {
	if err := r.machine.Advance(game.PhaseVoting); err != nil {
		return nil
	}

	entries := make([]game.AnswerEntry, 0, len(r.players))
	for _, p := range r.players {
		entries = append(entries, game.AnswerEntry{Text: p.Answer, AuthorID: p.UserID})
		p.Ready = false
	}
	r.sheet = game.ShuffleAnswers(entries)
	r.votes = make(map[int64]game.Ballot)

	return &network.VotingPhase{Answers: game.AnswerTexts(r.sheet)}
}

// finishRoundLocked scores the ballots, folds round points into the
// cumulative scores, determines the winner (ties broken by earliest join
// order) and moves the room into results. Persistence effects are returned
// for the caller to apply after releasing the lock.
func (r *Room) finishRoundLocked() (*network.GameResults, []roundOutcome) {
	if err := r.machine.Advance(game.PhaseResults); err != nil {
		return nil, nil
	}

	scores := game.ScoreVotes(r.votes, r.sheet)
	for _, p := range r.players {
		p.Points = scores[p.UserID]
		r.roundScores[p.UserID] = p.Points
		r.cumulativeScores[p.UserID] += p.Points
	}

	var winner *Player
	for _, p := range r.players {
		if winner == nil || r.cumulativeScores[p.UserID] > r.cumulativeScores[winner.UserID] {
			winner = p
		}
	}

	results := &network.GameResults{
		Players:          r.playerInfosLocked(),
		CumulativePoints: make(map[int64]int, len(r.players)),
		Winner:           playerInfo(winner),
	}
	outcomes := make([]roundOutcome, 0, len(r.players))
	for _, p := range r.players {
		results.CumulativePoints[p.UserID] = r.cumulativeScores[p.UserID]
		outcomes = append(outcomes, roundOutcome{
			userID: p.UserID,
			won:    p.UserID == winner.UserID,
			points: p.Points,
		})
	}
	return results, outcomes
}

// resetToWaitingLocked returns the room to the lobby: cumulative scores
// zeroed, ready flags cleared, round data dropped.
func (r *Room) resetToWaitingLocked() {
	if err := r.machine.Advance(game.PhaseWaiting); err != nil {
		return
	}
	for _, p := range r.players {
		p.Ready = false
		p.Answer = ""
		p.Points = 0
		r.roundScores[p.UserID] = 0
		r.cumulativeScores[p.UserID] = 0
	}
	r.currentTopic = ""
	r.roundDeadline = time.Time{}
	r.roundGen++
	r.sheet = nil
	r.votes = make(map[int64]game.Ballot)
}

// --- helpers ---

func (r *Room) findPlayerLocked(userID int64) *Player {
	for _, p := range r.players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (r *Room) allReadyLocked() bool {
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return len(r.players) > 0
}

func (r *Room) allVotedLocked() bool {
	for _, p := range r.players {
		if _, ok := r.votes[p.UserID]; !ok {
			return false
		}
	}
	return len(r.players) > 0
}

func (r *Room) rosterLocked() *network.RoomUpdate {
	return &network.RoomUpdate{
		Players: r.playerInfosLocked(),
		Phase:   string(r.machine.Current()),
	}
}

func (r *Room) playerInfosLocked() []network.PlayerInfo {
	infos := make([]network.PlayerInfo, len(r.players))
	for i, p := range r.players {
		infos[i] = playerInfo(p)
	}
	return infos
}

func playerInfo(p *Player) network.PlayerInfo {
	return network.PlayerInfo{
		UserID:   p.UserID,
		Username: p.Username,
		Ready:    p.Ready,
		Points:   p.Points,
	}
}

func (r *Room) broadcast(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("room %s: marshal %s: %v", r.ID, event, err)
		return
	}
	if err := r.deps.Broadcaster.BroadcastToRoom(r.ID, event, data); err != nil {
		logger.Log.Warnf("room %s: broadcast %s: %v", r.ID, event, err)
	}
}

func (r *Room) persistOutcomes(outcomes []roundOutcome) {
	if r.deps.Records == nil {
		return
	}
	for _, o := range outcomes {
		if err := r.deps.Records.RecordRoundOutcome(o.userID, o.won, o.points); err != nil {
			logger.Log.Errorf("room %s: record outcome for user %d: %v", r.ID, o.userID, err)
		}
	}
}
