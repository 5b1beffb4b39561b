package network

import "errors"

var ErrMalformedPacket = errors.New("malformed packet")

// Client -> server events.
const (
	EventHeartbeat    = "heartbeat"
	EventJoinRoom     = "join_room"
	EventLeaveRoom    = "leave_room"
	EventReady        = "ready"
	EventSubmitAnswer = "submit_answer"
	EventSubmitVote   = "submit_vote"
	EventGameAction   = "game_action"
)

// Server -> client events, broadcast to every member of a room.
const (
	EventRoomUpdate   = "room_update"
	EventGameStart    = "game_start"
	EventVotingPhase  = "voting_phase"
	EventGameResults  = "game_results"
	EventRedirectHome = "redirect_home"
	EventError        = "error"
)

// Command payloads.

type JoinRoomRequest struct {
	RoomID string `json:"room_id"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"room_id"`
}

type ReadyRequest struct {
	RoomID string `json:"room_id"`
}

type SubmitAnswerRequest struct {
	RoomID string `json:"room_id"`
	Answer string `json:"answer"`
}

// SubmitVoteRequest carries 0-based indices into the voting_phase answer
// list. FirstPlace and SecondPlace must be distinct and in range.
type SubmitVoteRequest struct {
	RoomID      string `json:"room_id"`
	FirstPlace  int    `json:"first_place"`
	SecondPlace int    `json:"second_place"`
}

type GameActionRequest struct {
	RoomID string `json:"room_id"`
	Action string `json:"action"` // continue, new_game, end
}

// Broadcast payloads.

type PlayerInfo struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
	Points   int    `json:"points"`
}

type RoomUpdate struct {
	Players []PlayerInfo `json:"players"`
	Phase   string       `json:"phase"`
}

type GameStart struct {
	Topic    string `json:"topic"`
	Deadline int64  `json:"deadline"` // unix seconds
}

type VotingPhase struct {
	Answers []string `json:"answers"`
}

type GameResults struct {
	Players          []PlayerInfo  `json:"players"`
	CumulativePoints map[int64]int `json:"cumulative_points"`
	Winner           PlayerInfo    `json:"winner"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
