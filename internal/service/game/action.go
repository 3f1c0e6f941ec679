package game

import "time"

type JoinGameRequest struct {
	PlayerName string `json:"player_name"`
	// 断线重连时携带上次加入时拿到的令牌
	ReconnectToken string               `json:"reconnect_token,omitempty"`
	RespCh         chan ResponseWrapper `json:"-"`
}

type JoinGameResponse struct {
	RoomID    string       `json:"room_id"`
	Phase     Phase        `json:"phase"`
	DayNumber int          `json:"day_number"`
	Joiner    PlayerView   `json:"joiner"`
	Players   []PlayerView `json:"players"`
	// Reconnected is set when the joiner re-attached to an existing seat
	Reconnected bool `json:"reconnected"`
	// ReconnectToken is private to the joiner and required to take the seat back
	ReconnectToken string `json:"reconnect_token"`
}

type ExitGameRequest struct {
	RespCh chan ResponseWrapper `json:"-"`
}

type ExitGameResponse struct {
	LeftPlayerID   string `json:"left_player_id"`
	LeftPlayerName string `json:"left_player_name"`
}

type StartGameRequest struct {
	Settings Settings `json:"settings"`
}

type NightActionRequest struct {
	Kind     ActionKind `json:"kind"`
	TargetID string     `json:"target_id"`
}

type VoteRequest struct {
	TargetID string `json:"target_id"`
}

type HunterChoiceRequest struct {
	TargetID string `json:"target_id"`
}

// TimeoutRequest is produced by the phase scheduler, never by clients.
type TimeoutRequest struct {
	Phase Phase  `json:"phase"`
	Epoch uint64 `json:"epoch"`
}

// InspectRequest runs Fn on the session goroutine.
type InspectRequest struct {
	Fn func(ctx *GameContext)
}

type AckResponse struct {
	RequestType string `json:"request_type"`
}

type RosterResponse struct {
	Players []PlayerView `json:"players"`
}

type PhaseChangedResponse struct {
	Phase     Phase     `json:"phase"`
	DayNumber int       `json:"day_number"`
	Deadline  time.Time `json:"deadline,omitzero"`
}

type RoleAssignedResponse struct {
	Role     Role   `json:"role"`
	RoleName string `json:"role_name"`
}

type MafiaTeamResponse struct {
	Members []PlayerView `json:"members"`
}

// YourTurnResponse tells a role holder that its window is open.
type YourTurnResponse struct {
	Kind     ActionKind   `json:"kind,omitempty"`
	Phase    Phase        `json:"phase"`
	Targets  []PlayerView `json:"targets"`
	Deadline time.Time    `json:"deadline,omitzero"`
}

type CheckResultResponse struct {
	DayNumber  int    `json:"day_number"`
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	IsMafia    bool   `json:"is_mafia"`
}

type VotingOpenedResponse struct {
	Targets  []PlayerView `json:"targets"`
	Deadline time.Time    `json:"deadline,omitzero"`
}

type VoteCastResponse struct {
	VoterID    string `json:"voter_id"`
	VoterName  string `json:"voter_name"`
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
}

type HunterWindowResponse struct {
	HunterID   string    `json:"hunter_id"`
	HunterName string    `json:"hunter_name"`
	Deadline   time.Time `json:"deadline,omitzero"`
}

type GameEndedResponse struct {
	Winner  Winner         `json:"winner"`
	Reason  string         `json:"reason"`
	Players []PlayerView   `json:"players"`
	Stats   GameStats      `json:"stats"`
	History []HistoryEntry `json:"history"`
}

type SnapshotResponse struct {
	RoomID          string       `json:"room_id"`
	Phase           Phase        `json:"phase"`
	DayNumber       int          `json:"day_number"`
	Deadline        time.Time    `json:"deadline,omitzero"`
	Players         []PlayerView `json:"players"`
	PendingHunterID string       `json:"pending_hunter_id,omitempty"`
	Winner          Winner       `json:"winner,omitempty"`
}
