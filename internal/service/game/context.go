package game

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// ResubmitPolicy decides what happens when a night action or vote is submitted
// a second time inside the same window.
type ResubmitPolicy string

const (
	RESUBMIT_OVERWRITE ResubmitPolicy = "overwrite"
	RESUBMIT_REJECT    ResubmitPolicy = "reject"
)

// Options are the per-room knobs, normally filled from configuration.
type Options struct {
	Durations        PhaseDurations
	ResubmitPolicy   ResubmitPolicy
	HostSeesRoles    bool
	AbortOnHostLeave bool
	// MaxPlayers caps the lobby; zero means unlimited
	MaxPlayers int

	Clock Clock
	Rand  *rand.Rand
}

func DefaultOptions() Options {
	return Options{
		Durations:      DefaultPhaseDurations(),
		ResubmitPolicy: RESUBMIT_OVERWRITE,
		MaxPlayers:     20,
	}
}

type GameContext struct {
	RoomID    string
	Phase     Phase
	DayNumber int
	Settings  Settings
	Options   Options

	Registry *Registry
	History  *History

	// 当前夜晚已提交的行动：行动类型 -> 目标 ID
	NightActions map[ActionKind]string
	// 当前行动窗口内已经提交过的玩家
	Acted map[string]bool
	// 投票：投票者 ID -> 目标 ID
	Votes map[string]string

	PendingHunterID string
	Outcome         WinOutcome

	Scheduler *PhaseScheduler
	Clock     Clock
	Rand      *rand.Rand

	// 已经结算过夜晚的天数，保证每晚只结算一次
	resolvedNight int
}

func newGameContext(roomID string, opts Options) *GameContext {
	return &GameContext{
		RoomID:       roomID,
		Phase:        PHASE_LOBBY,
		Options:      opts,
		Registry:     NewRegistry(),
		History:      &History{},
		NightActions: make(map[ActionKind]string),
		Acted:        make(map[string]bool),
		Votes:        make(map[string]string),
		Outcome:      WinOutcome{Winner: WINNER_NONE},
		Clock:        opts.Clock,
		Rand:         opts.Rand,
	}
}

// resetMatch returns the context to a fresh lobby. Connected players keep
// their seats; disconnected ones are dropped as they would be in the lobby.
func (gc *GameContext) resetMatch() {
	gc.Scheduler.Cancel()

	for _, p := range gc.Registry.Ordered() {
		if !p.Connected {
			gc.Registry.Remove(p.ID)
		}
	}

	gc.DayNumber = 0
	gc.Settings = Settings{}
	gc.Registry.ResetRoles()
	gc.History.Clear()
	gc.NightActions = make(map[ActionKind]string)
	gc.Acted = make(map[string]bool)
	gc.Votes = make(map[string]string)
	gc.PendingHunterID = ""
	gc.Outcome = WinOutcome{Winner: WINNER_NONE}
	gc.resolvedNight = 0
}

// startTimer arms the deadline of the current phase.
func (gc *GameContext) startTimer() {
	gc.Scheduler.Start(gc.Phase, gc.Options.Durations.For(gc.Phase))
}

func (gc *GameContext) BroadcastResp(resp ResponseWrapper) {
	for _, p := range gc.Registry.Ordered() {
		if p.RespCh == nil {
			continue
		}

		select {
		case p.RespCh <- resp:
			zap.L().Debug(
				"成功发送广播响应",
				zap.String("player_id", p.ID),
				zap.String("response_type", resp.RespType),
			)
		default:
			zap.L().Warn(
				"发送广播响应失败：玩家响应通道已满",
				zap.String("player_id", p.ID),
			)
		}
	}
}

func (gc *GameContext) UnicastResp(playerID string, resp ResponseWrapper) {
	player, ok := gc.Registry.Get(playerID)
	if !ok {
		zap.L().Warn(
			"无法找到玩家进行单播响应",
			zap.String("player_id", playerID),
		)
		return
	}

	if player.RespCh == nil {
		return
	}

	select {
	case player.RespCh <- resp:
		zap.L().Debug(
			"发送单播响应成功",
			zap.String("player_id", playerID),
			zap.String("response_type", resp.RespType),
		)
	default:
		zap.L().Warn(
			"发送单播响应失败：玩家响应通道已满",
			zap.String("player_id", playerID),
		)
	}
}

// BroadcastRoster sends every player the roster as they are allowed to see it.
func (gc *GameContext) BroadcastRoster() {
	for _, p := range gc.Registry.Ordered() {
		gc.UnicastResp(p.ID, WrapResponse(
			RESP_ROSTER_UPDATED,
			RosterResponse{Players: gc.viewFor(p.ID)},
		))
	}
}

func (gc *GameContext) BroadcastPhase() {
	gc.BroadcastResp(WrapResponse(
		RESP_PHASE_CHANGED,
		PhaseChangedResponse{
			Phase:     gc.Phase,
			DayNumber: gc.DayNumber,
			Deadline:  gc.Scheduler.Deadline(),
		},
	))
}

func (gc *GameContext) viewFor(viewerID string) []PlayerView {
	return gc.Registry.Snapshot(viewerID, gc.Phase == PHASE_ENDED, gc.Options.HostSeesRoles)
}

func (gc *GameContext) snapshotFor(viewerID string) SnapshotResponse {
	snap := SnapshotResponse{
		RoomID:          gc.RoomID,
		Phase:           gc.Phase,
		DayNumber:       gc.DayNumber,
		Deadline:        gc.Scheduler.Deadline(),
		Players:         gc.viewFor(viewerID),
		PendingHunterID: gc.PendingHunterID,
	}

	if gc.Phase == PHASE_ENDED {
		snap.Winner = gc.Outcome.Winner
	}

	return snap
}

// alivePlayerViews lists living players without roles, as action targets.
func (gc *GameContext) alivePlayerViews() []PlayerView {
	alive := gc.Registry.Alive()
	views := make([]PlayerView, 0, len(alive))
	for _, p := range alive {
		views = append(views, PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			IsHost:    p.IsHost,
			Alive:     p.Alive,
			Connected: p.Connected,
		})
	}

	return views
}

func (gc *GameContext) now() time.Time {
	return gc.Clock.Now()
}
