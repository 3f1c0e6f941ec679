package service

import (
	"strings"
	"time"

	"mafia-be/internal/config"
	"mafia-be/internal/service/game"

	"github.com/google/uuid"
)

type roomEntry struct {
	machine *game.GameMachine
	name    string

	// 是否有玩家通过服务加入过
	joined bool
	// 最近一次观察到有玩家在线的时间
	lastActive time.Time
}

func newRoomID() string {
	return strings.ToUpper(uuid.New().String()[:8])
}

// gameOptionsFrom 把配置转换成每个房间的选项
func gameOptionsFrom(cfg *config.AppConfig) game.Options {
	opts := game.DefaultOptions()

	opts.Durations = game.PhaseDurations{
		MafiaIntro: cfg.Phases.MafiaIntro,
		Mafia:      cfg.Phases.Mafia,
		Doctor:     cfg.Phases.Doctor,
		Sheriff:    cfg.Phases.Sheriff,
		Day:        cfg.Phases.Day,
		Voting:     cfg.Phases.Voting,
		Hunter:     cfg.Phases.Hunter,
	}
	opts.ResubmitPolicy = game.ResubmitPolicy(cfg.Game.ResubmitPolicy)
	opts.HostSeesRoles = cfg.Game.HostSeesRoles
	opts.AbortOnHostLeave = cfg.Game.AbortOnHostLeave
	opts.MaxPlayers = cfg.Game.MaxPlayers

	return opts
}

// isRoomValid 判断房间是否还应保留：
// 玩家已全部离开，或者无人在线超过 idleTimeout 的房间会被回收
func isRoomValid(status game.RoomStatus, joined bool, lastActive, now time.Time, idleTimeout time.Duration) bool {
	if status.PlayerCount <= 0 {
		if joined {
			return false
		}
		// 刚创建的房间给创建者留出加入的时间
		return now.Sub(status.CreatedAt) < idleTimeout
	}

	if status.ConnectedCount > 0 {
		return true
	}

	return now.Sub(lastActive) < idleTimeout
}
