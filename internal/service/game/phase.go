package game

import (
	"fmt"
	"time"
)

// 游戏阶段按以下顺序循环：
// 1. 大厅（Lobby）：玩家加入，等待主持人开始
// 2. 黑手党相认（MafiaIntro）：仅展示，黑手党成员互相知晓
// 3. 黑手党行动（Mafia）：选择刺杀目标
// 4. 医生行动（Doctor）：选择救治目标
// 5. 警长行动（Sheriff）：选择调查目标
// 6. 白天（Day）：公布夜晚结果
// 7. 投票（Voting）：存活玩家投票放逐
// 8. 猎人复仇（HunterRevenge）：仅当被放逐者为猎人
// 9. 结束（Ended）
type Phase string

const (
	PHASE_LOBBY          Phase = "Lobby"
	PHASE_MAFIA_INTRO    Phase = "MafiaIntro"
	PHASE_MAFIA          Phase = "Mafia"
	PHASE_DOCTOR         Phase = "Doctor"
	PHASE_SHERIFF        Phase = "Sheriff"
	PHASE_DAY            Phase = "Day"
	PHASE_VOTING         Phase = "Voting"
	PHASE_HUNTER_REVENGE Phase = "HunterRevenge"
	PHASE_ENDED          Phase = "Ended"
)

// ordinal is the position of the phase inside one day cycle.
func (p Phase) ordinal() int {
	switch p {
	case PHASE_LOBBY:
		return 0
	case PHASE_MAFIA_INTRO:
		return 1
	case PHASE_MAFIA:
		return 2
	case PHASE_DOCTOR:
		return 3
	case PHASE_SHERIFF:
		return 4
	case PHASE_DAY:
		return 5
	case PHASE_VOTING:
		return 6
	case PHASE_HUNTER_REVENGE:
		return 7
	case PHASE_ENDED:
		return 8
	default:
		panic(fmt.Sprintf("unknown phase %q", string(p)))
	}
}

// IsNight reports whether the phase is one of the night sub-phases.
func (p Phase) IsNight() bool {
	switch p {
	case PHASE_MAFIA_INTRO, PHASE_MAFIA, PHASE_DOCTOR, PHASE_SHERIFF:
		return true
	default:
		return false
	}
}

// InGame reports whether a match is running (neither Lobby nor Ended).
func (p Phase) InGame() bool {
	return p != PHASE_LOBBY && p != PHASE_ENDED
}

// windowError decides how to reject an input that belongs to window while the
// session is in current: windows already passed this cycle are closed, anything
// else is simply the wrong phase.
func windowError(current, window Phase) error {
	if current.InGame() && current.ordinal() > window.ordinal() {
		return newError(CodePhaseClosed, fmt.Sprintf("%s window already closed", window))
	}

	return newError(CodeWrongPhase, fmt.Sprintf("not allowed during %s", current))
}

// PhaseDurations 各阶段的时长
type PhaseDurations struct {
	MafiaIntro time.Duration
	Mafia      time.Duration
	Doctor     time.Duration
	Sheriff    time.Duration
	Day        time.Duration
	Voting     time.Duration
	Hunter     time.Duration
}

func (d PhaseDurations) For(p Phase) time.Duration {
	switch p {
	case PHASE_MAFIA_INTRO:
		return d.MafiaIntro
	case PHASE_MAFIA:
		return d.Mafia
	case PHASE_DOCTOR:
		return d.Doctor
	case PHASE_SHERIFF:
		return d.Sheriff
	case PHASE_DAY:
		return d.Day
	case PHASE_VOTING:
		return d.Voting
	case PHASE_HUNTER_REVENGE:
		return d.Hunter
	case PHASE_LOBBY, PHASE_ENDED:
		return 0
	default:
		panic(fmt.Sprintf("unknown phase %q", string(p)))
	}
}

func DefaultPhaseDurations() PhaseDurations {
	return PhaseDurations{
		MafiaIntro: 5 * time.Second,
		Mafia:      30 * time.Second,
		Doctor:     20 * time.Second,
		Sheriff:    20 * time.Second,
		Day:        60 * time.Second,
		Voting:     30 * time.Second,
		Hunter:     20 * time.Second,
	}
}
