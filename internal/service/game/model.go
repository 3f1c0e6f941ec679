package game

import "fmt"

// 玩家身份
type Role string

const (
	ROLE_UNSET        Role = "Unset"
	ROLE_MAFIA_LEADER Role = "MafiaLeader"
	ROLE_MAFIA        Role = "Mafia"
	ROLE_SHERIFF      Role = "Sheriff"
	ROLE_DOCTOR       Role = "Doctor"
	ROLE_HUNTER       Role = "Hunter"
	ROLE_CITIZEN      Role = "Citizen"
)

// IsMafiaAligned reports whether the role belongs to the Mafia faction.
func (r Role) IsMafiaAligned() bool {
	switch r {
	case ROLE_MAFIA_LEADER, ROLE_MAFIA:
		return true
	case ROLE_SHERIFF, ROLE_DOCTOR, ROLE_HUNTER, ROLE_CITIZEN, ROLE_UNSET:
		return false
	default:
		panic(fmt.Sprintf("unknown role %q", string(r)))
	}
}

func (r Role) DisplayName() string {
	switch r {
	case ROLE_MAFIA_LEADER:
		return "Mafia Leader"
	case ROLE_MAFIA:
		return "Mafia"
	case ROLE_SHERIFF:
		return "Sheriff"
	case ROLE_DOCTOR:
		return "Doctor"
	case ROLE_HUNTER:
		return "Hunter"
	case ROLE_CITIZEN:
		return "Citizen"
	case ROLE_UNSET:
		return ""
	default:
		panic(fmt.Sprintf("unknown role %q", string(r)))
	}
}

// 夜晚行动类型
type ActionKind string

const (
	ACTION_MAFIA_TARGET  ActionKind = "MafiaTarget"
	ACTION_DOCTOR_SAVE   ActionKind = "DoctorSave"
	ACTION_SHERIFF_CHECK ActionKind = "SheriffCheck"
)

// Window returns the night phase during which the action may be submitted.
func (k ActionKind) Window() Phase {
	switch k {
	case ACTION_MAFIA_TARGET:
		return PHASE_MAFIA
	case ACTION_DOCTOR_SAVE:
		return PHASE_DOCTOR
	case ACTION_SHERIFF_CHECK:
		return PHASE_SHERIFF
	default:
		return ""
	}
}

// AllowedBy reports whether a player holding role may submit the action.
func (k ActionKind) AllowedBy(role Role) bool {
	switch k {
	case ACTION_MAFIA_TARGET:
		return role.IsMafiaAligned()
	case ACTION_DOCTOR_SAVE:
		return role == ROLE_DOCTOR
	case ACTION_SHERIFF_CHECK:
		return role == ROLE_SHERIFF
	default:
		return false
	}
}

// 胜利方
type Winner string

const (
	WINNER_NONE     Winner = "None"
	WINNER_CITIZENS Winner = "CitizensWin"
	WINNER_MAFIA    Winner = "MafiaWin"
)

type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Alive     bool   `json:"alive"`
	IsHost    bool   `json:"is_host"`
	Connected bool   `json:"connected"`

	// Token 只发给玩家本人，断线重连时凭它找回座位
	Token  string               `json:"-"`
	RespCh chan ResponseWrapper `json:"-"`
}

// PlayerView 是对外广播的玩家信息，Role 按观看者脱敏
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"is_host"`
	Alive     bool   `json:"alive"`
	Connected bool   `json:"connected"`
	Role      Role   `json:"role,omitempty"`
}

// Settings 是主持人开始游戏时提交的角色配置
type Settings struct {
	MafiaCount int  `json:"mafia_count"`
	HasDoctor  bool `json:"has_doctor"`
	HasHunter  bool `json:"has_hunter"`
}
