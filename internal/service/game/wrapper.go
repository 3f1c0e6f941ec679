package game

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// 请求类型
const (
	REQ_JOIN_GAME     = "JoinGame"
	REQ_START_GAME    = "StartGame"
	REQ_NIGHT_ACTION  = "NightAction"
	REQ_VOTE          = "Vote"
	REQ_HUNTER_CHOICE = "HunterChoice"
	REQ_ADVANCE_PHASE = "AdvancePhase"
	REQ_RESET_GAME    = "ResetGame"
	REQ_GET_SNAPSHOT  = "GetSnapshot"

	// 以下仅限服务端内部使用
	REQ_EXIT_GAME = "ExitGame"
	REQ_TIMEOUT   = "Timeout"
	REQ_INSPECT   = "Inspect"
)

// RequestWrapper 是进入状态机的唯一请求形式。PlayerID 由传输层根据连接填写，
// 不信任客户端传入的身份
type RequestWrapper struct {
	ReqType    string          `json:"request_type"`
	Data       json.RawMessage `json:"data"`
	PlayerID   string          `json:"-"`
	NativeData any             `json:"-"`
}

// ParseClientRequest decodes a message read from a client connection and
// stamps the acting player. Server-internal request types are refused.
func ParseClientRequest(msg []byte, playerID string) (RequestWrapper, error) {
	var wrapper RequestWrapper
	if err := json.Unmarshal(msg, &wrapper); err != nil {
		return RequestWrapper{}, newError(CodeBadRequest, "malformed request")
	}

	wrapper.PlayerID = playerID

	var err error
	switch wrapper.ReqType {
	case REQ_START_GAME:
		wrapper.NativeData, err = decodeData[StartGameRequest](wrapper.Data)
	case REQ_NIGHT_ACTION:
		var req *NightActionRequest
		req, err = decodeData[NightActionRequest](wrapper.Data)
		if err == nil && req.Kind.Window() == "" {
			err = fmt.Errorf("unknown night action %q", req.Kind)
		}
		wrapper.NativeData = req
	case REQ_VOTE:
		wrapper.NativeData, err = decodeData[VoteRequest](wrapper.Data)
	case REQ_HUNTER_CHOICE:
		wrapper.NativeData, err = decodeData[HunterChoiceRequest](wrapper.Data)
	case REQ_ADVANCE_PHASE, REQ_RESET_GAME, REQ_GET_SNAPSHOT:
		wrapper.NativeData = &struct{}{}
	default:
		err = fmt.Errorf("unsupported request type %q", wrapper.ReqType)
	}

	if err != nil {
		return RequestWrapper{}, newError(CodeBadRequest, err.Error())
	}

	return wrapper, nil
}

// ParseJoinRequest decodes the first message of a connection, which must be a
// JoinGame request carrying a player name.
func ParseJoinRequest(msg []byte) (*JoinGameRequest, error) {
	var wrapper RequestWrapper
	if err := json.Unmarshal(msg, &wrapper); err != nil {
		return nil, newError(CodeBadRequest, "malformed request")
	}

	if wrapper.ReqType != REQ_JOIN_GAME {
		return nil, newError(CodeBadRequest, "first message must be JoinGame")
	}

	req, err := decodeData[JoinGameRequest](wrapper.Data)
	if err != nil {
		return nil, newError(CodeBadRequest, err.Error())
	}

	return req, nil
}

func decodeData[T any](data json.RawMessage) (*T, error) {
	var v T
	if len(data) == 0 {
		return &v, nil
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.New("malformed request data")
	}

	return &v, nil
}

// tryUnwrap returns the typed payload when the wrapper has the given type.
func tryUnwrap[T any](wrapper RequestWrapper, reqType string) *T {
	if wrapper.ReqType != reqType {
		return nil
	}

	if native, ok := wrapper.NativeData.(*T); ok {
		return native
	}

	req, err := decodeData[T](wrapper.Data)
	if err != nil {
		zap.L().Error(
			"Failed to unwrap request",
			zap.Error(err),
			zap.String("request_type", wrapper.ReqType),
		)
		return nil
	}

	return req
}

func TryUnwrapJoinGameRequest(wrapper RequestWrapper) *JoinGameRequest {
	return tryUnwrap[JoinGameRequest](wrapper, REQ_JOIN_GAME)
}

func TryUnwrapStartGameRequest(wrapper RequestWrapper) *StartGameRequest {
	return tryUnwrap[StartGameRequest](wrapper, REQ_START_GAME)
}

func TryUnwrapNightActionRequest(wrapper RequestWrapper) *NightActionRequest {
	return tryUnwrap[NightActionRequest](wrapper, REQ_NIGHT_ACTION)
}

func TryUnwrapVoteRequest(wrapper RequestWrapper) *VoteRequest {
	return tryUnwrap[VoteRequest](wrapper, REQ_VOTE)
}

func TryUnwrapHunterChoiceRequest(wrapper RequestWrapper) *HunterChoiceRequest {
	return tryUnwrap[HunterChoiceRequest](wrapper, REQ_HUNTER_CHOICE)
}

func TryUnwrapExitGameRequest(wrapper RequestWrapper) *ExitGameRequest {
	return tryUnwrap[ExitGameRequest](wrapper, REQ_EXIT_GAME)
}

func TryUnwrapTimeoutRequest(wrapper RequestWrapper) *TimeoutRequest {
	return tryUnwrap[TimeoutRequest](wrapper, REQ_TIMEOUT)
}

// 响应类型
const (
	RESP_ERROR = "Error"
	RESP_ACK   = "Ack"

	RESP_JOIN_GAME            = "JoinGame"
	RESP_EXIT_GAME            = "ExitGame"
	RESP_SNAPSHOT             = "Snapshot"
	RESP_ROSTER_UPDATED       = "RosterUpdated"
	RESP_PHASE_CHANGED        = "PhaseChanged"
	RESP_ROLE_ASSIGNED        = "RoleAssigned"
	RESP_MAFIA_TEAM           = "MafiaTeam"
	RESP_YOUR_TURN            = "YourTurn"
	RESP_NIGHT_RESOLVED       = "NightResolved"
	RESP_CHECK_RESULT         = "CheckResult"
	RESP_VOTING_OPENED        = "VotingOpened"
	RESP_VOTE_CAST            = "VoteCast"
	RESP_VOTE_RESOLVED        = "VoteResolved"
	RESP_HUNTER_WINDOW_OPENED = "HunterWindowOpened"
	RESP_HUNTER_RESOLVED      = "HunterResolved"
	RESP_GAME_ENDED           = "GameEnded"
)

type ResponseWrapper struct {
	RespType string   `json:"response_type"`
	Data     any      `json:"data,omitempty"`
	ErrCode  Code     `json:"error_code,omitempty"`
	ErrMsg   string   `json:"error_message,omitempty"`
	Reasons  []string `json:"reasons,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(err error) ResponseWrapper {
	resp := ResponseWrapper{
		RespType: RESP_ERROR,
		ErrCode:  CodeOf(err),
		ErrMsg:   err.Error(),
	}

	var gameErr *Error
	if errors.As(err, &gameErr) {
		resp.ErrMsg = gameErr.Message
		resp.Reasons = gameErr.Reasons
	}

	return resp
}

func WrapAckResponse(reqType string) ResponseWrapper {
	return WrapResponse(RESP_ACK, AckResponse{RequestType: reqType})
}
