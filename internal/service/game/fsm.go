package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"mafia-be/internal/metrics"

	"go.uber.org/zap"
)

type StageHandler interface {
	Stage() Phase

	OnEnter(ctx *GameContext)
	OnHandle(ctx *GameContext, req RequestWrapper) (any, error)
	// OnTimeout 在阶段截止时间到达或主持人提前推进时调用
	OnTimeout(ctx *GameContext)
	OnExit(ctx *GameContext)

	SetOnSwitch(func(next Phase))
}

type envelope struct {
	req     RequestWrapper
	replyCh chan reply
}

type reply struct {
	data any
	err  error
}

// GameMachine 是游戏状态机，负责管理游戏状态和事件循环。
// 所有状态只在 Start 所在的协程内读写
type GameMachine struct {
	ctx     *GameContext
	handler StageHandler
	// 这是所有的用户请求与计时器事件汇总的通道
	reqCh chan envelope
	// 结束通道，用于通知游戏状态机退出事件循环
	doneCh   chan struct{}
	stopOnce sync.Once

	createdAt time.Time
}

func NewGameMachine(roomID string, opts Options) *GameMachine {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Rand == nil {
		opts.Rand = NewRand()
	}
	if opts.ResubmitPolicy == "" {
		opts.ResubmitPolicy = RESUBMIT_OVERWRITE
	}

	gm := &GameMachine{
		ctx:       newGameContext(roomID, opts),
		reqCh:     make(chan envelope, 64),
		doneCh:    make(chan struct{}),
		createdAt: opts.Clock.Now(),
	}

	gm.ctx.Scheduler = NewPhaseScheduler(opts.Clock, gm.onTimerExpired)
	gm.handler = gm.newHandler(PHASE_LOBBY)

	return gm
}

func (gm *GameMachine) RoomID() string {
	return gm.ctx.RoomID
}

func (gm *GameMachine) Start() {
	// 执行初始 handler 的 OnEnter
	gm.handler.OnEnter(gm.ctx)

	for {
		select {
		case env := <-gm.reqCh:
			data, err := gm.handle(env.req)
			env.replyCh <- reply{data: data, err: err}
		case <-gm.doneCh:
			gm.ctx.Scheduler.Cancel()
			zap.L().Info(
				"收到退出信号，结束游戏状态机",
				zap.String("room_id", gm.ctx.RoomID),
			)
			return
		}
	}
}

// Stop 结束事件循环，可重复调用
func (gm *GameMachine) Stop() {
	gm.stopOnce.Do(func() {
		close(gm.doneCh)
	})
}

func (gm *GameMachine) Done() <-chan struct{} {
	return gm.doneCh
}

// Dispatch 将请求送入事件循环，并等待处理结果
func (gm *GameMachine) Dispatch(req RequestWrapper) (any, error) {
	select {
	case <-gm.doneCh:
		return nil, ErrRoomClosed
	default:
	}

	env := envelope{req: req, replyCh: make(chan reply, 1)}

	select {
	case gm.reqCh <- env:
	case <-gm.doneCh:
		return nil, ErrRoomClosed
	}

	select {
	case r := <-env.replyCh:
		return r.data, r.err
	case <-gm.doneCh:
		return nil, ErrRoomClosed
	}
}

func (gm *GameMachine) handle(req RequestWrapper) (any, error) {
	zap.L().Debug(
		"接收到请求",
		zap.String("room_id", gm.ctx.RoomID),
		zap.String("request_type", req.ReqType),
		zap.String("player_id", req.PlayerID),
	)

	data, err := gm.route(req)
	if err != nil {
		metrics.RejectedInputs.WithLabelValues(string(CodeOf(err))).Inc()
		zap.L().Debug(
			"处理请求失败",
			zap.Error(err),
			zap.String("room_id", gm.ctx.RoomID),
			zap.String("phase", string(gm.handler.Stage())),
			zap.String("request_type", req.ReqType),
		)
	}

	// 检查阶段是否发生变化，OnEnter 可能再次触发切换
	for gm.ctx.Phase != gm.handler.Stage() {
		gm.switchStage()
		gm.handler.OnEnter(gm.ctx)
	}

	return data, err
}

// route 处理与阶段无关的请求，其余交给当前阶段的 handler
func (gm *GameMachine) route(req RequestWrapper) (any, error) {
	ctx := gm.ctx

	switch req.ReqType {
	case REQ_TIMEOUT:
		tmo := TryUnwrapTimeoutRequest(req)
		if tmo == nil || tmo.Phase != ctx.Phase || !ctx.Scheduler.IsCurrent(tmo.Epoch) {
			zap.L().Debug(
				"丢弃过期的超时事件",
				zap.String("room_id", ctx.RoomID),
				zap.String("phase", string(ctx.Phase)),
			)
			return nil, nil
		}

		ctx.Scheduler.Cancel()
		gm.handler.OnTimeout(ctx)
		return nil, nil

	case REQ_INSPECT:
		if inspect, ok := req.NativeData.(*InspectRequest); ok && inspect.Fn != nil {
			inspect.Fn(ctx)
		}
		return nil, nil

	case REQ_JOIN_GAME:
		return onPlayerJoin(ctx, req)

	case REQ_EXIT_GAME:
		onPlayerExit(ctx, req, gm.switchTo)
		return nil, nil

	case REQ_GET_SNAPSHOT:
		if req.PlayerID != "" {
			if _, ok := ctx.Registry.Get(req.PlayerID); !ok {
				return nil, newError(CodeUnknownPlayer, "unknown player")
			}
		}
		return ctx.snapshotFor(req.PlayerID), nil

	case REQ_ADVANCE_PHASE:
		if err := requireHost(ctx, req.PlayerID); err != nil {
			return nil, err
		}
		if !ctx.Phase.InGame() {
			return nil, newError(CodeWrongPhase, fmt.Sprintf("nothing to advance during %s", ctx.Phase))
		}

		zap.L().Info(
			"主持人提前结束当前阶段",
			zap.String("room_id", ctx.RoomID),
			zap.String("phase", string(ctx.Phase)),
		)

		ctx.Scheduler.Cancel()
		gm.handler.OnTimeout(ctx)
		return nil, nil

	case REQ_RESET_GAME:
		if err := requireHost(ctx, req.PlayerID); err != nil {
			return nil, err
		}
		if ctx.Phase == PHASE_LOBBY {
			return nil, newError(CodeWrongPhase, "the room is already in the lobby")
		}

		zap.L().Info(
			"主持人重置房间",
			zap.String("room_id", ctx.RoomID),
			zap.String("phase", string(ctx.Phase)),
		)

		ctx.resetMatch()
		gm.switchTo(PHASE_LOBBY)
		return nil, nil
	}

	return gm.handler.OnHandle(ctx, req)
}

func (gm *GameMachine) switchTo(next Phase) {
	gm.ctx.Phase = next
}

func (gm *GameMachine) switchStage() {
	// 执行当前 handler 的 OnExit
	gm.handler.OnExit(gm.ctx)

	zap.L().Info(
		"游戏阶段切换",
		zap.String("room_id", gm.ctx.RoomID),
		zap.String("from", string(gm.handler.Stage())),
		zap.String("to", string(gm.ctx.Phase)),
		zap.Int("day_number", gm.ctx.DayNumber),
	)

	metrics.PhaseTransitions.WithLabelValues(string(gm.ctx.Phase)).Inc()

	gm.handler = gm.newHandler(gm.ctx.Phase)
}

// newHandler 根据阶段创建对应的 handler
func (gm *GameMachine) newHandler(phase Phase) StageHandler {
	var handler StageHandler

	switch phase {
	case PHASE_LOBBY:
		handler = NewLobbyStageHandler()
	case PHASE_MAFIA_INTRO:
		handler = NewMafiaIntroStageHandler()
	case PHASE_MAFIA:
		handler = NewActionStageHandler(PHASE_MAFIA, ACTION_MAFIA_TARGET, PHASE_DOCTOR)
	case PHASE_DOCTOR:
		handler = NewActionStageHandler(PHASE_DOCTOR, ACTION_DOCTOR_SAVE, PHASE_SHERIFF)
	case PHASE_SHERIFF:
		handler = NewActionStageHandler(PHASE_SHERIFF, ACTION_SHERIFF_CHECK, PHASE_DAY)
	case PHASE_DAY:
		handler = NewDayStageHandler()
	case PHASE_VOTING:
		handler = NewVoteStageHandler()
	case PHASE_HUNTER_REVENGE:
		handler = NewHunterStageHandler()
	case PHASE_ENDED:
		handler = NewEndedStageHandler()
	default:
		panic(fmt.Sprintf("unknown phase %q", string(phase)))
	}

	handler.SetOnSwitch(gm.switchTo)

	return handler
}

func (gm *GameMachine) onTimerExpired(phase Phase, epoch uint64) {
	_, err := gm.Dispatch(RequestWrapper{
		ReqType:    REQ_TIMEOUT,
		NativeData: &TimeoutRequest{Phase: phase, Epoch: epoch},
	})
	if err != nil && !errors.Is(err, ErrRoomClosed) {
		zap.L().Warn(
			"处理超时事件失败",
			zap.Error(err),
			zap.String("room_id", gm.ctx.RoomID),
		)
	}
}

func (gm *GameMachine) CreatedAt() time.Time {
	return gm.createdAt
}

// 以下是对 Dispatch 的类型化封装，供服务层与测试使用

func (gm *GameMachine) Join(name string, respCh chan ResponseWrapper) (JoinGameResponse, error) {
	return gm.JoinWith(JoinGameRequest{PlayerName: name, RespCh: respCh})
}

// JoinWith joins or, when req carries the seat's reconnect token, re-attaches
// a disconnected player.
func (gm *GameMachine) JoinWith(req JoinGameRequest) (JoinGameResponse, error) {
	data, err := gm.Dispatch(RequestWrapper{
		ReqType:    REQ_JOIN_GAME,
		NativeData: &req,
	})
	if err != nil {
		return JoinGameResponse{}, err
	}

	return data.(JoinGameResponse), nil
}

func (gm *GameMachine) StartGame(playerID string, settings Settings) error {
	_, err := gm.Dispatch(RequestWrapper{
		ReqType:    REQ_START_GAME,
		PlayerID:   playerID,
		NativeData: &StartGameRequest{Settings: settings},
	})
	return err
}

func (gm *GameMachine) NightAction(playerID string, kind ActionKind, targetID string) error {
	_, err := gm.Dispatch(RequestWrapper{
		ReqType:    REQ_NIGHT_ACTION,
		PlayerID:   playerID,
		NativeData: &NightActionRequest{Kind: kind, TargetID: targetID},
	})
	return err
}

func (gm *GameMachine) Vote(voterID, targetID string) error {
	_, err := gm.Dispatch(RequestWrapper{
		ReqType:    REQ_VOTE,
		PlayerID:   voterID,
		NativeData: &VoteRequest{TargetID: targetID},
	})
	return err
}

func (gm *GameMachine) HunterChoice(hunterID, targetID string) error {
	_, err := gm.Dispatch(RequestWrapper{
		ReqType:    REQ_HUNTER_CHOICE,
		PlayerID:   hunterID,
		NativeData: &HunterChoiceRequest{TargetID: targetID},
	})
	return err
}

// Disconnect detaches playerID. respCh identifies the connection that went
// away; a nil respCh matches whatever connection the player has.
func (gm *GameMachine) Disconnect(playerID string, respCh chan ResponseWrapper) error {
	_, err := gm.Dispatch(RequestWrapper{
		ReqType:    REQ_EXIT_GAME,
		PlayerID:   playerID,
		NativeData: &ExitGameRequest{RespCh: respCh},
	})
	return err
}

func (gm *GameMachine) AdvancePhase(hostID string) error {
	_, err := gm.Dispatch(RequestWrapper{ReqType: REQ_ADVANCE_PHASE, PlayerID: hostID})
	return err
}

func (gm *GameMachine) Reset(hostID string) error {
	_, err := gm.Dispatch(RequestWrapper{ReqType: REQ_RESET_GAME, PlayerID: hostID})
	return err
}

func (gm *GameMachine) Snapshot(viewerID string) (SnapshotResponse, error) {
	data, err := gm.Dispatch(RequestWrapper{ReqType: REQ_GET_SNAPSHOT, PlayerID: viewerID})
	if err != nil {
		return SnapshotResponse{}, err
	}

	return data.(SnapshotResponse), nil
}

// Inspect runs fn on the session goroutine and waits for it.
func (gm *GameMachine) Inspect(fn func(ctx *GameContext)) error {
	_, err := gm.Dispatch(RequestWrapper{
		ReqType:    REQ_INSPECT,
		NativeData: &InspectRequest{Fn: fn},
	})
	return err
}

// RoomStatus is a point-in-time summary used by the room service.
type RoomStatus struct {
	RoomID         string    `json:"room_id"`
	Phase          Phase     `json:"phase"`
	DayNumber      int       `json:"day_number"`
	PlayerCount    int       `json:"player_count"`
	ConnectedCount int       `json:"connected_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func (gm *GameMachine) Status() (RoomStatus, error) {
	var status RoomStatus
	err := gm.Inspect(func(ctx *GameContext) {
		status = RoomStatus{
			RoomID:         ctx.RoomID,
			Phase:          ctx.Phase,
			DayNumber:      ctx.DayNumber,
			PlayerCount:    ctx.Registry.Len(),
			ConnectedCount: ctx.Registry.CountConnected(),
			CreatedAt:      gm.createdAt,
		}
	})

	return status, err
}
