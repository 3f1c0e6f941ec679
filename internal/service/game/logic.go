package game

import (
	"fmt"
	"strings"

	"mafia-be/internal/metrics"

	"go.uber.org/zap"
)

// 大厅阶段：玩家加入，等待主持人开始游戏
type lobbyStageHandler struct {
	onSwitch func(Phase)
}

func NewLobbyStageHandler() *lobbyStageHandler {
	return &lobbyStageHandler{}
}

func (lsh *lobbyStageHandler) Stage() Phase {
	return PHASE_LOBBY
}

func (lsh *lobbyStageHandler) OnEnter(ctx *GameContext) {
	ctx.BroadcastPhase()
	ctx.BroadcastRoster()
}

func (lsh *lobbyStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) (any, error) {
	if sreq := TryUnwrapStartGameRequest(req); sreq != nil {
		return nil, lsh.startGame(ctx, req.PlayerID, sreq.Settings)
	}

	return nil, rejectMisplaced(ctx, req)
}

func (lsh *lobbyStageHandler) startGame(ctx *GameContext, playerID string, settings Settings) error {
	if err := requireHost(ctx, playerID); err != nil {
		return err
	}

	players := ctx.Registry.Ordered()
	if _, err := AssignRoles(ctx.Rand, players, settings); err != nil {
		return err
	}

	ctx.Settings = settings

	for _, p := range players {
		ctx.UnicastResp(p.ID, WrapResponse(
			RESP_ROLE_ASSIGNED,
			RoleAssignedResponse{Role: p.Role, RoleName: p.Role.DisplayName()},
		))
	}

	metrics.GamesStarted.Inc()

	zap.L().Info(
		"游戏开始",
		zap.String("room_id", ctx.RoomID),
		zap.Int("players", len(players)),
		zap.Int("mafia_count", settings.MafiaCount),
		zap.Bool("has_doctor", settings.HasDoctor),
		zap.Bool("has_hunter", settings.HasHunter),
	)

	lsh.onSwitch(PHASE_MAFIA_INTRO)

	return nil
}

func (lsh *lobbyStageHandler) OnTimeout(ctx *GameContext) {}

func (lsh *lobbyStageHandler) OnExit(ctx *GameContext) {}

func (lsh *lobbyStageHandler) SetOnSwitch(onSwitch func(Phase)) {
	lsh.onSwitch = onSwitch
}

// 黑手党相认阶段：每晚的开始，仅展示
type mafiaIntroStageHandler struct {
	onSwitch func(Phase)
}

func NewMafiaIntroStageHandler() *mafiaIntroStageHandler {
	return &mafiaIntroStageHandler{}
}

func (mish *mafiaIntroStageHandler) Stage() Phase {
	return PHASE_MAFIA_INTRO
}

func (mish *mafiaIntroStageHandler) OnEnter(ctx *GameContext) {
	ctx.DayNumber++
	ctx.NightActions = make(map[ActionKind]string)
	ctx.Acted = make(map[string]bool)

	ctx.startTimer()
	ctx.BroadcastPhase()

	members := make([]PlayerView, 0)
	for _, p := range ctx.Registry.Ordered() {
		if p.Role.IsMafiaAligned() {
			members = append(members, PlayerView{
				ID:        p.ID,
				Name:      p.Name,
				IsHost:    p.IsHost,
				Alive:     p.Alive,
				Connected: p.Connected,
				Role:      p.Role,
			})
		}
	}

	team := WrapResponse(RESP_MAFIA_TEAM, MafiaTeamResponse{Members: members})
	for _, m := range members {
		ctx.UnicastResp(m.ID, team)
	}
}

func (mish *mafiaIntroStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) (any, error) {
	return nil, rejectMisplaced(ctx, req)
}

func (mish *mafiaIntroStageHandler) OnTimeout(ctx *GameContext) {
	mish.onSwitch(PHASE_MAFIA)
}

func (mish *mafiaIntroStageHandler) OnExit(ctx *GameContext) {
	ctx.Scheduler.Cancel()
}

func (mish *mafiaIntroStageHandler) SetOnSwitch(onSwitch func(Phase)) {
	mish.onSwitch = onSwitch
}

// 夜晚行动阶段：黑手党、医生、警长依次提交行动。
// 所有存活的持有者都提交后窗口提前关闭；没有存活持有者时等待完整时长，
// 避免泄露该角色是否存活
type actionStageHandler struct {
	phase    Phase
	kind     ActionKind
	next     Phase
	onSwitch func(Phase)
}

func NewActionStageHandler(phase Phase, kind ActionKind, next Phase) *actionStageHandler {
	mustHold(kind.Window() == phase, "action %s does not belong to %s", kind, phase)

	return &actionStageHandler{
		phase: phase,
		kind:  kind,
		next:  next,
	}
}

func (ash *actionStageHandler) Stage() Phase {
	return ash.phase
}

func (ash *actionStageHandler) OnEnter(ctx *GameContext) {
	ctx.Acted = make(map[string]bool)

	ctx.startTimer()
	ctx.BroadcastPhase()

	turn := WrapResponse(RESP_YOUR_TURN, YourTurnResponse{
		Kind:     ash.kind,
		Phase:    ash.phase,
		Targets:  ctx.alivePlayerViews(),
		Deadline: ctx.Scheduler.Deadline(),
	})

	for _, p := range ash.holders(ctx) {
		ctx.UnicastResp(p.ID, turn)
	}
}

func (ash *actionStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) (any, error) {
	nreq := TryUnwrapNightActionRequest(req)
	if nreq == nil {
		return nil, rejectMisplaced(ctx, req)
	}

	window := nreq.Kind.Window()
	if window == "" {
		return nil, newError(CodeBadRequest, fmt.Sprintf("unknown night action %q", nreq.Kind))
	}
	if window != ash.phase {
		return nil, windowError(ctx.Phase, window)
	}

	actor, ok := ctx.Registry.Get(req.PlayerID)
	if !ok {
		return nil, newError(CodeUnknownPlayer, "unknown player")
	}
	if !actor.Alive {
		return nil, newError(CodeTargetOrVoterDead, "dead players cannot act")
	}
	if !ash.kind.AllowedBy(actor.Role) {
		return nil, newError(CodeWrongRole, fmt.Sprintf("%s is not allowed to submit %s", actor.Name, ash.kind))
	}

	target, ok := ctx.Registry.Get(nreq.TargetID)
	if !ok {
		return nil, newError(CodeUnknownPlayer, "unknown target")
	}
	if !target.Alive {
		return nil, newError(CodeTargetOrVoterDead, fmt.Sprintf("%s is already dead", target.Name))
	}

	if ctx.Acted[actor.ID] && ctx.Options.ResubmitPolicy == RESUBMIT_REJECT {
		return nil, newError(CodeAlreadySubmitted, "action already submitted this night")
	}

	ctx.NightActions[ash.kind] = target.ID
	ctx.Acted[actor.ID] = true

	zap.L().Debug(
		"记录夜晚行动",
		zap.String("room_id", ctx.RoomID),
		zap.String("kind", string(ash.kind)),
		zap.String("actor_id", actor.ID),
		zap.String("target_id", target.ID),
	)

	if ash.complete(ctx) {
		ash.close(ctx)
	}

	return nil, nil
}

// holders 返回当前窗口所有存活的行动者
func (ash *actionStageHandler) holders(ctx *GameContext) []*Player {
	holders := make([]*Player, 0)
	for _, p := range ctx.Registry.Alive() {
		if ash.kind.AllowedBy(p.Role) {
			holders = append(holders, p)
		}
	}

	return holders
}

func (ash *actionStageHandler) complete(ctx *GameContext) bool {
	holders := ash.holders(ctx)
	if len(holders) == 0 {
		return false
	}

	for _, p := range holders {
		if !ctx.Acted[p.ID] {
			return false
		}
	}

	return true
}

func (ash *actionStageHandler) close(ctx *GameContext) {
	if ash.phase == PHASE_SHERIFF {
		ash.onSwitch(finishNight(ctx))
		return
	}

	ash.onSwitch(ash.next)
}

func (ash *actionStageHandler) OnTimeout(ctx *GameContext) {
	ash.close(ctx)
}

func (ash *actionStageHandler) OnExit(ctx *GameContext) {
	ctx.Scheduler.Cancel()
}

func (ash *actionStageHandler) SetOnSwitch(onSwitch func(Phase)) {
	ash.onSwitch = onSwitch
}

// finishNight 结算夜晚，返回下一个阶段
func finishNight(ctx *GameContext) Phase {
	mustHold(ctx.resolvedNight < ctx.DayNumber, "night %d resolved twice", ctx.DayNumber)
	ctx.resolvedNight = ctx.DayNumber

	result := ResolveNight(ctx.NightActions, ctx.Registry, ctx.DayNumber)
	if result.KilledID != "" {
		victim, _ := ctx.Registry.Get(result.KilledID)
		victim.Alive = false
	}

	ctx.History.RecordNight(ctx.now(), result)
	ctx.NightActions = make(map[ActionKind]string)

	zap.L().Info(
		"夜晚结算完成",
		zap.String("room_id", ctx.RoomID),
		zap.Int("day_number", result.DayNumber),
		zap.String("outcome", string(result.Outcome)),
		zap.String("killed_id", result.KilledID),
	)

	ctx.BroadcastResp(WrapResponse(RESP_NIGHT_RESOLVED, result.Public()))

	if result.CheckedID != "" {
		check := WrapResponse(RESP_CHECK_RESULT, CheckResultResponse{
			DayNumber:  result.DayNumber,
			TargetID:   result.CheckedID,
			TargetName: playerName(ctx.Registry, result.CheckedID),
			IsMafia:    result.CheckedIsMafia,
		})

		for _, p := range ctx.Registry.Ordered() {
			if p.Role == ROLE_SHERIFF {
				ctx.UnicastResp(p.ID, check)
			}
		}
	}

	return afterResolution(ctx, PHASE_DAY)
}

// afterResolution 在存活状态变化后检查胜负
func afterResolution(ctx *GameContext, next Phase) Phase {
	outcome := EvaluateWin(ctx.Registry)
	if outcome.Decided() {
		ctx.Outcome = outcome
		return PHASE_ENDED
	}

	return next
}

// 白天阶段：公布夜晚结果，自由讨论
type dayStageHandler struct {
	onSwitch func(Phase)
}

func NewDayStageHandler() *dayStageHandler {
	return &dayStageHandler{}
}

func (dsh *dayStageHandler) Stage() Phase {
	return PHASE_DAY
}

func (dsh *dayStageHandler) OnEnter(ctx *GameContext) {
	ctx.startTimer()
	ctx.BroadcastPhase()
	ctx.BroadcastRoster()
}

func (dsh *dayStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) (any, error) {
	return nil, rejectMisplaced(ctx, req)
}

func (dsh *dayStageHandler) OnTimeout(ctx *GameContext) {
	dsh.onSwitch(PHASE_VOTING)
}

func (dsh *dayStageHandler) OnExit(ctx *GameContext) {
	ctx.Scheduler.Cancel()
}

func (dsh *dayStageHandler) SetOnSwitch(onSwitch func(Phase)) {
	dsh.onSwitch = onSwitch
}

// 投票阶段：存活玩家投票放逐一名玩家
type voteStageHandler struct {
	onSwitch func(Phase)
}

func NewVoteStageHandler() *voteStageHandler {
	return &voteStageHandler{}
}

func (vsh *voteStageHandler) Stage() Phase {
	return PHASE_VOTING
}

func (vsh *voteStageHandler) OnEnter(ctx *GameContext) {
	ctx.Votes = make(map[string]string)

	ctx.startTimer()
	ctx.BroadcastPhase()
	ctx.BroadcastResp(WrapResponse(RESP_VOTING_OPENED, VotingOpenedResponse{
		Targets:  ctx.alivePlayerViews(),
		Deadline: ctx.Scheduler.Deadline(),
	}))
}

func (vsh *voteStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) (any, error) {
	vreq := TryUnwrapVoteRequest(req)
	if vreq == nil {
		return nil, rejectMisplaced(ctx, req)
	}

	voter, ok := ctx.Registry.Get(req.PlayerID)
	if !ok {
		return nil, newError(CodeUnknownPlayer, "unknown voter")
	}
	if !voter.Alive {
		return nil, newError(CodeTargetOrVoterDead, "dead players cannot vote")
	}

	target, ok := ctx.Registry.Get(vreq.TargetID)
	if !ok {
		return nil, newError(CodeUnknownPlayer, "unknown vote target")
	}
	if !target.Alive {
		return nil, newError(CodeTargetOrVoterDead, fmt.Sprintf("%s is already dead", target.Name))
	}

	// 防止重复投票
	if _, voted := ctx.Votes[voter.ID]; voted && ctx.Options.ResubmitPolicy == RESUBMIT_REJECT {
		return nil, newError(CodeAlreadySubmitted, "vote already cast")
	}

	ctx.Votes[voter.ID] = target.ID

	ctx.BroadcastResp(WrapResponse(RESP_VOTE_CAST, VoteCastResponse{
		VoterID:    voter.ID,
		VoterName:  voter.Name,
		TargetID:   target.ID,
		TargetName: target.Name,
	}))

	if len(ctx.Votes) >= len(ctx.Registry.Alive()) {
		vsh.onSwitch(finishVoting(ctx))
	}

	return nil, nil
}

func (vsh *voteStageHandler) OnTimeout(ctx *GameContext) {
	vsh.onSwitch(finishVoting(ctx))
}

func (vsh *voteStageHandler) OnExit(ctx *GameContext) {
	ctx.Scheduler.Cancel()
}

func (vsh *voteStageHandler) SetOnSwitch(onSwitch func(Phase)) {
	vsh.onSwitch = onSwitch
}

// finishVoting 结算投票，返回下一个阶段。猎人被放逐时先进入复仇阶段，胜负稍后判定
func finishVoting(ctx *GameContext) Phase {
	result := ResolveVotes(ctx.Votes, ctx.Registry, ctx.DayNumber)
	if result.EliminatedID != "" {
		eliminated, _ := ctx.Registry.Get(result.EliminatedID)
		eliminated.Alive = false
	}

	ctx.History.RecordVote(ctx.now(), result)
	ctx.Votes = make(map[string]string)

	zap.L().Info(
		"投票结算完成",
		zap.String("room_id", ctx.RoomID),
		zap.Int("day_number", result.DayNumber),
		zap.String("eliminated_id", result.EliminatedID),
		zap.Bool("is_tie", result.IsTie),
	)

	ctx.BroadcastResp(WrapResponse(RESP_VOTE_RESOLVED, result))

	if result.HunterTriggered {
		ctx.PendingHunterID = result.EliminatedID
		return PHASE_HUNTER_REVENGE
	}

	return afterResolution(ctx, PHASE_MAFIA_INTRO)
}

// 猎人复仇阶段：被放逐的猎人可以带走一名存活玩家
type hunterStageHandler struct {
	onSwitch func(Phase)
}

func NewHunterStageHandler() *hunterStageHandler {
	return &hunterStageHandler{}
}

func (hsh *hunterStageHandler) Stage() Phase {
	return PHASE_HUNTER_REVENGE
}

func (hsh *hunterStageHandler) OnEnter(ctx *GameContext) {
	hunter, ok := ctx.Registry.Get(ctx.PendingHunterID)
	mustHold(ok, "hunter window opened without a pending hunter")

	ctx.startTimer()
	ctx.BroadcastPhase()
	ctx.BroadcastResp(WrapResponse(RESP_HUNTER_WINDOW_OPENED, HunterWindowResponse{
		HunterID:   hunter.ID,
		HunterName: hunter.Name,
		Deadline:   ctx.Scheduler.Deadline(),
	}))

	ctx.UnicastResp(hunter.ID, WrapResponse(RESP_YOUR_TURN, YourTurnResponse{
		Phase:    PHASE_HUNTER_REVENGE,
		Targets:  ctx.alivePlayerViews(),
		Deadline: ctx.Scheduler.Deadline(),
	}))
}

func (hsh *hunterStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) (any, error) {
	hreq := TryUnwrapHunterChoiceRequest(req)
	if hreq == nil {
		return nil, rejectMisplaced(ctx, req)
	}

	result, err := ResolveHunter(ctx.PendingHunterID, req.PlayerID, hreq.TargetID, ctx.Registry, ctx.DayNumber)
	if err != nil {
		return nil, err
	}

	target, _ := ctx.Registry.Get(result.TargetID)
	target.Alive = false

	hsh.finish(ctx, result)

	return nil, nil
}

func (hsh *hunterStageHandler) OnTimeout(ctx *GameContext) {
	hunter, _ := ctx.Registry.Get(ctx.PendingHunterID)
	hsh.finish(ctx, SkippedHunter(hunter, ctx.DayNumber))
}

func (hsh *hunterStageHandler) finish(ctx *GameContext, result HunterResult) {
	ctx.History.RecordHunter(ctx.now(), result)
	ctx.PendingHunterID = ""

	zap.L().Info(
		"猎人复仇结算完成",
		zap.String("room_id", ctx.RoomID),
		zap.String("hunter_id", result.HunterID),
		zap.String("target_id", result.TargetID),
		zap.Bool("skipped", result.Skipped),
	)

	ctx.BroadcastResp(WrapResponse(RESP_HUNTER_RESOLVED, result))

	hsh.onSwitch(afterResolution(ctx, PHASE_MAFIA_INTRO))
}

func (hsh *hunterStageHandler) OnExit(ctx *GameContext) {
	ctx.Scheduler.Cancel()
}

func (hsh *hunterStageHandler) SetOnSwitch(onSwitch func(Phase)) {
	hsh.onSwitch = onSwitch
}

// 结束阶段：公布胜负与全部身份，等待主持人重置
type endedStageHandler struct {
	onSwitch func(Phase)
}

func NewEndedStageHandler() *endedStageHandler {
	return &endedStageHandler{}
}

func (esh *endedStageHandler) Stage() Phase {
	return PHASE_ENDED
}

func (esh *endedStageHandler) OnEnter(ctx *GameContext) {
	ctx.Scheduler.Cancel()

	metrics.GamesEnded.WithLabelValues(string(ctx.Outcome.Winner)).Inc()

	zap.L().Info(
		"游戏结束",
		zap.String("room_id", ctx.RoomID),
		zap.String("winner", string(ctx.Outcome.Winner)),
		zap.String("reason", ctx.Outcome.Reason),
		zap.Int("day_number", ctx.DayNumber),
	)

	// 离线的主持人无法重置房间
	handOverHost(ctx)

	ctx.BroadcastPhase()
	ctx.BroadcastResp(WrapResponse(RESP_GAME_ENDED, GameEndedResponse{
		Winner:  ctx.Outcome.Winner,
		Reason:  ctx.Outcome.Reason,
		Players: ctx.viewFor(""),
		Stats:   ComputeStats(ctx.Registry, ctx.History),
		History: ctx.History.Entries(),
	}))
}

func (esh *endedStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) (any, error) {
	return nil, rejectMisplaced(ctx, req)
}

func (esh *endedStageHandler) OnTimeout(ctx *GameContext) {}

func (esh *endedStageHandler) OnExit(ctx *GameContext) {}

func (esh *endedStageHandler) SetOnSwitch(onSwitch func(Phase)) {
	esh.onSwitch = onSwitch
}

// rejectMisplaced 为不属于当前阶段的请求选择错误码
func rejectMisplaced(ctx *GameContext, req RequestWrapper) error {
	switch req.ReqType {
	case REQ_NIGHT_ACTION:
		nreq := TryUnwrapNightActionRequest(req)
		if nreq == nil || nreq.Kind.Window() == "" {
			return newError(CodeBadRequest, "unknown night action")
		}
		return windowError(ctx.Phase, nreq.Kind.Window())

	case REQ_VOTE:
		return windowError(ctx.Phase, PHASE_VOTING)

	case REQ_HUNTER_CHOICE:
		return newError(CodeInvalidHunterAction, "no hunter revenge is pending")

	case REQ_START_GAME:
		if ctx.Phase == PHASE_ENDED {
			return newError(CodeWrongPhase, "reset the room before starting a new game")
		}
		return newError(CodeWrongPhase, "game already in progress")

	default:
		return newError(CodeBadRequest, fmt.Sprintf("unsupported request type %q during %s", req.ReqType, ctx.Phase))
	}
}

func requireHost(ctx *GameContext, playerID string) error {
	player, ok := ctx.Registry.Get(playerID)
	if !ok {
		return newError(CodeUnknownPlayer, "unknown player")
	}

	if !player.IsHost {
		return newError(CodeNotHost, "only the host can do this")
	}

	return nil
}

func ownView(ctx *GameContext, playerID string) PlayerView {
	for _, v := range ctx.viewFor(playerID) {
		if v.ID == playerID {
			return v
		}
	}

	return PlayerView{}
}

func onPlayerJoin(ctx *GameContext, req RequestWrapper) (any, error) {
	jreq := TryUnwrapJoinGameRequest(req)
	if jreq == nil {
		return nil, newError(CodeBadRequest, "malformed join request")
	}

	name := strings.TrimSpace(jreq.PlayerName)

	// 同名、已断线且令牌匹配的玩家视为断线重连
	if existing := ctx.Registry.FindByName(name); existing != nil {
		if existing.Connected || jreq.ReconnectToken != existing.Token {
			zap.L().Debug(
				"同名加入被拒绝",
				zap.String("room_id", ctx.RoomID),
				zap.String("player_name", name),
				zap.Bool("connected", existing.Connected),
			)
			return nil, newError(CodeDuplicateOrEmptyName, "player name already taken: "+name)
		}

		return onPlayerReconnect(ctx, existing, jreq.RespCh), nil
	}

	if ctx.Phase != PHASE_LOBBY {
		return nil, newError(CodeWrongPhase, "game already in progress")
	}

	if limit := ctx.Options.MaxPlayers; limit > 0 && ctx.Registry.Len() >= limit {
		return nil, newError(CodeRoomFull, fmt.Sprintf("room is full (%d players)", limit))
	}

	player, err := ctx.Registry.Add(name, jreq.RespCh)
	if err != nil {
		return nil, err
	}

	zap.L().Info(
		"玩家加入房间",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", player.ID),
		zap.String("player_name", player.Name),
		zap.Bool("is_host", player.IsHost),
	)

	resp := JoinGameResponse{
		RoomID:    ctx.RoomID,
		Phase:     ctx.Phase,
		DayNumber: ctx.DayNumber,
		Joiner:    ownView(ctx, player.ID),
		Players:   ctx.viewFor(player.ID),

		ReconnectToken: player.Token,
	}

	ctx.UnicastResp(player.ID, WrapResponse(RESP_JOIN_GAME, resp))
	ctx.BroadcastRoster()

	return resp, nil
}

func onPlayerReconnect(ctx *GameContext, player *Player, respCh chan ResponseWrapper) JoinGameResponse {
	player.RespCh = respCh
	player.Connected = true

	handOverHost(ctx)

	zap.L().Info(
		"断线重连成功",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", player.ID),
		zap.String("player_name", player.Name),
		zap.String("phase", string(ctx.Phase)),
	)

	resp := JoinGameResponse{
		RoomID:      ctx.RoomID,
		Phase:       ctx.Phase,
		DayNumber:   ctx.DayNumber,
		Joiner:      ownView(ctx, player.ID),
		Players:     ctx.viewFor(player.ID),
		Reconnected: true,

		ReconnectToken: player.Token,
	}

	// 先给重连者私发完整信息，再广播名单
	ctx.UnicastResp(player.ID, WrapResponse(RESP_JOIN_GAME, resp))
	if player.Role != ROLE_UNSET {
		ctx.UnicastResp(player.ID, WrapResponse(
			RESP_ROLE_ASSIGNED,
			RoleAssignedResponse{Role: player.Role, RoleName: player.Role.DisplayName()},
		))
	}
	ctx.BroadcastRoster()

	return resp
}

// handOverHost 在主持人离线时把主持权交给最早加入且在线的玩家。
// 开启 HostSeesRoles 时游戏进行中不移交，等到游戏结束再移交。
func handOverHost(ctx *GameContext) {
	if ctx.Phase == PHASE_LOBBY {
		return
	}
	if ctx.Phase.InGame() && ctx.Options.HostSeesRoles {
		return
	}

	if newHost := ctx.Registry.PassHost(); newHost != nil {
		zap.L().Info(
			"主持人离线，已移交主持人",
			zap.String("room_id", ctx.RoomID),
			zap.String("phase", string(ctx.Phase)),
			zap.String("new_host_id", newHost.ID),
			zap.String("new_host_name", newHost.Name),
		)
	}
}

func onPlayerExit(ctx *GameContext, req RequestWrapper, switchTo func(Phase)) {
	player, exists := ctx.Registry.Get(req.PlayerID)
	if !exists {
		zap.L().Warn(
			"玩家不存在，无法退出",
			zap.String("player_id", req.PlayerID),
		)
		return
	}

	// 检查 RespCh 是否匹配，不匹配说明已经被新连接顶替
	if ereq := TryUnwrapExitGameRequest(req); ereq != nil && ereq.RespCh != nil && ereq.RespCh != player.RespCh {
		zap.L().Info(
			"检测到旧连接退出（已被顶替），忽略",
			zap.String("player_id", player.ID),
			zap.String("player_name", player.Name),
		)
		return
	}

	// 关闭该玩家的响应通道，通知写协程退出
	if player.RespCh != nil {
		close(player.RespCh)
		player.RespCh = nil
	}
	player.Connected = false

	ctx.BroadcastResp(WrapResponse(RESP_EXIT_GAME, ExitGameResponse{
		LeftPlayerID:   player.ID,
		LeftPlayerName: player.Name,
	}))

	switch {
	case ctx.Phase == PHASE_LOBBY:
		// 大厅中直接移除，主持人离开时由最早加入的玩家接任
		newHost := ctx.Registry.Remove(player.ID)
		if newHost != nil {
			zap.L().Info(
				"主持人离开，已移交主持人",
				zap.String("room_id", ctx.RoomID),
				zap.String("new_host_id", newHost.ID),
				zap.String("new_host_name", newHost.Name),
			)
		}

	case ctx.Phase.InGame() && player.IsHost && ctx.Options.AbortOnHostLeave:
		zap.L().Info(
			"主持人在游戏中离开，游戏中止",
			zap.String("room_id", ctx.RoomID),
			zap.String("host_id", player.ID),
		)

		ctx.Outcome = WinOutcome{Winner: WINNER_NONE, Reason: "The host left the game"}
		switchTo(PHASE_ENDED)
	}

	if player.IsHost {
		handOverHost(ctx)
	}

	zap.L().Info(
		"玩家已断开连接",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", player.ID),
		zap.String("player_name", player.Name),
		zap.String("phase", string(ctx.Phase)),
	)

	ctx.BroadcastRoster()
}
