package websocket

import (
	"time"

	"mafia-be/internal/metrics"
	"mafia-be/internal/service/game"
	"mafia-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func JoinGame(appState *state.AppState) iris.Handler {
	upgrader := newUpgrader(appState.Cfg.AllowedOrigins)

	return func(ctx iris.Context) {
		roomID := ctx.URLParam("room_id")

		// 升级前先确认房间存在
		if _, err := appState.RoomSvc.GetRoom(roomID); err != nil {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(game.WrapErrResponse(err))
			return
		}

		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			return
		}

		defer conn.Close()

		clientIP := ctx.RemoteAddr()

		keepAlive(conn)

		// 由房间负责关闭
		respCh := make(chan game.ResponseWrapper, RESP_BUFFER_SIZE)

		machine, joinResp, ok := acceptJoin(appState, conn, roomID, clientIP, respCh)
		if !ok {
			return
		}

		playerID := joinResp.Joiner.ID

		metrics.ConnectedPlayers.Inc()
		defer metrics.ConnectedPlayers.Dec()

		zap.L().Info(
			"玩家成功加入房间",
			zap.String("client_ip", clientIP),
			zap.String("room_id", roomID),
			zap.String("player_id", playerID),
			zap.String("player_name", joinResp.Joiner.Name),
			zap.Bool("reconnected", joinResp.Reconnected),
		)

		// 本连接自己的回执（确认、错误、快照），不经过房间
		localCh := make(chan game.ResponseWrapper, RESP_BUFFER_SIZE)

		// 写协程的退出信号
		writeDoneCh := make(chan struct{})
		defer close(writeDoneCh)

		go writeLoop(conn, clientIP, respCh, localCh, writeDoneCh)

		reply := func(resp game.ResponseWrapper) {
			select {
			case localCh <- resp:
			default:
				zap.L().Warn(
					"回执缓冲已满，丢弃回执",
					zap.String("player_id", playerID),
					zap.String("resp_type", resp.RespType),
				)
			}
		}

		limiter := rate.NewLimiter(
			rate.Limit(appState.Cfg.RateLimit.MessagesPerSecond),
			appState.Cfg.RateLimit.Burst,
		)

		// 读取协程（主协程）
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Error(
						"读取消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}

				break
			}

			if !limiter.Allow() {
				metrics.RateLimited.WithLabelValues("ws").Inc()
				reply(game.WrapErrResponse(game.ErrRateLimited))
				continue
			}

			req, err := game.ParseClientRequest(msg, playerID)
			if err != nil {
				zap.L().Debug(
					"解析消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)

				reply(game.WrapErrResponse(err))
				continue
			}

			data, err := machine.Dispatch(req)
			if err != nil {
				reply(game.WrapErrResponse(err))

				if game.CodeOf(err) == game.CodeRoomClosed {
					closeWithReason(conn, websocket.CloseGoingAway, string(game.CodeRoomClosed))
					break
				}
				continue
			}

			if snapshot, ok := data.(game.SnapshotResponse); ok {
				reply(game.WrapResponse(game.RESP_SNAPSHOT, snapshot))
				continue
			}

			reply(game.WrapAckResponse(req.ReqType))
		}

		// 读循环退出，表示客户端断开连接
		zap.L().Info(
			"客户端连接断开，通知房间",
			zap.String("client_ip", clientIP),
			zap.String("player_id", playerID),
		)

		if err := machine.Disconnect(playerID, respCh); err != nil {
			zap.L().Warn(
				"通知房间玩家离开失败",
				zap.String("player_id", playerID),
				zap.Error(err),
			)
		}
	}
}

// acceptJoin 读取首条消息并加入房间，失败时直接回写错误
func acceptJoin(
	appState *state.AppState,
	conn *websocket.Conn,
	roomID, clientIP string,
	respCh chan game.ResponseWrapper,
) (*game.GameMachine, game.JoinGameResponse, bool) {
	fail := func(err error) (*game.GameMachine, game.JoinGameResponse, bool) {
		conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
		conn.WriteJSON(game.WrapErrResponse(err))
		closeWithReason(conn, websocket.ClosePolicyViolation, string(game.CodeOf(err)))
		return nil, game.JoinGameResponse{}, false
	}

	// 读取首次请求，获取必要的参数
	_, msg, err := conn.ReadMessage()
	if err != nil {
		zap.L().Error(
			"读取首次请求失败",
			zap.String("client_ip", clientIP),
			zap.Error(err),
		)
		return nil, game.JoinGameResponse{}, false
	}

	req, err := game.ParseJoinRequest(msg)
	if err != nil {
		zap.L().Warn(
			"首次请求不是有效的JoinGame请求",
			zap.String("client_ip", clientIP),
			zap.Error(err),
		)
		return fail(err)
	}

	req.RespCh = respCh

	machine, resp, err := appState.RoomSvc.JoinRoom(roomID, *req)
	if err != nil {
		zap.L().Warn(
			"加入房间失败",
			zap.String("client_ip", clientIP),
			zap.Error(err),
		)
		return fail(err)
	}

	return machine, resp, true
}

// writeLoop 是唯一写连接的协程
func writeLoop(
	conn *websocket.Conn,
	clientIP string,
	respCh <-chan game.ResponseWrapper,
	localCh <-chan game.ResponseWrapper,
	writeDoneCh <-chan struct{},
) {
	ticker := time.NewTicker(HEARTBEAT_INTERVAL)
	defer ticker.Stop()

	write := func(resp game.ResponseWrapper) bool {
		conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))

		if err := conn.WriteJSON(resp); err != nil {
			zap.L().Error(
				"发送消息失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			return false
		}

		zap.L().Debug(
			"发送消息",
			zap.String("client_ip", clientIP),
			zap.String("resp_type", resp.RespType),
		)
		return true
	}

	for {
		select {
		case <-writeDoneCh:
			zap.L().Debug(
				"WebSocket写入协程退出",
				zap.String("client_ip", clientIP),
			)
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				zap.L().Error(
					"发送心跳失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				return
			}

		case resp := <-localCh:
			if !write(resp) {
				return
			}

		case resp, ok := <-respCh:
			// 玩家离开时房间会关闭通道
			if !ok {
				zap.L().Debug(
					"响应通道已关闭，退出写协程",
					zap.String("client_ip", clientIP),
				)
				return
			}

			if !write(resp) {
				return
			}
		}
	}
}
