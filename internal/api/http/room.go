package http

import (
	"mafia-be/internal/service/dto"
	"mafia-be/internal/service/game"
	"mafia-be/internal/state"

	"github.com/kataras/iris/v12"
)

func CreateRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.CreateRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		resp, err := appState.RoomSvc.CreateRoom(req)
		if err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(resp)
	}
}

func ListRooms(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(appState.RoomSvc.ListRooms())
	}
}

func GetRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		summary, err := appState.RoomSvc.DescribeRoom(ctx.Params().Get("room_id"))
		if err != nil {
			status := iris.StatusInternalServerError
			if game.CodeOf(err) == game.CodeRoomNotFound {
				status = iris.StatusNotFound
			}

			ctx.StatusCode(status)
			ctx.JSON(game.WrapErrResponse(err))
			return
		}

		ctx.JSON(summary)
	}
}

func Health(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(appState.RoomSvc.Health())
	}
}
