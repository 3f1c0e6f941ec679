package http

import (
	"time"

	"mafia-be/internal/api/http/middleware"
	"mafia-be/internal/api/http/websocket"
	"mafia-be/internal/state"

	"github.com/kataras/iris/v12"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	VISITOR_CLEANUP_INTERVAL = time.Minute
	VISITOR_TTL              = 3 * time.Minute
)

func NewApp(appState *state.AppState, done <-chan struct{}) *iris.Application {
	app := iris.Default()

	app.UseRouter(middleware.Monitor)

	app.Get("/health", Health(appState))
	app.Get("/metrics", iris.FromStd(promhttp.Handler()))

	limiter := middleware.NewIPRateLimiter(
		appState.Cfg.RateLimit.HTTPPerSecond,
		appState.Cfg.RateLimit.HTTPBurst,
	)
	go limiter.CleanupVisitors(done, VISITOR_CLEANUP_INTERVAL, VISITOR_TTL)

	api := app.Party("/api/v1", limiter.Handler())

	api.Post("/rooms/create", CreateRoom(appState))
	api.Get("/rooms", ListRooms(appState))
	api.Get("/rooms/{room_id:string}", GetRoom(appState))

	api.Get("/ws/join", websocket.JoinGame(appState))

	return app
}

func RunServer(appState *state.AppState) error {
	done := make(chan struct{})
	defer close(done)

	app := NewApp(appState, done)

	return app.Listen(appState.Cfg.Addr())
}
