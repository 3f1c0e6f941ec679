package state

import (
	"mafia-be/internal/config"
	"mafia-be/internal/service"
)

// AppState 汇总各 handler 共享的依赖
type AppState struct {
	Cfg     *config.AppConfig
	RoomSvc *service.RoomService
}

func NewAppState(cfg *config.AppConfig) *AppState {
	return &AppState{
		Cfg:     cfg,
		RoomSvc: service.NewRoomService(cfg),
	}
}

// Close 关闭所有房间，在服务器退出后调用
func (s *AppState) Close() {
	s.RoomSvc.Close()
}
