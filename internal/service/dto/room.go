package dto

import "time"

type CreateRoomRequest struct {
	RoomName string `json:"room_name"`
}

// 创建房间只分配房间号，创建者随后通过 websocket 加入并成为房主
type CreateRoomResponse struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	CreatedAt time.Time `json:"created_at"`
}

type RoomSummary struct {
	RoomID         string    `json:"room_id"`
	RoomName       string    `json:"room_name"`
	Phase          string    `json:"phase"`
	DayNumber      int       `json:"day_number"`
	PlayerCount    int       `json:"player_count"`
	ConnectedCount int       `json:"connected_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type HealthResponse struct {
	Status           string `json:"status"`
	Rooms            int    `json:"rooms"`
	Players          int    `json:"players"`
	ConnectedPlayers int    `json:"connected_players"`
}
