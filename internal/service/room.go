package service

import (
	"errors"
	"sort"
	"sync"
	"time"

	"mafia-be/internal/config"
	"mafia-be/internal/metrics"
	"mafia-be/internal/service/dto"
	"mafia-be/internal/service/game"

	"go.uber.org/zap"
)

type RoomService struct {
	state *roomServiceState

	opts            game.Options
	idleTimeout     time.Duration
	cleanupInterval time.Duration
}

type roomServiceState struct {
	mu sync.RWMutex

	// 从房间 ID 到房间的映射
	rooms map[string]*roomEntry

	cleanUpDone chan struct{}
	closeOnce   sync.Once
}

func NewRoomService(cfg *config.AppConfig) *RoomService {
	rs := newRoomService(cfg, gameOptionsFrom(cfg))

	// 启动一个 goroutine 定期清理过期的房间
	go rs.startCleanupLoop()

	return rs
}

func newRoomService(cfg *config.AppConfig, opts game.Options) *RoomService {
	return &RoomService{
		state: &roomServiceState{
			rooms:       make(map[string]*roomEntry),
			cleanUpDone: make(chan struct{}),
		},
		opts:            opts,
		idleTimeout:     cfg.Room.IdleTimeout,
		cleanupInterval: cfg.Room.CleanupInterval,
	}
}

func (rs *RoomService) startCleanupLoop() {
	ticker := time.NewTicker(rs.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.state.cleanUpDone:
			return

		case now := <-ticker.C:
			if removed := rs.sweep(now); removed > 0 {
				zap.S().Infof("本轮清理了 %d 个房间", removed)
			}
		}
	}
}

// sweep 回收失效的房间，返回回收数量
func (rs *RoomService) sweep(now time.Time) int {
	rs.state.mu.RLock()
	entries := make(map[string]*roomEntry, len(rs.state.rooms))
	for roomID, entry := range rs.state.rooms {
		entries[roomID] = entry
	}
	rs.state.mu.RUnlock()

	// 查询房间状态需要经过房间协程，不能持有锁
	stale := make([]string, 0)
	for roomID, entry := range entries {
		status, err := entry.machine.Status()
		if err != nil {
			stale = append(stale, roomID)
			continue
		}

		rs.state.mu.Lock()
		if status.ConnectedCount > 0 {
			entry.lastActive = now
		}
		valid := isRoomValid(status, entry.joined, entry.lastActive, now, rs.idleTimeout)
		rs.state.mu.Unlock()

		if !valid {
			stale = append(stale, roomID)
		}
	}

	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	for _, roomID := range stale {
		entry, ok := rs.state.rooms[roomID]
		if !ok {
			continue
		}

		zap.S().Infof("房间 %s 状态失效，开始清理", roomID)

		entry.machine.Stop()
		delete(rs.state.rooms, roomID)
	}
	metrics.ActiveRooms.Set(float64(len(rs.state.rooms)))

	return len(stale)
}

// Close 停止清理协程并关闭所有房间
func (rs *RoomService) Close() {
	rs.state.closeOnce.Do(func() {
		close(rs.state.cleanUpDone)
	})

	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	for roomID, entry := range rs.state.rooms {
		entry.machine.Stop()
		delete(rs.state.rooms, roomID)
	}
	metrics.ActiveRooms.Set(0)
}

func (rs *RoomService) CreateRoom(req dto.CreateRoomRequest) (dto.CreateRoomResponse, error) {
	if req.RoomName == "" {
		return dto.CreateRoomResponse{}, errors.New("房间名称不能为空")
	}

	rs.state.mu.Lock()

	roomID := newRoomID()
	for rs.state.rooms[roomID] != nil {
		roomID = newRoomID()
	}

	machine := game.NewGameMachine(roomID, rs.opts)
	rs.state.rooms[roomID] = &roomEntry{
		machine:    machine,
		name:       req.RoomName,
		lastActive: machine.CreatedAt(),
	}

	// 每个房间一个独立的 goroutine 驱动状态机
	go machine.Start()

	metrics.ActiveRooms.Set(float64(len(rs.state.rooms)))

	rs.state.mu.Unlock()

	zap.S().Infof("房间 %s(%s) 已创建", roomID, req.RoomName)

	return dto.CreateRoomResponse{
		RoomID:    roomID,
		RoomName:  req.RoomName,
		CreatedAt: machine.CreatedAt(),
	}, nil
}

func (rs *RoomService) GetRoom(roomID string) (*game.GameMachine, error) {
	if roomID == "" {
		return nil, game.NewError(game.CodeBadRequest, "房间 ID 不能为空")
	}

	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	entry := rs.state.rooms[roomID]
	if entry == nil {
		return nil, game.ErrRoomNotFound
	}

	return entry.machine, nil
}

// JoinRoom 把一个连接接入房间，req.RespCh 由房间负责关闭
func (rs *RoomService) JoinRoom(roomID string, req game.JoinGameRequest) (*game.GameMachine, game.JoinGameResponse, error) {
	rs.state.mu.RLock()
	entry := rs.state.rooms[roomID]
	rs.state.mu.RUnlock()

	if entry == nil {
		return nil, game.JoinGameResponse{}, game.ErrRoomNotFound
	}
	machine := entry.machine

	zap.S().Debugf("房间 %s 收到加入请求：%s", roomID, req.PlayerName)

	resp, err := machine.JoinWith(req)
	if err != nil {
		zap.S().Warnf("房间 %s 处理 %s 加入失败：%v", roomID, req.PlayerName, err)
		return nil, game.JoinGameResponse{}, err
	}

	// 只有成功加入才算有人来过，失败的加入不影响空房间的宽限期
	rs.state.mu.Lock()
	entry.joined = true
	rs.state.mu.Unlock()

	zap.S().Infof("房间 %s 接纳玩家 %s(%s)", roomID, req.PlayerName, resp.Joiner.ID)

	return machine, resp, nil
}

func (rs *RoomService) DescribeRoom(roomID string) (dto.RoomSummary, error) {
	rs.state.mu.RLock()
	entry := rs.state.rooms[roomID]
	rs.state.mu.RUnlock()

	if entry == nil {
		return dto.RoomSummary{}, game.ErrRoomNotFound
	}

	return describe(entry)
}

// ListRooms 返回所有仍在运行的房间，按创建时间排序
func (rs *RoomService) ListRooms() []dto.RoomSummary {
	rs.state.mu.RLock()
	entries := make([]*roomEntry, 0, len(rs.state.rooms))
	for _, entry := range rs.state.rooms {
		entries = append(entries, entry)
	}
	rs.state.mu.RUnlock()

	summaries := make([]dto.RoomSummary, 0, len(entries))
	for _, entry := range entries {
		summary, err := describe(entry)
		if err != nil {
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})

	return summaries
}

func (rs *RoomService) Health() dto.HealthResponse {
	health := dto.HealthResponse{Status: "ok"}

	for _, summary := range rs.ListRooms() {
		health.Rooms++
		health.Players += summary.PlayerCount
		health.ConnectedPlayers += summary.ConnectedCount
	}

	return health
}

func describe(entry *roomEntry) (dto.RoomSummary, error) {
	status, err := entry.machine.Status()
	if err != nil {
		return dto.RoomSummary{}, err
	}

	return dto.RoomSummary{
		RoomID:         status.RoomID,
		RoomName:       entry.name,
		Phase:          string(status.Phase),
		DayNumber:      status.DayNumber,
		PlayerCount:    status.PlayerCount,
		ConnectedCount: status.ConnectedCount,
		CreatedAt:      status.CreatedAt,
	}, nil
}
