package room

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/treasure-hunt/internal/apperrors"
	"github.com/palemoky/treasure-hunt/internal/game/card"
	"github.com/palemoky/treasure-hunt/internal/game/session"
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/types"
)

// NormalizeCode 统一房间号格式
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateRoom 创建房间，创建者成为房主
func (rm *RoomManager) CreateRoom(client types.ClientInterface, name, password string) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.ErrInvalidName
	}

	rm.mu.Lock()
	code := rm.generateRoomCode()
	room := newRoom(code, session.New(code, client.GetID(), name, password), rm.opts)
	rm.rooms[code] = room
	rm.mu.Unlock()

	room.mu.Lock()
	room.clients[client.GetID()] = client
	client.SetName(name)
	client.SetRoom(code)

	client.SendMessage(codec.MustNewMessage(protocol.MsgRoomCreated, protocol.RoomCreatedPayload{
		RoomID:     code,
		GameData:   room.game.Snapshot(client.GetID(), room.conceal),
		PlayerInfo: room.game.PlayerSnapshot(client.GetID()),
	}))
	room.broadcastState()
	rm.save(room)
	room.mu.Unlock()

	log.Info().Str("room", code).Str("player", name).Bool("password", password != "").Msg("🏠 房间已创建")
	rm.notifyLobby()
	return room, nil
}

// JoinRoom 加入房间；同名玩家视为重新入座
func (rm *RoomManager) JoinRoom(client types.ClientInterface, code, name, password string) (*Room, error) {
	room := rm.GetRoom(NormalizeCode(code))
	if room == nil {
		return nil, apperrors.ErrRoomNotFound
	}

	room.mu.Lock()
	oldID := ""
	if p, ok := room.game.PlayerByName(strings.TrimSpace(name)); ok {
		oldID = p.ID
	}
	rejoined, err := room.game.Join(client.GetID(), name, password)
	if err != nil {
		room.mu.Unlock()
		return nil, err
	}
	rm.bind(room, client, strings.TrimSpace(name), oldID)
	room.broadcastState()
	rm.save(room)
	room.mu.Unlock()

	if rejoined {
		log.Info().Str("room", room.Code).Str("player", name).Msg("🔄 玩家重新入座")
	} else {
		log.Info().Str("room", room.Code).Str("player", name).Msg("👤 玩家加入房间")
	}
	rm.notifyLobby()
	return room, nil
}

// ReconnectToRoom 按名字重连，不校验密码
func (rm *RoomManager) ReconnectToRoom(client types.ClientInterface, code, name string) (*Room, error) {
	room := rm.GetRoom(NormalizeCode(code))
	if room == nil {
		return nil, apperrors.ErrRoomNotFound
	}

	room.mu.Lock()
	name = strings.TrimSpace(name)
	p, ok := room.game.PlayerByName(name)
	if !ok {
		room.mu.Unlock()
		return nil, apperrors.ErrPlayerNotFound
	}
	if err := room.game.Reconnect(client.GetID(), name); err != nil {
		room.mu.Unlock()
		return nil, err
	}
	rm.bind(room, client, name, p.ID)
	room.broadcastState()
	rm.save(room)
	room.mu.Unlock()

	log.Info().Str("room", room.Code).Str("player", name).Msg("📶 玩家重连到房间")
	return room, nil
}

// bind 将连接绑定到座位，替换掉同一座位上的旧连接
func (rm *RoomManager) bind(room *Room, client types.ClientInterface, name, oldID string) {
	if seat, ok := room.offline[name]; ok {
		seat.timer.Stop()
		delete(room.offline, name)
	}
	if oldID != "" && oldID != client.GetID() {
		if old, ok := room.clients[oldID]; ok {
			old.SetRoom("")
			delete(room.clients, oldID)
		}
	}
	delete(room.spectators, client.GetID())
	room.clients[client.GetID()] = client
	client.SetName(name)
	client.SetRoom(room.Code)
}

// SpectateRoom 以观战者身份进入房间
func (rm *RoomManager) SpectateRoom(client types.ClientInterface, code string) (*Room, error) {
	room := rm.GetRoom(NormalizeCode(code))
	if room == nil {
		return nil, apperrors.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.spectators[client.GetID()] = client
	client.SetRoom(room.Code)
	room.sendState(client, "")

	log.Info().Str("room", room.Code).Str("client", client.GetID()).Msg("👀 观战者进入房间")
	return room, nil
}

// LeaveRoom 离开房间
func (rm *RoomManager) LeaveRoom(client types.ClientInterface) {
	roomCode := client.GetRoom()
	if roomCode == "" {
		return
	}

	room := rm.GetRoom(roomCode)
	if room == nil {
		client.SetRoom("")
		return
	}

	room.mu.Lock()
	if _, ok := room.spectators[client.GetID()]; ok {
		delete(room.spectators, client.GetID())
		client.SetRoom("")
		room.mu.Unlock()
		return
	}
	if _, ok := room.clients[client.GetID()]; !ok {
		client.SetRoom("")
		room.mu.Unlock()
		return
	}

	delete(room.clients, client.GetID())
	client.SetRoom("")
	res := room.game.Leave(client.GetID())
	rm.applyLeave(room, res)
	room.mu.Unlock()

	log.Info().Str("room", roomCode).Str("player", client.GetName()).Msg("👋 玩家离开房间")
	rm.notifyLobby()
}

// applyLeave 处理玩家被移除后的房间状态，调用方持有房间锁
func (rm *RoomManager) applyLeave(room *Room, res session.LeaveResult) {
	if !res.Removed {
		return
	}
	if res.Empty {
		rm.removeRoom(room)
		log.Info().Str("room", room.Code).Msg("🏠 房间已解散")
		return
	}

	switch {
	case res.Finished:
		rm.onFinished(room)
	case res.RoundEnding:
		rm.scheduleResolve(room)
	}
	room.broadcastState()
	rm.save(room)
}

// GetRoom 获取房间
func (rm *RoomManager) GetRoom(code string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[code]
}

// RoomCount 房间总数
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// allRooms 按创建时间排序的房间快照，不持有 rm.mu 时再逐个加锁
func (rm *RoomManager) allRooms() []*Room {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	rm.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].Code < rooms[j].Code
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

// GetRoomList 获取大厅房间列表（仅等待中的房间）
func (rm *RoomManager) GetRoomList() []protocol.RoomListItem {
	rooms := make([]protocol.RoomListItem, 0)
	for _, room := range rm.allRooms() {
		room.mu.Lock()
		if room.game.State() == session.StateWaiting && room.game.PlayerCount() > 0 {
			rooms = append(rooms, protocol.RoomListItem{
				ID:          room.Code,
				HostName:    room.game.HostName(),
				PlayerCount: room.game.PlayerCount(),
				HasPassword: room.game.HasPassword(),
			})
		}
		room.mu.Unlock()
	}
	return rooms
}

// GetOngoingGames 获取进行中的游戏（供观战）
func (rm *RoomManager) GetOngoingGames() []protocol.OngoingGameItem {
	games := make([]protocol.OngoingGameItem, 0)
	for _, room := range rm.allRooms() {
		room.mu.Lock()
		if room.game.State() == session.StatePlaying {
			found, foundGoal, traps, trapGoal := room.game.Progress()
			games = append(games, protocol.OngoingGameItem{
				ID:            room.Code,
				Round:         min(room.game.CurrentRound(), card.MaxRounds),
				MaxRounds:     card.MaxRounds,
				PlayerCount:   room.game.PlayerCount(),
				TreasureFound: found,
				TreasureGoal:  foundGoal,
				TrapTriggered: traps,
				TrapGoal:      trapGoal,
				Spectators:    len(room.spectators),
			})
		}
		room.mu.Unlock()
	}
	return games
}

// GetActiveGamesCount 获取进行中的游戏数量
func (rm *RoomManager) GetActiveGamesCount() int {
	count := 0
	for _, room := range rm.allRooms() {
		// 已结束的房间只是等待清理，不计入
		if room.State() == session.StatePlaying {
			count++
		}
	}
	return count
}

// notifyLobby 通知大厅房间列表变化，调用方不能持有房间锁
func (rm *RoomManager) notifyLobby() {
	if rm.opts.OnLobbyChanged != nil {
		rm.opts.OnLobbyChanged()
	}
}

// save 异步镜像房间到 Redis，调用方持有房间锁
func (rm *RoomManager) save(room *Room) {
	if !rm.redisStore.Enabled() {
		return
	}
	data := room.toRoomData(rm.now())
	go func() {
		if err := rm.redisStore.SaveRoom(context.Background(), data.Code, data); err != nil {
			log.Warn().Err(err).Str("room", data.Code).Msg("⚠️ 保存房间到 Redis 失败")
		}
	}()
}
