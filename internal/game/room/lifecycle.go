package room

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/treasure-hunt/internal/game/session"
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/types"
)

// NotifyPlayerOffline 连接断开：观战者直接移除，玩家保留座位直到断线超时
func (rm *RoomManager) NotifyPlayerOffline(client types.ClientInterface) {
	roomCode := client.GetRoom()
	if roomCode == "" {
		return
	}

	room := rm.GetRoom(roomCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if _, ok := room.spectators[client.GetID()]; ok {
		delete(room.spectators, client.GetID())
		return
	}
	if _, ok := room.clients[client.GetID()]; !ok {
		return
	}
	delete(room.clients, client.GetID())

	player, ok := room.game.Player(client.GetID())
	if !ok {
		return
	}
	_, roundEnding := room.game.Disconnect(client.GetID())

	name := player.Name
	if old, ok := room.offline[name]; ok {
		old.timer.Stop()
	}
	seat := &offlineSeat{}
	seat.timer = time.AfterFunc(rm.opts.DisconnectTimeout, func() { rm.expireDisconnect(room, name, seat) })
	room.offline[name] = seat

	if roundEnding {
		rm.scheduleResolve(room)
	}
	room.broadcastState()
	rm.save(room)

	log.Info().
		Str("room", roomCode).
		Str("player", name).
		Dur("timeout", rm.opts.DisconnectTimeout).
		Msg("📴 玩家掉线")
}

// expireDisconnect 断线超时仍未重连，移除玩家
//
// 计时器可能在等锁期间失效：房间已删除，或玩家重连后又掉线换了新的计时器。
func (rm *RoomManager) expireDisconnect(room *Room, name string, seat *offlineSeat) {
	room.mu.Lock()
	if rm.GetRoom(room.Code) != room || room.offline[name] != seat {
		room.mu.Unlock()
		return
	}
	delete(room.offline, name)
	player, ok := room.game.PlayerByName(name)
	if !ok {
		room.mu.Unlock()
		return
	}
	res := room.game.RemoveDisconnected(player.ID)
	rm.applyLeave(room, res)
	room.mu.Unlock()

	if res.Removed {
		log.Info().Str("room", room.Code).Str("player", name).Msg("⏰ 断线超时，玩家已移出房间")
		rm.notifyLobby()
	}
}

// removeRoom 删除房间，调用方持有房间锁
func (rm *RoomManager) removeRoom(room *Room) {
	room.stopTimers()

	rm.mu.Lock()
	if rm.rooms[room.Code] == room {
		delete(rm.rooms, room.Code)
	}
	rm.mu.Unlock()

	if rm.redisStore.Enabled() {
		code := room.Code
		go func() {
			if err := rm.redisStore.DeleteRoom(context.Background(), code); err != nil {
				log.Warn().Err(err).Str("room", code).Msg("⚠️ 从 Redis 删除房间失败")
			}
		}()
	}
}

// generateRoomCode 生成房间号，调用方持有 rm.mu
func (rm *RoomManager) generateRoomCode() string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = roomCodeChars[rand.IntN(len(roomCodeChars))]
		}
		codeStr := string(code)
		if _, exists := rm.rooms[codeStr]; !exists {
			return codeStr
		}
	}
}

// cleanupLoop 定期清理超时房间
func (rm *RoomManager) cleanupLoop() {
	ticker := time.NewTicker(rm.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rm.cleanup()
		case <-rm.stop:
			return
		}
	}
}

// cleanup 清理超时的等待房间和已结束的房间
func (rm *RoomManager) cleanup() {
	now := rm.now()
	removed := 0

	for _, room := range rm.allRooms() {
		room.mu.Lock()
		var reason string
		switch room.game.State() {
		case session.StateWaiting:
			if now.Sub(room.CreatedAt) > rm.opts.RoomTimeout {
				reason = "房间超时已关闭"
			}
		case session.StateFinished:
			if now.Sub(room.game.FinishedAt()) > rm.opts.FinishedRoomTTL {
				reason = "游戏已结束，房间已关闭"
			}
		}
		if reason != "" {
			room.broadcast(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, reason))
			room.unbindAll()
			rm.removeRoom(room)
			removed++
			log.Info().Str("room", room.Code).Str("reason", reason).Msg("🧹 房间已清理")
		}
		room.mu.Unlock()
	}

	if removed > 0 {
		rm.notifyLobby()
	}
}
