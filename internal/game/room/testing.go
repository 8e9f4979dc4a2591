//go:build !production

package room

import (
	"time"

	"github.com/palemoky/treasure-hunt/internal/game/session"
)

// WithGameForTest 在房间锁内操作游戏会话
func (r *Room) WithGameForTest(fn func(g *session.GameSession)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.game)
}

// AddRoomForTest 添加房间用于测试
func (rm *RoomManager) AddRoomForTest(room *Room) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.rooms[room.Code] = room
}

// NewRoomForTest 创建一个只有房主的房间，不注册到管理器
func NewRoomForTest(code, hostID, hostName string) *Room {
	return newRoom(code, session.New(code, hostID, hostName, ""), DefaultOptions())
}

// SetClockForTest 替换清理使用的时钟
func (rm *RoomManager) SetClockForTest(now func() time.Time) {
	rm.now = now
}

// CleanupForTest 立即执行一次清理
func (rm *RoomManager) CleanupForTest() {
	rm.cleanup()
}
