package server

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/server/storage"
)

// GetOnlineCount 获取在线连接数
func (s *Server) GetOnlineCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast 广播消息给所有客户端
func (s *Server) Broadcast(msg *protocol.Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		client.SendMessage(msg)
	}
}

// BroadcastToLobby 广播消息给大厅中（不在任何房间）的连接
func (s *Server) BroadcastToLobby(msg *protocol.Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		if client.GetRoom() == "" {
			client.SendMessage(msg)
		}
	}
}

// broadcastRoomList 房间列表变化时推送给大厅
func (s *Server) broadcastRoomList() {
	s.BroadcastToLobby(codec.MustNewMessage(protocol.MsgRoomList, s.roomManager.GetRoomList()))
}

// recordGame 游戏结束：写入排行榜和对局归档
func (s *Server) recordGame(rec *storage.GameRecord) {
	if s.leaderboard != nil {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		if err := s.leaderboard.RecordGame(ctx, rec); err != nil {
			log.Error().Err(err).Str("room", rec.RoomCode).Msg("❌ 更新排行榜失败")
		}
	}

	if err := s.history.Append(rec); err != nil {
		log.Error().Err(err).Str("room", rec.RoomCode).Msg("❌ 写入对局归档失败")
	}
}
