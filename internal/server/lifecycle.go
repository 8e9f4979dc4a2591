package server

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
)

const (
	monitorInterval     = 30 * time.Second
	httpShutdownTimeout = 5 * time.Second
)

// monitorStats 定期输出服务器状态
func (s *Server) monitorStats() {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			swept := s.rateLimiter.Sweep() + s.messageLimiter.Sweep() + s.chatLimiter.Sweep()

			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			log.Info().
				Int("online", s.GetOnlineCount()).
				Int("rooms", s.roomManager.RoomCount()).
				Int("games", s.roomManager.GetActiveGamesCount()).
				Int("goroutines", runtime.NumGoroutine()).
				Int("conns", len(s.semaphore)).
				Int("max_conns", s.maxConnections).
				Float64("mem_mb", float64(m.Alloc)/1024/1024).
				Int("limiter_swept", swept).
				Msg("📊 服务器状态")
		}
	}
}

// EnterMaintenanceMode 进入维护模式：拒绝新连接和新房间，已有对局继续
func (s *Server) EnterMaintenanceMode() {
	s.maintenanceMu.Lock()
	s.maintenanceMode = true
	s.maintenanceMu.Unlock()

	s.BroadcastToLobby(codec.NewErrorMessageWithText(
		protocol.ErrCodeServerMaintenance, "👷🏻‍♂️ 维护模式：停止新的房间创建"))

	log.Info().Msg("🔧 进入维护模式：停止新连接和房间创建")
}

// IsMaintenanceMode 检查是否在维护模式
func (s *Server) IsMaintenanceMode() bool {
	s.maintenanceMu.RLock()
	defer s.maintenanceMu.RUnlock()
	return s.maintenanceMode
}

// GracefulShutdown 进入维护模式，等待进行中的游戏结束后关闭
func (s *Server) GracefulShutdown(timeout time.Duration) {
	s.EnterMaintenanceMode()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.config.Game.ShutdownCheckIntervalDuration())
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		activeGames := s.roomManager.GetActiveGamesCount()
		if activeGames == 0 {
			log.Info().Int("delay_sec", s.config.Game.RoomCleanupDelay).Msg("✅ 所有游戏已结束，即将关闭服务器")
			s.BroadcastToLobby(codec.NewErrorMessageWithText(
				protocol.ErrCodeServerMaintenance,
				fmt.Sprintf("🚧 服务器将在 %d 秒后停机维护！", s.config.Game.RoomCleanupDelay)))
			break
		}
		log.Info().Int("games", activeGames).Msg("⏳ 等待游戏结束")
		<-ticker.C
	}

	if activeGames := s.roomManager.GetActiveGamesCount(); activeGames > 0 {
		log.Warn().Int("games", activeGames).Msg("⚠️ 等待超时，强制关闭")
	}

	time.Sleep(s.config.Game.RoomCleanupDelayDuration())
	s.Shutdown()
}

// Shutdown 立即关闭：断开所有连接并释放存储
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)

		ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP 服务关闭失败")
		}

		s.clientsMu.RLock()
		for _, client := range s.clients {
			client.Close()
		}
		s.clientsMu.RUnlock()

		s.roomManager.Close()

		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Warn().Err(err).Msg("Redis 关闭失败")
			}
		}
		if err := s.history.Close(); err != nil {
			log.Warn().Err(err).Msg("对局归档关闭失败")
		}

		log.Info().Msg("👋 服务器已关闭")
	})
}
