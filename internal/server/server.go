package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/palemoky/treasure-hunt/internal/config"
	"github.com/palemoky/treasure-hunt/internal/game/room"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/server/handler"
	"github.com/palemoky/treasure-hunt/internal/server/storage"
)

const redisPingTimeout = 5 * time.Second

// Server WebSocket 服务器
type Server struct {
	config      *config.Config
	codec       codec.Codec
	redis       *redis.Client // 未启用 Redis 时为 nil
	redisStore  *storage.RedisStore
	leaderboard *storage.LeaderboardManager
	history     *storage.HistoryStore
	roomManager *room.RoomManager
	clients     map[string]*Client
	clientsMu   sync.RWMutex
	handler     *handler.Handler
	upgrader    websocket.Upgrader
	httpServer  *http.Server

	// 安全组件
	rateLimiter    *RateLimiter
	originChecker  *OriginChecker
	messageLimiter *MessageRateLimiter
	chatLimiter    *ChatRateLimiter
	ipFilter       *IPFilter

	// 连接控制
	maxConnections int
	semaphore      chan struct{}

	// 维护模式
	maintenanceMode bool
	maintenanceMu   sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once
}

// NewServer 创建服务器实例，按配置连接 Redis 并打开对局归档
func NewServer(cfg *config.Config) (*Server, error) {
	cd, err := codec.ForName(cfg.Server.Codec)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis 连接失败: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("🗄️ Redis 已连接")
	}

	history, err := storage.OpenHistoryStore(cfg.Storage.HistoryDir, nil)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}

	return newServer(cfg, cd, rdb, history), nil
}

// newServer 组装服务器，rdb 和 history 都可以为 nil
func newServer(cfg *config.Config, cd codec.Codec, rdb *redis.Client, history *storage.HistoryStore) *Server {
	s := &Server{
		config:     cfg,
		codec:      cd,
		redis:      rdb,
		redisStore: storage.NewRedisStore(rdb),
		history:    history,
		clients:    make(map[string]*Client),
		rateLimiter: NewRateLimiter(
			cfg.Security.RateLimit.MaxPerSecond,
			cfg.Security.RateLimit.MaxPerMinute,
			cfg.Security.RateLimit.BanDurationTime(),
		),
		originChecker:  NewOriginChecker(cfg.Security.AllowedOrigins),
		messageLimiter: NewMessageRateLimiter(cfg.Security.MessageLimit.MaxPerSecond),
		chatLimiter: NewChatRateLimiter(
			cfg.Security.ChatLimit.MaxPerSecond,
			cfg.Security.ChatLimit.MaxPerMinute,
			cfg.Security.ChatLimit.CooldownDuration(),
		),
		ipFilter:       NewIPFilter(cfg.Security.IPWhitelist, cfg.Security.IPBlacklist),
		maxConnections: cfg.Server.MaxConnections,
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
		done:           make(chan struct{}),
	}
	if rdb != nil {
		s.leaderboard = storage.NewLeaderboardManager(rdb)
	}

	// 来源校验在 handleWebSocket 中完成
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	s.roomManager = room.NewRoomManager(s.redisStore, room.Options{
		RoomTimeout:       cfg.Game.RoomTimeoutDuration(),
		FinishedRoomTTL:   cfg.Game.FinishedRoomTTLDuration(),
		RoundDelay:        cfg.Game.RoundDelayDuration(),
		DisconnectTimeout: cfg.Game.DisconnectTimeoutDuration(),
		MessageLimit:      cfg.Game.MessageLimit,
		ConcealHands:      cfg.Game.ConcealHands,
		OnLobbyChanged:    s.broadcastRoomList,
		OnGameFinished:    s.recordGame,
	})

	s.handler = handler.NewHandler(handler.HandlerDeps{
		Server:      s,
		RoomManager: s.roomManager,
		ChatLimiter: s.chatLimiter,
		Leaderboard: s.leaderboard,
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second, // 防止 Slowloris 攻击
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().
		Int("conn_per_sec", cfg.Security.RateLimit.MaxPerSecond).
		Int("msg_per_sec", cfg.Security.MessageLimit.MaxPerSecond).
		Int("chat_per_sec", cfg.Security.ChatLimit.MaxPerSecond).
		Int("max_conns", cfg.Server.MaxConnections).
		Str("codec", cd.Name()).
		Bool("redis", rdb != nil).
		Bool("history", history != nil).
		Msg("🔒 服务器配置")

	return s
}

// Start 启动服务器，阻塞直到 Shutdown
func (s *Server) Start() error {
	addr := s.httpServer.Addr

	go s.monitorStats()

	log.Info().
		Str("addr", addr).
		Int("cpus", runtime.NumCPU()).
		Msgf("🚀 服务器启动在 ws://%s/ws", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
