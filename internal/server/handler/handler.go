package handler

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/treasure-hunt/internal/apperrors"
	"github.com/palemoky/treasure-hunt/internal/game/room"
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/server/storage"
	"github.com/palemoky/treasure-hunt/internal/types"
)

// HandlerDeps 处理器依赖
type HandlerDeps struct {
	Server      types.ServerInterface
	RoomManager *room.RoomManager
	ChatLimiter types.ChatLimiter
	Leaderboard *storage.LeaderboardManager // 为 nil 表示未启用 Redis
}

// Handler 消息处理器
type Handler struct {
	server      types.ServerInterface
	roomManager *room.RoomManager
	chatLimiter types.ChatLimiter
	leaderboard *storage.LeaderboardManager
	handlers    map[protocol.MessageType]handlerFunc
}

// handlerFunc 统一的处理器函数签名
type handlerFunc func(client types.ClientInterface, msg *protocol.Message)

// NewHandler 创建处理器
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		server:      deps.Server,
		roomManager: deps.RoomManager,
		chatLimiter: deps.ChatLimiter,
		leaderboard: deps.Leaderboard,
	}
	h.initHandlers()
	return h
}

// initHandlers 初始化消息处理器映射
func (h *Handler) initHandlers() {
	h.handlers = map[protocol.MessageType]handlerFunc{
		protocol.MsgPing: h.handlePing,

		// 大厅
		protocol.MsgGetRoomList:     func(c types.ClientInterface, _ *protocol.Message) { h.handleGetRoomList(c) },
		protocol.MsgGetOngoingGames: func(c types.ClientInterface, _ *protocol.Message) { h.handleGetOngoingGames(c) },

		// 房间操作
		protocol.MsgCreateRoom:      h.handleCreateRoom,
		protocol.MsgJoinRoom:        h.handleJoinRoom,
		protocol.MsgReconnectToRoom: h.handleReconnectToRoom,
		protocol.MsgSpectateRoom:    h.handleSpectateRoom,
		protocol.MsgLeaveRoom:       func(c types.ClientInterface, _ *protocol.Message) { h.handleLeaveRoom(c) },

		// 游戏操作
		protocol.MsgStartGame:  func(c types.ClientInterface, _ *protocol.Message) { h.handleStartGame(c) },
		protocol.MsgSelectCard: h.handleSelectCard,
		protocol.MsgSendChat:   h.handleSendChat,

		// 排行榜
		protocol.MsgGetStats:       h.handleGetStats,
		protocol.MsgGetLeaderboard: h.handleGetLeaderboard,
	}
}

// Handle 处理消息
func (h *Handler) Handle(client types.ClientInterface, msg *protocol.Message) {
	if handler, ok := h.handlers[msg.Type]; ok {
		handler(client, msg)
		return
	}

	log.Warn().
		Str("type", string(msg.Type)).
		Str("client", client.GetID()).
		Int("payload", len(msg.Payload)).
		Msg("⚠️ 未知消息类型")
	client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
}

// sendError 游戏错误按错误码回复，其他错误回复未知错误
func sendError(client types.ClientInterface, err error) {
	var gameErr *apperrors.GameError
	if errors.As(err, &gameErr) {
		client.SendMessage(codec.NewErrorMessage(gameErr.Code))
		return
	}
	log.Error().Err(err).Str("client", client.GetID()).Msg("❌ 处理请求失败")
	client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, err.Error()))
}
