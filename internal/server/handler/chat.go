package handler

import (
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/types"
)

// handleSendChat 处理房间聊天
func (h *Handler) handleSendChat(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.SendChatPayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	if h.chatLimiter != nil {
		if allowed, reason := h.chatLimiter.AllowChat(client.GetID()); !allowed {
			client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, reason))
			return
		}
	}

	if err := h.roomManager.Chat(client, sanitizeText(payload.Message)); err != nil {
		sendError(client, err)
	}
}
