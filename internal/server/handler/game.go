package handler

import (
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/types"
)

// handleStartGame 处理房主开始游戏
func (h *Handler) handleStartGame(client types.ClientInterface) {
	if err := h.roomManager.StartGame(client); err != nil {
		sendError(client, err)
	}
}

// handleSelectCard 处理翻牌
func (h *Handler) handleSelectCard(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.SelectCardPayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	if err := h.roomManager.SelectCard(client, payload.TargetPlayerID, payload.CardIndex); err != nil {
		sendError(client, err)
	}
}
