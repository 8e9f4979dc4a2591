package handler

import (
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/types"
)

// handleGetRoomList 获取大厅房间列表
func (h *Handler) handleGetRoomList(client types.ClientInterface) {
	client.SendMessage(codec.MustNewMessage(protocol.MsgRoomList, h.roomManager.GetRoomList()))
}

// handleGetOngoingGames 获取可观战的游戏
func (h *Handler) handleGetOngoingGames(client types.ClientInterface) {
	client.SendMessage(codec.MustNewMessage(protocol.MsgOngoingGames, h.roomManager.GetOngoingGames()))
}
