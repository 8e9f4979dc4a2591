package handler

import (
	"github.com/palemoky/treasure-hunt/internal/game/room"
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/types"
)

// leaveOtherRoom 已在其他房间中时先离开
func (h *Handler) leaveOtherRoom(client types.ClientInterface, code string) {
	if current := client.GetRoom(); current != "" && current != room.NormalizeCode(code) {
		h.roomManager.LeaveRoom(client)
	}
}

// handleCreateRoom 处理创建房间
func (h *Handler) handleCreateRoom(client types.ClientInterface, msg *protocol.Message) {
	if h.server.IsMaintenanceMode() {
		client.SendMessage(codec.NewErrorMessageWithText(
			protocol.ErrCodeServerMaintenance, "服务器维护中，暂停创建房间"))
		return
	}

	payload, err := codec.ParsePayload[protocol.CreateRoomPayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	password := ""
	if payload.HasPassword {
		password = payload.Password
	}

	if client.GetRoom() != "" {
		h.roomManager.LeaveRoom(client)
	}

	if _, err := h.roomManager.CreateRoom(client, sanitizeName(payload.PlayerName), password); err != nil {
		sendError(client, err)
	}
}

// handleJoinRoom 处理加入房间，同名玩家重新入座
func (h *Handler) handleJoinRoom(client types.ClientInterface, msg *protocol.Message) {
	if h.server.IsMaintenanceMode() {
		client.SendMessage(codec.NewErrorMessageWithText(
			protocol.ErrCodeServerMaintenance, "服务器维护中，暂停加入房间"))
		return
	}

	payload, err := codec.ParsePayload[protocol.JoinRoomPayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	h.leaveOtherRoom(client, payload.RoomID)

	if _, err := h.roomManager.JoinRoom(client, payload.RoomID, sanitizeName(payload.PlayerName), payload.Password); err != nil {
		sendError(client, err)
	}
}

// handleReconnectToRoom 处理按名字重连，维护模式下也允许
func (h *Handler) handleReconnectToRoom(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.ReconnectToRoomPayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	h.leaveOtherRoom(client, payload.RoomID)

	if _, err := h.roomManager.ReconnectToRoom(client, payload.RoomID, sanitizeName(payload.PlayerName)); err != nil {
		sendError(client, err)
	}
}

// handleSpectateRoom 处理观战
func (h *Handler) handleSpectateRoom(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.SpectateRoomPayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	h.leaveOtherRoom(client, payload.RoomID)

	if _, err := h.roomManager.SpectateRoom(client, payload.RoomID); err != nil {
		sendError(client, err)
	}
}

// handleLeaveRoom 处理离开房间
func (h *Handler) handleLeaveRoom(client types.ClientInterface) {
	h.roomManager.LeaveRoom(client)
}
