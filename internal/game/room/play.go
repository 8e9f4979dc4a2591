package room

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/treasure-hunt/internal/apperrors"
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/types"
)

// roomOf 获取连接所在的房间
func (rm *RoomManager) roomOf(client types.ClientInterface) (*Room, error) {
	code := client.GetRoom()
	if code == "" {
		return nil, apperrors.ErrNotInRoom
	}
	room := rm.GetRoom(code)
	if room == nil {
		return nil, apperrors.ErrRoomNotFound
	}
	return room, nil
}

// StartGame 房主开始游戏
func (rm *RoomManager) StartGame(client types.ClientInterface) error {
	room, err := rm.roomOf(client)
	if err != nil {
		return err
	}

	room.mu.Lock()
	if err := room.game.Start(client.GetID()); err != nil {
		room.mu.Unlock()
		return err
	}
	room.broadcastState()
	room.broadcast(codec.MustNewMessage(protocol.MsgRoundStart, protocol.RoundStartPayload(1)))
	rm.save(room)
	players := room.game.PlayerCount()
	room.mu.Unlock()

	log.Info().Str("room", room.Code).Int("players", players).Msg("🎮 游戏开始")
	rm.notifyLobby()
	return nil
}

// SelectCard 持钥匙的玩家翻开目标玩家的一张牌
func (rm *RoomManager) SelectCard(client types.ClientInterface, targetID string, index int) error {
	room, err := rm.roomOf(client)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	res, err := room.game.SelectCard(client.GetID(), targetID, index)
	if err != nil {
		return err
	}
	if !res.Applied {
		return nil
	}

	switch {
	case res.Finished:
		rm.onFinished(room)
	case res.RoundEnding:
		rm.scheduleResolve(room)
	}
	room.broadcastState()
	rm.save(room)
	return nil
}

// Chat 发送聊天消息，观战者不能发言
func (rm *RoomManager) Chat(client types.ClientInterface, text string) error {
	room, err := rm.roomOf(client)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if _, err := room.game.Chat(client.GetID(), text); err != nil {
		return err
	}
	room.broadcastMessages()
	return nil
}

// scheduleResolve 延迟结算回合，调用方持有房间锁
func (rm *RoomManager) scheduleResolve(room *Room) {
	if room.resolveTimer != nil {
		room.resolveTimer.Stop()
	}
	room.resolveTimer = time.AfterFunc(rm.opts.RoundDelay, func() { rm.resolveRound(room) })
}

// resolveRound 计时器回调：房间已被删除或替换则什么都不做
func (rm *RoomManager) resolveRound(room *Room) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if rm.GetRoom(room.Code) != room {
		return
	}
	room.resolveTimer = nil

	out := room.game.ResolveRound()
	if !out.Resolved {
		return
	}
	if out.Finished {
		rm.onFinished(room)
	}
	room.broadcastState()
	if out.NewRound {
		room.broadcast(codec.MustNewMessage(protocol.MsgRoundStart, protocol.RoundStartPayload(out.Round)))
		log.Debug().Str("room", room.Code).Int("round", out.Round).Msg("🔁 新回合开始")
	}
	rm.save(room)
}

// onFinished 游戏结束，上报一次结果，调用方持有房间锁
func (rm *RoomManager) onFinished(room *Room) {
	if room.resolveTimer != nil {
		room.resolveTimer.Stop()
		room.resolveTimer = nil
	}
	if room.recorded {
		return
	}
	room.recorded = true

	rec := room.gameRecord()
	log.Info().
		Str("room", room.Code).
		Str("winner", rec.WinningTeam).
		Int("treasure", rec.TreasureFound).
		Int("trap", rec.TrapTriggered).
		Msg("🏆 游戏结束")

	if rm.opts.OnGameFinished != nil {
		go rm.opts.OnGameFinished(rec)
	}
}
