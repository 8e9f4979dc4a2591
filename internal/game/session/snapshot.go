package session

import (
	"github.com/palemoky/treasure-hunt/internal/game/card"
	"github.com/palemoky/treasure-hunt/internal/game/role"
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/convert"
)

// Snapshot 生成当前状态的值拷贝
//
// conceal 为 true 时，viewerID 以外玩家未翻开的牌只保留占位，阵营在游戏结束前不可见。
// conceal 为 false 时所有手牌对所有人可见。
func (s *GameSession) Snapshot(viewerID string, conceal bool) protocol.GameSnapshot {
	snap := protocol.GameSnapshot{
		ID:                    s.id,
		HostID:                s.hostID,
		HasPassword:           s.password != "",
		GameState:             string(s.state),
		Players:               make([]protocol.PlayerSnapshot, 0, len(s.players)),
		CurrentRound:          s.currentRound,
		MaxRounds:             card.MaxRounds,
		CardsPerPlayer:        s.cardsPerPlayer,
		TreasureFound:         s.treasureFound,
		TrapTriggered:         s.trapTriggered,
		TreasureGoal:          s.treasureGoal,
		TrapGoal:              s.trapGoal,
		TotalTreasures:        s.totalTreasures,
		TotalTraps:            s.totalTraps,
		KeyHolderID:           s.keyHolderID,
		CardsFlippedThisRound: s.cardsFlipped,
		RemainingCards:        len(s.remaining),
		Resolving:             s.resolving,
		VictoryMessage:        s.victoryMessage,
		Winners:               s.Winners(),
	}
	if s.winningTeam != role.Unassigned {
		snap.WinningTeam = string(s.winningTeam)
	}

	hide := conceal && s.state != StateFinished
	for _, p := range s.players {
		ps := protocol.PlayerSnapshot{
			ID:        p.ID,
			Name:      p.Name,
			Connected: p.Connected,
			IsHost:    p.ID == s.hostID,
		}
		if hide && p.ID != viewerID {
			ps.Hand = convert.CardsToMaskedInfos(p.Hand)
		} else {
			ps.Role = string(p.Role)
			ps.Hand = convert.CardsToInfos(p.Hand)
		}
		snap.Players = append(snap.Players, ps)
	}
	return snap
}

// PlayerSnapshot 单个玩家的快照，用于 roomCreated 的 playerInfo
func (s *GameSession) PlayerSnapshot(id string) protocol.PlayerSnapshot {
	p := s.playerByID(id)
	if p == nil {
		return protocol.PlayerSnapshot{}
	}
	return protocol.PlayerSnapshot{
		ID:        p.ID,
		Name:      p.Name,
		Role:      string(p.Role),
		Connected: p.Connected,
		IsHost:    p.ID == s.hostID,
		Hand:      convert.CardsToInfos(p.Hand),
	}
}
