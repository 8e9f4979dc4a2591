package session

import (
	"strings"

	"github.com/palemoky/treasure-hunt/internal/apperrors"
	"github.com/palemoky/treasure-hunt/internal/game/role"
)

// LeaveResult 玩家离开后的结果
type LeaveResult struct {
	Removed     bool // 玩家确实被移除
	Empty       bool // 房间已无玩家，应当删除
	HostChanged bool
	Finished    bool // 因人数不足而结束
	RoundEnding bool // 剩余在线玩家都已被翻过牌，需要回合结算
}

// Join 加入房间
//
// 同名玩家视为重新入座：沿用原座位的阵营和手牌，只替换连接 ID。
// 返回 rejoined 表示是否为重新入座。
func (s *GameSession) Join(playerID, name, password string) (rejoined bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, apperrors.ErrInvalidName
	}
	if s.password != "" && s.password != password {
		return false, apperrors.ErrWrongPassword
	}

	if p := s.playerByName(name); p != nil {
		s.rebind(p, playerID)
		s.addSystemMessage("%s 重新加入了房间", name)
		return true, nil
	}

	if len(s.players) >= MaxPlayers {
		return false, apperrors.ErrRoomFull
	}
	if s.state != StateWaiting {
		return false, apperrors.ErrGameStarted
	}

	s.players = append(s.players, &GamePlayer{ID: playerID, Name: name, Connected: true})
	s.addSystemMessage("%s 加入了房间", name)
	return false, nil
}

// Reconnect 按名字重新绑定座位，不校验密码
func (s *GameSession) Reconnect(playerID, name string) error {
	p := s.playerByName(strings.TrimSpace(name))
	if p == nil {
		return apperrors.ErrPlayerNotFound
	}
	s.rebind(p, playerID)
	s.addSystemMessage("%s 重新连接", p.Name)
	return nil
}

// rebind 将座位绑定到新的连接 ID，房主和钥匙跟随座位
func (s *GameSession) rebind(p *GamePlayer, newID string) {
	oldID := p.ID
	p.ID = newID
	p.Connected = true
	if s.hostID == oldID {
		s.hostID = newID
	}
	if s.keyHolderID == oldID {
		s.keyHolderID = newID
	}
}

// Disconnect 标记玩家离线，保留座位、阵营和手牌
//
// 回合结束判定使用实时在线人数，因此离线也可能触发回合结算。
func (s *GameSession) Disconnect(playerID string) (found, roundEnding bool) {
	p := s.playerByID(playerID)
	if p == nil {
		return false, false
	}
	if !p.Connected {
		return true, false
	}
	p.Connected = false
	s.addSystemMessage("%s 断开了连接", p.Name)
	return true, s.checkRoundComplete()
}

// RemoveDisconnected 断线超时后移除玩家；玩家已重连则不做任何事
func (s *GameSession) RemoveDisconnected(playerID string) LeaveResult {
	p := s.playerByID(playerID)
	if p == nil || p.Connected {
		return LeaveResult{}
	}
	return s.Leave(playerID)
}

// Leave 移除玩家
//
// 未翻开的手牌回到剩余牌堆；房主转给下一个座位；钥匙交给离开者的下一位。
func (s *GameSession) Leave(playerID string) LeaveResult {
	seat := s.seatOf(playerID)
	if seat < 0 {
		return LeaveResult{}
	}

	p := s.players[seat]
	if s.state == StatePlaying {
		for _, c := range p.Hand {
			if !c.Revealed {
				s.remaining = append(s.remaining, c)
			}
		}
	}
	s.players = append(s.players[:seat], s.players[seat+1:]...)
	s.addSystemMessage("%s 离开了房间", p.Name)

	res := LeaveResult{Removed: true}
	if len(s.players) == 0 {
		res.Empty = true
		return res
	}

	if s.hostID == p.ID {
		s.hostID = s.players[0].ID
		res.HostChanged = true
		s.addSystemMessage("%s 成为新的房主", s.players[0].Name)
	}
	if s.keyHolderID == p.ID {
		s.keyHolderID = s.players[seat%len(s.players)].ID
	}

	if s.state == StatePlaying && len(s.players) < 2 {
		s.finish(role.Keeper, "玩家人数不足，游戏结束！守护者阵营获胜！")
		res.Finished = true
		return res
	}

	res.RoundEnding = s.checkRoundComplete()
	return res
}
