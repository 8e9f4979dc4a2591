//go:build !production

package session

import (
	"time"

	"github.com/palemoky/treasure-hunt/internal/game/card"
	"github.com/palemoky/treasure-hunt/internal/game/role"
)

// SetHandForTest 替换玩家手牌
func (s *GameSession) SetHandForTest(playerID string, hand []card.Card) {
	if p := s.playerByID(playerID); p != nil {
		p.Hand = hand
	}
}

// SetRoleForTest 设置玩家阵营
func (s *GameSession) SetRoleForTest(playerID string, r role.Role) {
	if p := s.playerByID(playerID); p != nil {
		p.Role = r
	}
}

// SetKeyHolderForTest 设置持钥匙玩家
func (s *GameSession) SetKeyHolderForTest(playerID string) {
	s.keyHolderID = playerID
}

// SetProgressForTest 设置已发现的财宝和已触发的陷阱数量
func (s *GameSession) SetProgressForTest(treasureFound, trapTriggered int) {
	s.treasureFound = treasureFound
	s.trapTriggered = trapTriggered
}

// SetRoundForTest 设置当前回合
func (s *GameSession) SetRoundForTest(round int) {
	s.currentRound = round
	s.cardsPerPlayer = card.HandSizeForRound(round)
}

// SetRemainingForTest 替换剩余牌堆
func (s *GameSession) SetRemainingForTest(cards []card.Card) {
	s.remaining = cards
}

// SetPickIndexForTest 固定初始钥匙的随机选择
func (s *GameSession) SetPickIndexForTest(pick func(n int) int) {
	s.pickIndex = pick
}

// SetClockForTest 替换时钟
func (s *GameSession) SetClockForTest(now func() time.Time) {
	s.now = now
}

// SetFinishedAtForTest 修改结束时间
func (s *GameSession) SetFinishedAtForTest(t time.Time) {
	s.finishedAt = t
}

// SetCreatedAtForTest 修改创建时间
func (s *GameSession) SetCreatedAtForTest(t time.Time) {
	s.createdAt = t
}
