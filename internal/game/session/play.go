package session

import (
	"fmt"

	"github.com/palemoky/treasure-hunt/internal/apperrors"
	"github.com/palemoky/treasure-hunt/internal/game/card"
	"github.com/palemoky/treasure-hunt/internal/game/role"
)

// SelectResult 翻牌结果
type SelectResult struct {
	Applied     bool      // false 表示重复点击等无效操作被静默忽略
	Revealed    card.Kind // 翻开的牌
	TargetName  string
	Finished    bool
	RoundEnding bool // 本回合所有在线玩家都已被翻牌，需要延迟结算
}

// ResolveResult 回合结算结果
type ResolveResult struct {
	Resolved bool // false 表示当前不在结算中
	NewRound bool
	Round    int
	Finished bool
}

// Start 房主开始游戏
func (s *GameSession) Start(requesterID string) error {
	switch s.state {
	case StatePlaying:
		return apperrors.ErrGameStarted
	case StateFinished:
		return apperrors.ErrGameFinished
	}
	if requesterID != s.hostID {
		return apperrors.ErrNotHost
	}
	if s.ConnectedCount() < MinPlayers {
		return apperrors.ErrNotEnoughPlayers
	}

	n := len(s.players)
	deck := card.BuildDeck(n)
	hands, remainder, err := card.Deal(deck.Cards, n, card.InitialHandSize)
	if err != nil {
		return fmt.Errorf("发牌失败: %w", err)
	}

	roles := role.Assign(n)
	for i, p := range s.players {
		p.Role = roles[i]
		p.Hand = hands[i]
	}

	s.remaining = remainder
	s.totalTreasures = deck.TotalTreasures
	s.totalTraps = deck.TotalTraps
	s.treasureGoal, s.trapGoal = card.GoalsFor(n)
	s.treasureFound = 0
	s.trapTriggered = 0

	s.state = StatePlaying
	s.currentRound = 1
	s.cardsFlipped = 0
	s.cardsPerPlayer = card.InitialHandSize
	s.keyHolderID = s.players[s.pickIndex(n)].ID

	s.addSystemMessage("游戏开始！共 %d 名玩家，%s 持有钥匙", n, s.playerByID(s.keyHolderID).Name)
	return nil
}

// SelectCard 持钥匙的玩家翻开另一名玩家的一张牌
func (s *GameSession) SelectCard(requesterID, targetID string, index int) (SelectResult, error) {
	switch s.state {
	case StateWaiting:
		return SelectResult{}, apperrors.ErrGameNotStart
	case StateFinished:
		return SelectResult{}, apperrors.ErrGameFinished
	}
	if s.resolving {
		return SelectResult{}, apperrors.ErrRoundResolving
	}
	if requesterID != s.keyHolderID {
		return SelectResult{}, apperrors.ErrNotYourTurn
	}
	if targetID == requesterID {
		return SelectResult{}, apperrors.ErrSelfTarget
	}

	target := s.playerByID(targetID)
	if target == nil || index < 0 || index >= len(target.Hand) || target.Hand[index].Revealed {
		return SelectResult{}, nil
	}

	c := &target.Hand[index]
	c.Revealed = true
	switch c.Kind {
	case card.Treasure:
		s.treasureFound++
		s.addSystemMessage("%s 的牌是财宝！💎", target.Name)
	case card.Trap:
		s.trapTriggered++
		s.addSystemMessage("%s 的牌是陷阱！💀", target.Name)
	default:
		s.addSystemMessage("%s 的牌是空房间 📦", target.Name)
	}

	s.keyHolderID = target.ID
	s.cardsFlipped++

	res := SelectResult{Applied: true, Revealed: c.Kind, TargetName: target.Name}
	switch {
	case s.treasureFound >= s.treasureGoal:
		s.finish(role.Seeker, fmt.Sprintf("找到了 %d 个财宝！探险者阵营获胜！", s.treasureGoal))
		res.Finished = true
	case s.trapTriggered >= s.trapGoal:
		s.finish(role.Keeper, fmt.Sprintf("触发了 %d 个陷阱！守护者阵营获胜！", s.trapGoal))
		res.Finished = true
	default:
		res.RoundEnding = s.checkRoundComplete()
	}
	return res, nil
}

// checkRoundComplete 本回合翻牌数达到在线人数时进入结算等待
func (s *GameSession) checkRoundComplete() bool {
	if s.state != StatePlaying || s.resolving || s.cardsFlipped == 0 {
		return false
	}
	if s.cardsFlipped < s.ConnectedCount() {
		return false
	}

	s.currentRound++
	s.cardsFlipped = 0
	s.resolving = true
	s.addSystemMessage("第 %d 回合结束！即将开始下一回合...", s.currentRound-1)
	return true
}

// ResolveRound 完成回合结算：超过最大回合或牌堆不足则守护者获胜，否则回收未翻开的牌重新发牌
func (s *GameSession) ResolveRound() ResolveResult {
	if s.state != StatePlaying || !s.resolving {
		return ResolveResult{}
	}
	s.resolving = false

	if s.currentRound > card.MaxRounds {
		s.finish(role.Keeper, fmt.Sprintf("%d 个回合已结束！守护者守住了财宝，守护者阵营获胜！", card.MaxRounds))
		return ResolveResult{Resolved: true, Finished: true}
	}

	handSize := card.HandSizeForRound(s.currentRound)
	pool := make([]card.Card, 0, len(s.remaining)+len(s.players)*s.cardsPerPlayer)
	for _, p := range s.players {
		for _, c := range p.Hand {
			if !c.Revealed {
				pool = append(pool, c)
			}
		}
	}
	pool = append(pool, s.remaining...)

	hands, remainder, err := card.Deal(pool, len(s.players), handSize)
	if err != nil {
		s.finish(role.Keeper, "剩余的牌不足以继续发牌，守护者阵营获胜！")
		return ResolveResult{Resolved: true, Finished: true}
	}

	for i, p := range s.players {
		p.Hand = hands[i]
	}
	s.remaining = remainder
	s.cardsPerPlayer = handSize
	s.addSystemMessage("第 %d 回合开始！每人 %d 张牌", s.currentRound, handSize)

	return ResolveResult{Resolved: true, NewRound: true, Round: s.currentRound}
}

// finish 结束游戏
func (s *GameSession) finish(team role.Role, message string) {
	s.state = StateFinished
	s.resolving = false
	s.winningTeam = team
	s.victoryMessage = message
	s.finishedAt = s.now()
	s.addSystemMessage("%s", message)
}
