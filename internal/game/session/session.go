package session

import (
	"math/rand/v2"
	"time"

	"github.com/palemoky/treasure-hunt/internal/game/card"
	"github.com/palemoky/treasure-hunt/internal/game/role"
)

// GameState 游戏状态，只能 waiting → playing → finished
type GameState string

const (
	StateWaiting  GameState = "waiting"
	StatePlaying  GameState = "playing"
	StateFinished GameState = "finished"
)

const (
	MinPlayers    = 3   // 开局所需在线人数
	MaxPlayers    = 10  // 房间座位上限
	MaxChatLength = 100 // 聊天消息最大字数
)

// GamePlayer 游戏中的玩家
type GamePlayer struct {
	ID        string // 当前绑定的连接 ID
	Name      string // 房间内唯一，用作重连凭据
	Role      role.Role
	Hand      []card.Card
	Connected bool
}

// GameSession 一个房间的完整游戏状态
//
// GameSession 本身不加锁，所有调用由所属房间串行化。
type GameSession struct {
	id       string
	hostID   string
	password string

	state   GameState
	players []*GamePlayer // 按入座顺序

	currentRound   int
	cardsPerPlayer int
	cardsFlipped   int
	keyHolderID    string
	remaining      []card.Card
	resolving      bool // 回合结算等待中

	treasureGoal   int
	trapGoal       int
	totalTreasures int
	totalTraps     int
	treasureFound  int
	trapTriggered  int

	winningTeam    role.Role
	victoryMessage string

	messages []Message

	createdAt  time.Time
	finishedAt time.Time

	now       func() time.Time
	pickIndex func(n int) int
}

// New 创建处于等待状态的游戏会话，房主即第一位玩家
func New(id, hostID, hostName, password string) *GameSession {
	s := &GameSession{
		id:        id,
		hostID:    hostID,
		password:  password,
		state:     StateWaiting,
		now:       time.Now,
		pickIndex: rand.IntN,
	}
	s.createdAt = s.now()
	s.players = append(s.players, &GamePlayer{ID: hostID, Name: hostName, Connected: true})
	s.addSystemMessage("%s 创建了房间", hostName)
	return s
}

// ID 房间号
func (s *GameSession) ID() string { return s.id }

// HostID 房主 ID
func (s *GameSession) HostID() string { return s.hostID }

// HasPassword 是否设置了密码
func (s *GameSession) HasPassword() bool { return s.password != "" }

// State 当前状态
func (s *GameSession) State() GameState { return s.state }

// CurrentRound 当前回合
func (s *GameSession) CurrentRound() int { return s.currentRound }

// KeyHolderID 当前持钥匙的玩家
func (s *GameSession) KeyHolderID() string { return s.keyHolderID }

// IsResolving 是否处于回合结算等待中
func (s *GameSession) IsResolving() bool { return s.resolving }

// WinningTeam 获胜阵营，未结束时为空
func (s *GameSession) WinningTeam() role.Role { return s.winningTeam }

// CreatedAt 创建时间
func (s *GameSession) CreatedAt() time.Time { return s.createdAt }

// FinishedAt 结束时间
func (s *GameSession) FinishedAt() time.Time { return s.finishedAt }

// HostName 房主名字
func (s *GameSession) HostName() string {
	if p := s.playerByID(s.hostID); p != nil {
		return p.Name
	}
	return ""
}

// PlayerCount 入座人数
func (s *GameSession) PlayerCount() int { return len(s.players) }

// ConnectedCount 在线人数
func (s *GameSession) ConnectedCount() int {
	n := 0
	for _, p := range s.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// Player 返回玩家副本
func (s *GameSession) Player(id string) (GamePlayer, bool) {
	p := s.playerByID(id)
	if p == nil {
		return GamePlayer{}, false
	}
	return p.clone(), true
}

// PlayerByName 按名字返回玩家副本
func (s *GameSession) PlayerByName(name string) (GamePlayer, bool) {
	p := s.playerByName(name)
	if p == nil {
		return GamePlayer{}, false
	}
	return p.clone(), true
}

// Players 按座位顺序返回所有玩家副本
func (s *GameSession) Players() []GamePlayer {
	out := make([]GamePlayer, len(s.players))
	for i, p := range s.players {
		out[i] = p.clone()
	}
	return out
}

// Progress 返回当前进度
func (s *GameSession) Progress() (treasureFound, treasureGoal, trapTriggered, trapGoal int) {
	return s.treasureFound, s.treasureGoal, s.trapTriggered, s.trapGoal
}

// Winners 获胜阵营的玩家名
func (s *GameSession) Winners() []string {
	if s.state != StateFinished {
		return nil
	}
	var names []string
	for _, p := range s.players {
		if p.Role == s.winningTeam {
			names = append(names, p.Name)
		}
	}
	return names
}

func (p *GamePlayer) clone() GamePlayer {
	c := *p
	c.Hand = append([]card.Card(nil), p.Hand...)
	return c
}

func (s *GameSession) playerByID(id string) *GamePlayer {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *GameSession) playerByName(name string) *GamePlayer {
	for _, p := range s.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *GameSession) seatOf(id string) int {
	for i, p := range s.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}
