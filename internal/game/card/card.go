package card

import (
	"fmt"
	"math/rand/v2"
)

// Kind 定义卡牌类型
type Kind string

const (
	Treasure Kind = "treasure" // 财宝
	Trap     Kind = "trap"     // 陷阱
	Empty    Kind = "empty"    // 空房间
)

// kindNames 卡牌类型中文名称
var kindNames = map[Kind]string{
	Treasure: "财宝",
	Trap:     "陷阱",
	Empty:    "空房间",
}

// Label 返回卡牌类型的展示名称
func (k Kind) Label() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return string(k)
}

// Card 定义一张牌
//
// 除 Revealed 外所有字段在创建后不可变，Revealed 只会从 false 变为 true。
type Card struct {
	ID       string
	Kind     Kind
	Revealed bool
}

func newCard(kind Kind, index int) Card {
	return Card{ID: fmt.Sprintf("%s-%d", kind, index), Kind: kind}
}

// Composition 牌堆构成
type Composition struct {
	Treasures int
	Traps     int
	Empties   int
}

// Total 牌堆总张数
func (c Composition) Total() int {
	return c.Treasures + c.Traps + c.Empties
}

// compositions 按人数决定的牌堆构成
var compositions = map[int]Composition{
	3:  {Treasures: 5, Traps: 2, Empties: 8},
	4:  {Treasures: 6, Traps: 2, Empties: 12},
	5:  {Treasures: 7, Traps: 2, Empties: 16},
	6:  {Treasures: 8, Traps: 2, Empties: 20},
	7:  {Treasures: 7, Traps: 2, Empties: 26},
	8:  {Treasures: 8, Traps: 2, Empties: 30},
	9:  {Treasures: 9, Traps: 2, Empties: 34},
	10: {Treasures: 10, Traps: 3, Empties: 37},
}

// CompositionFor 返回指定人数的牌堆构成，表外人数按 5 人处理
func CompositionFor(playerCount int) Composition {
	if c, ok := compositions[playerCount]; ok {
		return c
	}
	return compositions[5]
}

// Deck 一局游戏的完整牌堆
type Deck struct {
	Cards          []Card
	TotalTreasures int
	TotalTraps     int
}

// BuildDeck 按人数生成完整牌堆（未洗牌）
func BuildDeck(playerCount int) Deck {
	comp := CompositionFor(playerCount)
	cards := make([]Card, 0, comp.Total())
	for i := range comp.Treasures {
		cards = append(cards, newCard(Treasure, i))
	}
	for i := range comp.Traps {
		cards = append(cards, newCard(Trap, i))
	}
	for i := range comp.Empties {
		cards = append(cards, newCard(Empty, i))
	}
	return Deck{
		Cards:          cards,
		TotalTreasures: comp.Treasures,
		TotalTraps:     comp.Traps,
	}
}

const (
	TreasureGoal      = 7 // 探险者胜利所需财宝数
	TrapGoal          = 2 // 守护者胜利所需陷阱数
	TrapGoalFullTable = 3 // 10 人局的陷阱目标
	InitialHandSize   = 5
	MaxRounds         = 4
)

// GoalsFor 返回指定人数的胜利目标
func GoalsFor(playerCount int) (treasureGoal, trapGoal int) {
	if playerCount == 10 {
		return TreasureGoal, TrapGoalFullTable
	}
	return TreasureGoal, TrapGoal
}

// HandSizeForRound 返回指定回合每人的手牌数：5,4,3,2,1,1...
func HandSizeForRound(round int) int {
	return max(1, 6-round)
}

// Shuffle 原地洗牌
func Shuffle(cards []Card) {
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// CountUnrevealed 统计未翻开的牌数
func CountUnrevealed(cards []Card) int {
	n := 0
	for _, c := range cards {
		if !c.Revealed {
			n++
		}
	}
	return n
}
