package card

import (
	"errors"
	"slices"
)

// ErrInsufficientCards 牌堆不足以发牌
var ErrInsufficientCards = errors.New("card: pool too small for deal")

// Deal 洗牌后按座位顺序给每位玩家发 handSize 张牌，返回各手牌和剩余牌堆
//
// 传入的 pool 不会被修改。每手牌发完后会再单独洗一次，手牌位置不携带发牌顺序信息。
func Deal(pool []Card, playerCount, handSize int) (hands [][]Card, remainder []Card, err error) {
	if playerCount < 0 || handSize < 0 {
		return nil, nil, ErrInsufficientCards
	}
	if len(pool) < playerCount*handSize {
		return nil, nil, ErrInsufficientCards
	}

	shuffled := slices.Clone(pool)
	Shuffle(shuffled)

	hands = make([][]Card, playerCount)
	for i := range playerCount {
		start := i * handSize
		hand := slices.Clone(shuffled[start : start+handSize])
		Shuffle(hand)
		hands[i] = hand
	}

	remainder = slices.Clone(shuffled[playerCount*handSize:])
	return hands, remainder, nil
}
