package convert

import (
	"github.com/palemoky/treasure-hunt/internal/game/card"
	"github.com/palemoky/treasure-hunt/internal/protocol"
)

// CardToInfo 将 card.Card 转换为 protocol.CardInfo
func CardToInfo(c card.Card) protocol.CardInfo {
	return protocol.CardInfo{
		ID:       c.ID,
		Kind:     string(c.Kind),
		Revealed: c.Revealed,
	}
}

// CardsToInfos 将 []card.Card 转换为 []protocol.CardInfo
func CardsToInfos(cards []card.Card) []protocol.CardInfo {
	infos := make([]protocol.CardInfo, len(cards))
	for i, c := range cards {
		infos[i] = CardToInfo(c)
	}
	return infos
}

// CardsToMaskedInfos 转换他人手牌：已翻开的牌照常展示，未翻开的只保留占位
func CardsToMaskedInfos(cards []card.Card) []protocol.CardInfo {
	infos := make([]protocol.CardInfo, len(cards))
	for i, c := range cards {
		if c.Revealed {
			infos[i] = CardToInfo(c)
			continue
		}
		infos[i] = protocol.CardInfo{Kind: protocol.HiddenKind}
	}
	return infos
}

// InfoToCard 将 protocol.CardInfo 转换为 card.Card
func InfoToCard(info protocol.CardInfo) card.Card {
	return card.Card{
		ID:       info.ID,
		Kind:     card.Kind(info.Kind),
		Revealed: info.Revealed,
	}
}

// InfosToCards 将 []protocol.CardInfo 转换为 []card.Card
func InfosToCards(infos []protocol.CardInfo) []card.Card {
	cards := make([]card.Card, len(infos))
	for i, info := range infos {
		cards[i] = InfoToCard(info)
	}
	return cards
}
