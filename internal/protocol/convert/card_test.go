package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/treasure-hunt/internal/game/card"
	"github.com/palemoky/treasure-hunt/internal/protocol"
)

func TestCardsToMaskedInfos(t *testing.T) {
	t.Parallel()

	hand := []card.Card{
		{ID: "treasure-0", Kind: card.Treasure, Revealed: true},
		{ID: "trap-1", Kind: card.Trap},
		{ID: "empty-3", Kind: card.Empty},
	}

	infos := CardsToMaskedInfos(hand)
	require.Len(t, infos, 3)

	assert.Equal(t, protocol.CardInfo{ID: "treasure-0", Kind: "treasure", Revealed: true}, infos[0])
	for _, info := range infos[1:] {
		assert.Equal(t, protocol.HiddenKind, info.Kind)
		assert.Empty(t, info.ID)
		assert.False(t, info.Revealed)
	}
}

func TestCardsToInfos_KeepsOrder(t *testing.T) {
	t.Parallel()

	hand := card.BuildDeck(3).Cards[:5]
	infos := CardsToInfos(hand)
	require.Len(t, infos, 5)
	for i := range hand {
		assert.Equal(t, hand[i].ID, infos[i].ID)
	}
	assert.Equal(t, hand, InfosToCards(infos))
}
