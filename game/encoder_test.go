package game

import (
	"testing"

	"ginrummy/card"

	"github.com/stretchr/testify/require"
)

func requireRowsValid(t *testing.T, obs Observation, hand []card.Card) {
	t.Helper()
	for _, row := range obs.Matrix() {
		for _, x := range row {
			require.Contains(t, []float32{0, 1}, x, "Observation entries should be binary")
		}
	}
	require.Equal(t, len(hand), obs.Hand.Len(), "Hand row sum should equal the hand size")
	require.Zero(t, obs.Hand&obs.DeadCards, "A dead card cannot be in hand")
	require.Zero(t, obs.Hand&obs.TopDiscard, "The top discard cannot be in hand")
}

func TestEncoderInitEpisode(t *testing.T) {
	hand := card.MustParseList("AC 2C 3C 7H 9S TD JD QD KD KS")
	var e Encoder
	e.SetTopDiscard(card.MustParse("5H"))
	e.InitEpisode(hand)

	obs := e.Snapshot()
	require.Equal(t, card.SetOf(hand...), obs.Hand)
	require.Zero(t, obs.TopDiscard, "Init should clear the top discard")
	require.Zero(t, obs.DeadCards)
	require.Zero(t, obs.OpponentKnown)
	requireRowsValid(t, obs, hand)
}

func TestEncoderHand(t *testing.T) {
	t.Run("add and remove keep the count", func(t *testing.T) {
		hand := card.MustParseList("AC 2C 3C")
		var e Encoder
		e.InitEpisode(hand)

		drawn := card.MustParse("4C")
		require.NoError(t, e.AddToHand(drawn))
		requireRowsValid(t, e.Snapshot(), append(hand, drawn))

		require.NoError(t, e.RemoveFromHand(card.MustParse("AC")))
		requireRowsValid(t, e.Snapshot(), hand)
	})

	t.Run("removing a card not held fails", func(t *testing.T) {
		var e Encoder
		e.InitEpisode(nil)
		require.ErrorIs(t, e.RemoveFromHand(card.MustParse("AC")), ErrNotInHand)
		require.Zero(t, e.Snapshot().Hand.Len(), "Count should never go negative")
	})

	t.Run("adding a held card fails", func(t *testing.T) {
		var e Encoder
		e.InitEpisode(card.MustParseList("AC"))
		require.ErrorIs(t, e.AddToHand(card.MustParse("AC")), ErrAlreadyInHand)
	})

	t.Run("picking up the top discard clears it", func(t *testing.T) {
		var e Encoder
		e.InitEpisode(nil)
		top := card.MustParse("8D")
		e.SetTopDiscard(top)
		require.NoError(t, e.AddToHand(top))
		require.Zero(t, e.Snapshot().TopDiscard)
	})
}

func TestEncoderDiscardPile(t *testing.T) {
	t.Run("top discard is one hot", func(t *testing.T) {
		var e Encoder
		e.InitEpisode(nil)
		e.SetTopDiscard(card.MustParse("8D"))
		require.Equal(t, card.SetOf(card.MustParse("8D")), e.Snapshot().TopDiscard)
	})

	t.Run("buried top discard becomes dead", func(t *testing.T) {
		var e Encoder
		e.InitEpisode(nil)
		e.SetTopDiscard(card.MustParse("8D"))
		e.SetTopDiscard(card.MustParse("2S"))

		obs := e.Snapshot()
		require.Equal(t, card.SetOf(card.MustParse("2S")), obs.TopDiscard)
		require.True(t, obs.DeadCards.Contains(card.MustParse("8D")))
	})

	t.Run("repeating the same top keeps it alive", func(t *testing.T) {
		var e Encoder
		e.InitEpisode(nil)
		e.SetTopDiscard(card.MustParse("8D"))
		e.SetTopDiscard(card.MustParse("8D"))
		require.Zero(t, e.Snapshot().DeadCards)
	})

	t.Run("opponent known cards are not dead", func(t *testing.T) {
		var e Encoder
		e.InitEpisode(nil)
		top := card.MustParse("8D")
		e.SetTopDiscard(top)
		e.MarkOpponentKnown(top)
		e.SetTopDiscard(card.MustParse("2S"))

		obs := e.Snapshot()
		require.True(t, obs.OpponentKnown.Contains(top))
		require.False(t, obs.DeadCards.Contains(top))

		e.ForgetOpponentKnown(top)
		require.False(t, e.Snapshot().OpponentKnown.Contains(top))
	})

	t.Run("cleared top is not buried", func(t *testing.T) {
		var e Encoder
		e.InitEpisode(nil)
		e.SetTopDiscard(card.MustParse("8D"))
		e.ClearTopDiscard()
		require.Zero(t, e.Snapshot().TopDiscard)

		e.SetTopDiscard(card.MustParse("2S"))
		require.Zero(t, e.Snapshot().DeadCards, "Nothing was under 2S")
	})

	t.Run("mark dead removes the card elsewhere", func(t *testing.T) {
		hand := card.MustParseList("AC 2C")
		var e Encoder
		e.InitEpisode(hand)
		e.MarkDead(card.MustParse("AC"))

		obs := e.Snapshot()
		require.True(t, obs.DeadCards.Contains(card.MustParse("AC")))
		requireRowsValid(t, obs, hand[1:])
	})
}

func TestObservationVector(t *testing.T) {
	t.Run("encoding then decoding recovers the planes", func(t *testing.T) {
		obs := Observation{
			Hand:          card.SetOf(card.MustParseList("AC 5H 9S KD")...),
			TopDiscard:    card.SetOf(card.MustParse("2D")),
			DeadCards:     card.SetOf(card.MustParseList("3C 3H")...),
			OpponentKnown: card.SetOf(card.MustParse("QS")),
		}
		v := obs.Vector()

		require.Len(t, v, ObservationSize)
		require.Equal(t, obs, ObservationFromVector(v))
		require.Equal(t, float32(1), v[card.MustParse("AC").ID()], "Hand is the first plane")
		require.Equal(t, float32(1), v[card.NumCards+card.MustParse("2D").ID()], "Top discard is the second plane")
		require.Equal(t, float32(1), v[3*card.NumCards+card.MustParse("QS").ID()], "Opponent cards are the last plane")
	})
}
