package card

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestCardID(t *testing.T) {
	t.Run("id is suit major", func(t *testing.T) {
		c := New(5, 2)
		require.Equal(t, 2*NumRanks+5, c.ID(), "Id should be suit*13+rank")
		require.Equal(t, 5, c.Rank())
		require.Equal(t, 2, c.Suit())
	})

	t.Run("every id round trips", func(t *testing.T) {
		for id := 0; id < NumCards; id++ {
			c := FromID(id)
			require.Equal(t, c, New(c.Rank(), c.Suit()))
		}
	})

	t.Run("panics on invalid rank", func(t *testing.T) {
		require.Panics(t, func() { New(13, 0) }, "Should panic for rank 13")
	})
}

func TestParse(t *testing.T) {
	t.Run("names round trip", func(t *testing.T) {
		for id := 0; id < NumCards; id++ {
			c := FromID(id)
			got, err := Parse(c.String())
			require.NoError(t, err)
			require.Equal(t, c, got)
		}
	})

	t.Run("lower case is accepted", func(t *testing.T) {
		got, err := Parse("td")
		require.NoError(t, err)
		require.Equal(t, New(9, 3), got)
	})

	t.Run("null is the unknown card", func(t *testing.T) {
		got, err := Parse("null")
		require.NoError(t, err)
		require.Equal(t, None, got)
		require.Equal(t, "null", None.String())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := Parse("1X")
		require.Error(t, err)
		_, err = Parse("ACE")
		require.Error(t, err)
	})

	t.Run("list", func(t *testing.T) {
		cards, err := ParseList("AC 2C  3C")
		require.NoError(t, err)
		require.Equal(t, []Card{New(0, 0), New(1, 0), New(2, 0)}, cards)
		require.Equal(t, "AC 2C 3C", FormatList(cards))
	})
}

func TestSet(t *testing.T) {
	t.Run("encoding then decoding recovers the cards", func(t *testing.T) {
		hand := []Card{MustParse("KD"), MustParse("AC"), MustParse("7H")}
		s := SetOf(hand...)

		require.Equal(t, 3, s.Len())
		require.ElementsMatch(t, hand, s.Cards())
		require.Equal(t, []Card{MustParse("AC"), MustParse("7H"), MustParse("KD")}, s.Cards(), "Cards should be in id order")
	})

	t.Run("add and remove", func(t *testing.T) {
		c := MustParse("5S")
		s := Set(0).Add(c)
		require.True(t, s.Contains(c))
		require.False(t, s.Remove(c).Contains(c))
		require.False(t, s.Contains(None), "Unknown card is never contained")
	})

	t.Run("all", func(t *testing.T) {
		require.Equal(t, NumCards, All.Len())
	})
}

func TestDeck(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	d := Shuffled(rng)
	require.Equal(t, NumCards, d.Len())
	require.Equal(t, All, SetOf(d...), "Shuffled deck should hold every card once")

	top := d[len(d)-1]
	require.Equal(t, top, d.Pop())
	require.Equal(t, NumCards-1, d.Len())
}
