package card

import "golang.org/x/exp/rand"

// Deck is a stack of cards; the top of the deck is the end of the slice.
type Deck []Card

// NewDeck returns all 52 cards in id order.
func NewDeck() Deck {
	d := make(Deck, NumCards)
	for i := range d {
		d[i] = Card(i)
	}
	return d
}

// Shuffled returns a full deck shuffled with rng.
func Shuffled(rng *rand.Rand) Deck {
	d := NewDeck()
	rng.Shuffle(len(d), func(i, j int) { d[i], d[j] = d[j], d[i] })
	return d
}

// Pop removes and returns the top card.
func (d *Deck) Pop() Card {
	old := *d
	if len(old) == 0 {
		panic("pop from empty deck")
	}
	c := old[len(old)-1]
	*d = old[:len(old)-1]
	return c
}

func (d Deck) Len() int { return len(d) }
