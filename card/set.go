package card

import "math/bits"

// Set is a set of cards as a bitstring: bit i is set iff the card with id i is in the set.
type Set uint64

// All contains every card of the deck.
const All Set = 1<<NumCards - 1

// SetOf builds the bitstring of the given cards.
func SetOf(cards ...Card) Set {
	var s Set
	for _, c := range cards {
		s |= c.Bit()
	}
	return s
}

// Bit returns the single card bitstring of c.
func (c Card) Bit() Set {
	if !c.Valid() {
		return 0
	}
	return 1 << uint(c)
}

func (s Set) Contains(c Card) bool { return c.Valid() && s&c.Bit() != 0 }
func (s Set) Add(c Card) Set       { return s | c.Bit() }
func (s Set) Remove(c Card) Set    { return s &^ c.Bit() }
func (s Set) Len() int             { return bits.OnesCount64(uint64(s)) }

// ContainsAll reports whether other is a subset of s.
func (s Set) ContainsAll(other Set) bool { return s&other == other }

// Cards returns the cards of the set in ascending id order.
func (s Set) Cards() []Card {
	cards := make([]Card, 0, s.Len())
	for rest := uint64(s & All); rest != 0; rest &= rest - 1 {
		cards = append(cards, Card(bits.TrailingZeros64(rest)))
	}
	return cards
}

func (s Set) String() string { return FormatList(s.Cards()) }
