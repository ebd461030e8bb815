package card

import (
	"fmt"
	"strings"
)

const (
	NumRanks = 13
	NumSuits = 4
	NumCards = NumRanks * NumSuits
)

const (
	rankNames = "A23456789TJQK"
	suitNames = "CHSD" // Suit colors alternate
)

// Card is a standard playing card identified by its id in [0,52).
// The id is suit*13 + rank, so all clubs come first, then hearts, spades and diamonds.
type Card int8

// None stands for a card that is not known to the receiver, e.g. the face-down
// draw of the opponent.
const None Card = -1

// New returns the card with the given zero-based rank and suit.
func New(rank, suit int) Card {
	if rank < 0 || rank >= NumRanks || suit < 0 || suit >= NumSuits {
		panic(fmt.Sprintf("invalid card rank=%d suit=%d", rank, suit))
	}
	return Card(suit*NumRanks + rank)
}

// FromID returns the card with the given id.
func FromID(id int) Card {
	if id < 0 || id >= NumCards {
		panic(fmt.Sprintf("invalid card id %d", id))
	}
	return Card(id)
}

func (c Card) ID() int   { return int(c) }
func (c Card) Rank() int { return int(c) % NumRanks }
func (c Card) Suit() int { return int(c) / NumRanks }

// Valid reports whether c is one of the 52 cards.
func (c Card) Valid() bool { return c >= 0 && int(c) < NumCards }

func (c Card) String() string {
	if !c.Valid() {
		return "null"
	}
	return string(rankNames[c.Rank()]) + string(suitNames[c.Suit()])
}

// Parse converts a two letter name such as "AC" or "td" to a card.
// "null" parses to None.
func Parse(s string) (Card, error) {
	if s == "null" {
		return None, nil
	}
	if len(s) != 2 {
		return None, fmt.Errorf("invalid card name %q", s)
	}
	rank := strings.IndexByte(rankNames, upper(s[0]))
	suit := strings.IndexByte(suitNames, upper(s[1]))
	if rank < 0 || suit < 0 {
		return None, fmt.Errorf("invalid card name %q", s)
	}
	return New(rank, suit), nil
}

// MustParse is Parse for literals in tests and tables.
func MustParse(s string) Card {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseList parses space separated card names.
func ParseList(s string) ([]Card, error) {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := Parse(f)
		if err != nil {
			return nil, err
		}
		if c == None {
			return nil, fmt.Errorf("unexpected null card in %q", s)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// MustParseList is ParseList for literals.
func MustParseList(s string) []Card {
	cards, err := ParseList(s)
	if err != nil {
		panic(err)
	}
	return cards
}

// FormatList is the inverse of ParseList.
func FormatList(cards []Card) string {
	names := make([]string, len(cards))
	for i, c := range cards {
		names[i] = c.String()
	}
	return strings.Join(names, " ")
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
