// Package meld holds the Gin Rummy constants and the meld/deadwood utilities.
//
// Meld checking works on card.Set bitstrings, so set operations are single
// bitwise instructions.
package meld

import (
	"ginrummy/card"
)

const (
	// GoalScore ends the game.
	GoalScore = 100
	// GinBonus is awarded for melding all cards before knocking.
	GinBonus = 25
	// UndercutBonus is awarded to the opponent of a knocker with no less deadwood.
	UndercutBonus = 25
	// MaxDeadwood is the largest deadwood count that permits knocking.
	MaxDeadwood = 10
)

// Lists of meld bitstrings. Within a list every meld is a superset of the
// previous one, so the first meld not contained in a hand ends the list.
var meldLists [][]card.Set

var allMelds = map[card.Set]bool{}

func init() {
	// Runs of 3+ cards in one suit
	for suit := 0; suit < card.NumSuits; suit++ {
		for start := 0; start < card.NumRanks-2; start++ {
			var list []card.Set
			s := card.SetOf(card.New(start, suit), card.New(start+1, suit))
			for rank := start + 2; rank < card.NumRanks; rank++ {
				s = s.Add(card.New(rank, suit))
				list = append(list, s)
				allMelds[s] = true
			}
			meldLists = append(meldLists, list)
		}
	}
	// Sets of 3 or 4 cards of one rank
	for rank := 0; rank < card.NumRanks; rank++ {
		var four card.Set
		for suit := 0; suit < card.NumSuits; suit++ {
			four = four.Add(card.New(rank, suit))
		}
		for suit := 0; suit <= card.NumSuits; suit++ {
			s := four
			if suit < card.NumSuits {
				s = s.Remove(card.New(rank, suit))
			}
			meldLists = append(meldLists, []card.Set{s})
			allMelds[s] = true
		}
	}
}

// IsMeld reports whether the cards form a single valid meld.
func IsMeld(s card.Set) bool {
	return allMelds[s]
}

// AllMeldSets returns the bitstrings of every meld contained in hand.
func AllMeldSets(hand card.Set) []card.Set {
	var melds []card.Set
	for _, list := range meldLists {
		for _, m := range list {
			if !hand.ContainsAll(m) {
				break
			}
			melds = append(melds, m)
		}
	}
	return melds
}

// AllMelds returns every meld contained in the cards.
func AllMelds(cards []card.Card) [][]card.Card {
	return toCards(AllMeldSets(card.SetOf(cards...)))
}

// AllMeldsContaining returns the melds of hand that include c.
func AllMeldsContaining(hand []card.Card, c card.Card) [][]card.Card {
	var out []card.Set
	for _, m := range AllMeldSets(card.SetOf(hand...)) {
		if m.Contains(c) {
			out = append(out, m)
		}
	}
	return toCards(out)
}

// MaximalMeldSets returns every collection of disjoint melds to which no further
// meld of the hand can be added. An empty result means the hand has no meld.
func MaximalMeldSets(cards []card.Card) [][][]card.Card {
	var out [][][]card.Card
	for _, ms := range maximal(AllMeldSets(card.SetOf(cards...))) {
		out = append(out, toCards(ms))
	}
	return out
}

// BestMeldSets returns the maximal meld sets that leave the least deadwood.
func BestMeldSets(cards []card.Card) [][][]card.Card {
	hand := card.SetOf(cards...)
	var best [][]card.Set
	least := -1
	for _, ms := range maximal(AllMeldSets(hand)) {
		points := DeadwoodOf(hand &^ union(ms))
		if least < 0 || points < least {
			least = points
			best = best[:0]
		}
		if points == least {
			best = append(best, ms)
		}
	}
	out := make([][][]card.Card, 0, len(best))
	for _, ms := range best {
		out = append(out, toCards(ms))
	}
	return out
}

// MinDeadwood returns the deadwood of the hand under its best meld set, or the
// plain deadwood when the hand has no meld.
func MinDeadwood(hand card.Set) int {
	melds := AllMeldSets(hand)
	least := DeadwoodOf(hand)
	for _, ms := range maximal(melds) {
		if points := DeadwoodOf(hand &^ union(ms)); points < least {
			least = points
		}
	}
	return least
}

// maximal enumerates disjoint meld combinations in increasing index order and
// keeps those that cannot be extended.
func maximal(melds []card.Set) [][]card.Set {
	var out [][]card.Set
	var walk func(from int, used card.Set, picked []card.Set)
	walk = func(from int, used card.Set, picked []card.Set) {
		for i := from; i < len(melds); i++ {
			if melds[i]&used == 0 {
				walk(i+1, used|melds[i], append(picked, melds[i]))
			}
		}
		if len(picked) == 0 {
			return
		}
		for _, m := range melds {
			if m&used == 0 {
				return
			}
		}
		out = append(out, append([]card.Set(nil), picked...))
	}
	walk(0, 0, nil)
	return out
}

func union(melds []card.Set) card.Set {
	var s card.Set
	for _, m := range melds {
		s |= m
	}
	return s
}

func toCards(sets []card.Set) [][]card.Card {
	out := make([][]card.Card, 0, len(sets))
	for _, s := range sets {
		out = append(out, s.Cards())
	}
	return out
}
