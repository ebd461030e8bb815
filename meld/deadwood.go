package meld

import "ginrummy/card"

// CardPoints is the deadwood value of a card: ace 1, number cards their pip, faces 10.
func CardPoints(c card.Card) int {
	return min(c.Rank()+1, 10)
}

// DeadwoodOf sums the points of every card in the set.
func DeadwoodOf(s card.Set) int {
	points := 0
	for _, c := range s.Cards() {
		points += CardPoints(c)
	}
	return points
}

// DeadwoodPoints sums the points of the given cards.
func DeadwoodPoints(cards []card.Card) int {
	return DeadwoodOf(card.SetOf(cards...))
}

// DeadwoodPointsOf returns the points of the hand cards not covered by melds.
func DeadwoodPointsOf(melds [][]card.Card, hand []card.Card) int {
	var melded card.Set
	for _, m := range melds {
		melded |= card.SetOf(m...)
	}
	return DeadwoodOf(card.SetOf(hand...) &^ melded)
}
