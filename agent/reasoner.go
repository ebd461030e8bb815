package agent

import (
	"slices"

	"ginrummy/card"
	"ginrummy/meld"
	"ginrummy/utils"
)

// reasoner plays from melds and deadwood alone. pick breaks ties.
type reasoner struct {
	pick func(n int) int
}

// willDrawFaceUp takes the face-up card iff it would be part of a meld.
func willDrawFaceUp(hand []card.Card, c card.Card) bool {
	return len(meld.AllMeldsContaining(append(slices.Clone(hand), c), c)) > 0
}

// discardCandidates are the cards that may be discarded: never the face-up
// card just taken, and never a card whose (drawn, discard) pair was already
// played this hand.
func discardCandidates(hand []card.Card, drawn, faceUp card.Card, history []card.Set) []card.Card {
	var candidates []card.Card
	for _, c := range hand {
		if c == drawn && drawn == faceUp {
			continue
		}
		if slices.Contains(history, card.SetOf(drawn, c)) {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

func residualDeadwood(cards []card.Card) int {
	best := meld.BestMeldSets(cards)
	if len(best) == 0 {
		return meld.DeadwoodPoints(cards)
	}
	return meld.DeadwoodPointsOf(best[0], cards)
}

// chooseDiscard keeps the least deadwood, ties broken at random.
func (r reasoner) chooseDiscard(hand, candidates []card.Card) card.Card {
	least := -1
	var tied []card.Card
	for _, c := range candidates {
		deadwood := residualDeadwood(utils.Without(hand, c))
		switch {
		case least < 0 || deadwood < least:
			least = deadwood
			tied = append(tied[:0], c)
		case deadwood == least:
			tied = append(tied, c)
		}
	}
	return tied[r.pick(len(tied))]
}

// finalMelds returns a best meld set when knocking is allowed or the opponent
// knocked, and nil otherwise.
func (r reasoner) finalMelds(hand []card.Card, opponentKnocked bool) [][]card.Card {
	best := meld.BestMeldSets(hand)
	if !opponentKnocked && (len(best) == 0 || meld.DeadwoodPointsOf(best[0], hand) > meld.MaxDeadwood) {
		return nil
	}
	if len(best) == 0 {
		return [][]card.Card{}
	}
	return utils.CloneAll(best[r.pick(len(best))])
}
