package game

import (
	"fmt"
	"slices"

	"ginrummy/card"
	"ginrummy/meld"
)

// DrawMask is the legal mask when offered the face-up card.
func DrawMask() []Action {
	return []Action{DrawCardAction, PickUpDiscardAction}
}

// DiscardMask is the legal mask after drawing. Every candidate can be
// discarded; it can be knocked with when the rest of the hand is within the
// knocking limit, and gin is legal when some candidate leaves no deadwood.
func DiscardMask(hand card.Set, candidates []card.Card) []Action {
	var mask []Action
	gin := false
	for _, c := range candidates {
		mask = append(mask, DiscardAction(c))
		residual := meld.MinDeadwood(hand.Remove(c))
		if residual <= meld.MaxDeadwood {
			mask = append(mask, KnockAction(c))
		}
		if residual == 0 {
			gin = true
		}
	}
	if gin {
		mask = append(mask, GinAction)
	}
	slices.Sort(mask)
	return mask
}

// ResolveDiscard maps an action chosen in the discard context to the card to
// discard. Gin resolves to the first candidate that leaves no deadwood.
func ResolveDiscard(a Action, hand card.Set, candidates []card.Card) (card.Card, error) {
	if a == GinAction {
		for _, c := range candidates {
			if meld.MinDeadwood(hand.Remove(c)) == 0 {
				return c, nil
			}
		}
		return card.None, fmt.Errorf("gin is not reachable from %s", hand)
	}
	c, ok := a.Card()
	if !ok {
		return card.None, fmt.Errorf("%s is not a discard", a)
	}
	if !slices.Contains(candidates, c) {
		return card.None, fmt.Errorf("%s is not a discard candidate", c)
	}
	return c, nil
}

// Ints converts a mask to plain ids for the selector.
func Ints(mask []Action) []int {
	ids := make([]int, len(mask))
	for i, a := range mask {
		ids[i] = int(a)
	}
	return ids
}
