package game

import (
	"errors"
	"fmt"

	"ginrummy/card"
)

var (
	ErrNotInHand     = errors.New("card not in hand")
	ErrAlreadyInHand = errors.New("card already in hand")
)

// Encoder maintains the agent's observation across harness callbacks.
type Encoder struct {
	obs Observation
}

// InitEpisode clears every plane and marks the dealt hand.
func (e *Encoder) InitEpisode(hand []card.Card) {
	e.obs = Observation{Hand: card.SetOf(hand...)}
}

// SetTopDiscard makes c the only top discard. A different previous top card
// that nobody picked up is now buried in the discard pile.
func (e *Encoder) SetTopDiscard(c card.Card) {
	prev := e.obs.TopDiscard
	if prev != 0 && prev != c.Bit() && e.obs.Hand&prev == 0 && e.obs.OpponentKnown&prev == 0 {
		for _, buried := range prev.Cards() {
			e.MarkDead(buried)
		}
	}
	e.obs.TopDiscard = c.Bit()
	e.obs.DeadCards = e.obs.DeadCards.Remove(c)
}

// ClearTopDiscard empties the top discard plane, e.g. after a pick up.
func (e *Encoder) ClearTopDiscard() {
	e.obs.TopDiscard = 0
}

func (e *Encoder) AddToHand(c card.Card) error {
	if e.obs.Hand.Contains(c) {
		return fmt.Errorf("add %s: %w", c, ErrAlreadyInHand)
	}
	e.obs.Hand = e.obs.Hand.Add(c)
	e.obs.TopDiscard = e.obs.TopDiscard.Remove(c)
	e.obs.DeadCards = e.obs.DeadCards.Remove(c)
	return nil
}

func (e *Encoder) RemoveFromHand(c card.Card) error {
	if !e.obs.Hand.Contains(c) {
		return fmt.Errorf("remove %s: %w", c, ErrNotInHand)
	}
	e.obs.Hand = e.obs.Hand.Remove(c)
	return nil
}

// MarkOpponentKnown records a card the opponent is known to hold.
func (e *Encoder) MarkOpponentKnown(c card.Card) {
	e.obs.OpponentKnown = e.obs.OpponentKnown.Add(c)
	e.obs.TopDiscard = e.obs.TopDiscard.Remove(c)
	e.obs.DeadCards = e.obs.DeadCards.Remove(c)
}

// ForgetOpponentKnown drops c after the opponent let go of it.
func (e *Encoder) ForgetOpponentKnown(c card.Card) {
	e.obs.OpponentKnown = e.obs.OpponentKnown.Remove(c)
}

// MarkDead records a card that is permanently out of play.
func (e *Encoder) MarkDead(c card.Card) {
	e.obs.DeadCards = e.obs.DeadCards.Add(c)
	e.obs.Hand = e.obs.Hand.Remove(c)
	e.obs.TopDiscard = e.obs.TopDiscard.Remove(c)
	e.obs.OpponentKnown = e.obs.OpponentKnown.Remove(c)
}

// Snapshot returns a copy of the current observation.
func (e *Encoder) Snapshot() Observation {
	return e.obs
}
