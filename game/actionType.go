package game

import (
	"fmt"

	"ginrummy/card"
)

// Action is an id in the fixed 110-way action space of the policy network.
type Action int

const (
	ScorePlayer0Action Action = iota // 0
	ScorePlayer1Action               // 1
	DrawCardAction                   // 2
	PickUpDiscardAction              // 3
	DeclareDeadHandAction            // 4
	GinAction                        // 5

	discardBase Action = 6
	knockBase   Action = discardBase + card.NumCards // 58

	// NumActions is the length of the policy output.
	NumActions = 6 + 2*card.NumCards // 110
)

// DiscardAction is the action that discards c.
func DiscardAction(c card.Card) Action { return discardBase + Action(c.ID()) }

// KnockAction is the action that knocks discarding c.
func KnockAction(c card.Card) Action { return knockBase + Action(c.ID()) }

func (a Action) IsDiscard() bool { return a >= discardBase && a < knockBase }
func (a Action) IsKnock() bool   { return a >= knockBase && int(a) < NumActions }

// Card returns the card carried by a discard or knock action.
func (a Action) Card() (card.Card, bool) {
	switch {
	case a.IsDiscard():
		return card.FromID(int(a - discardBase)), true
	case a.IsKnock():
		return card.FromID(int(a - knockBase)), true
	}
	return card.None, false
}

func (a Action) String() string {
	switch a {
	case ScorePlayer0Action:
		return "score_player_0"
	case ScorePlayer1Action:
		return "score_player_1"
	case DrawCardAction:
		return "draw_card"
	case PickUpDiscardAction:
		return "pick_up_discard"
	case DeclareDeadHandAction:
		return "declare_dead_hand"
	case GinAction:
		return "gin"
	}
	if c, ok := a.Card(); ok {
		if a.IsKnock() {
			return "knock " + c.String()
		}
		return "discard " + c.String()
	}
	return fmt.Sprintf("action(%d)", int(a))
}
