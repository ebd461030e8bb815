package agent

import "ginrummy/card"

// Player is the contract a match harness drives, one callback at a time.
// Seats are 0 and 1.
type Player interface {
	// StartGame deals a new hand.
	StartGame(seat, starter int, hand []card.Card) error
	// WillDrawFaceUpCard reports whether the player takes the face-up card.
	WillDrawFaceUpCard(c card.Card) (bool, error)
	// ReportDraw reports a draw by either seat; c is card.None when the
	// receiver cannot see it.
	ReportDraw(seat int, c card.Card) error
	// GetDiscard returns the card to discard after drawing.
	GetDiscard() (card.Card, error)
	ReportDiscard(seat int, c card.Card) error
	// GetFinalMelds returns the melds to knock with, or nil to keep playing.
	// Once the opponent knocked it must return melds, possibly none.
	GetFinalMelds() ([][]card.Card, error)
	ReportFinalMelds(seat int, melds [][]card.Card) error
	ReportScores(scores [2]int) error
	ReportLayoff(seat int, c card.Card, meld []card.Card) error
	ReportFinalHand(seat int, hand []card.Card) error
}
