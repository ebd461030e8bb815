package game

// Rules are the round parameters a match is played with.
type Rules interface {
	HandSize() int
	GoalScore() int
	GinBonus() int
	UndercutBonus() int
	MaxDeadwood() int
	// StockFloor is the stock size at which an unfinished hand is cancelled.
	StockFloor() int
}
