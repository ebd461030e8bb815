package game

import "ginrummy/meld"

// StandardRules use North American scoring: 25 point gin and undercut bonuses.
type StandardRules struct {
	Hand     int
	Goal     int
	Gin      int
	Undercut int
	Deadwood int
	Floor    int
}

func NewStandardRules() *StandardRules {
	return &StandardRules{
		Hand:     10,
		Goal:     meld.GoalScore,
		Gin:      meld.GinBonus,
		Undercut: meld.UndercutBonus,
		Deadwood: meld.MaxDeadwood,
		Floor:    2,
	}
}

func (sr *StandardRules) HandSize() int      { return sr.Hand }
func (sr *StandardRules) GoalScore() int     { return sr.Goal }
func (sr *StandardRules) GinBonus() int      { return sr.Gin }
func (sr *StandardRules) UndercutBonus() int { return sr.Undercut }
func (sr *StandardRules) MaxDeadwood() int   { return sr.Deadwood }
func (sr *StandardRules) StockFloor() int    { return sr.Floor }
