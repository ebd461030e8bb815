package engine

import (
	"context"

	"ginrummy/experiments/metrics"
)

// MaxHands bounds a match when hands keep being cancelled.
const MaxHands = 1000

type Engine interface {
	// Run plays hands until a player reaches the goal score, a player forfeits
	// or ctx is done. winner is -1 when the match ended without one.
	Run(ctx context.Context) (winner int, gameMetric metrics.GameMetric, err error)
}
