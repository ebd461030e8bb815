package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"ginrummy/agent"
	"ginrummy/card"
	"ginrummy/experiments/metrics"
	"ginrummy/game"
	"ginrummy/meld"
	"ginrummy/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

var ErrForfeit = errors.New("forfeit")

// Forfeit ends a match: the player in Seat played illegally or failed to
// answer a callback.
type Forfeit struct {
	Seat   int
	Reason string
	Err    error
}

func (f *Forfeit) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("seat %d forfeits: %s: %v", f.Seat, f.Reason, f.Err)
	}
	return fmt.Sprintf("seat %d forfeits: %s", f.Seat, f.Reason)
}

func (f *Forfeit) Unwrap() error { return f.Err }

func (f *Forfeit) Is(target error) bool { return target == ErrForfeit }

func forfeit(seat int, err error, format string, args ...any) error {
	return &Forfeit{Seat: seat, Reason: fmt.Sprintf(format, args...), Err: err}
}

type Option func(e *LocalEngine)

// WithSeed seeds dealing and the first starting player. 0 seeds from the clock.
func WithSeed(seed uint64) Option {
	return func(e *LocalEngine) {
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		e.rng = rand.New(rand.NewSource(seed))
	}
}

func WithRules(rules game.Rules) Option {
	return func(e *LocalEngine) {
		if rules != nil {
			e.rules = rules
		}
	}
}

func WithMaxHands(n int) Option {
	return func(e *LocalEngine) {
		if n > 0 {
			e.maxHands = n
		}
	}
}

// LocalEngine referees a match between two players in this process.
type LocalEngine struct {
	players  [2]agent.Player
	rules    game.Rules
	rng      *rand.Rand
	maxHands int
	id       string
	logger   zerolog.Logger
}

var _ Engine = (*LocalEngine)(nil)

func NewLocalEngine(players [2]agent.Player, options ...Option) *LocalEngine {
	if players[0] == nil || players[1] == nil {
		panic("need two players")
	}
	e := &LocalEngine{
		players:  players,
		rules:    game.NewStandardRules(),
		maxHands: MaxHands,
		id:       uuid.NewString(),
	}
	WithSeed(0)(e)
	for _, option := range options {
		option(e)
	}
	e.logger = log.With().Str("match", e.id).Logger()
	return e
}

func (e *LocalEngine) ID() string { return e.id }

// Run plays a match to the goal score.
func (e *LocalEngine) Run(ctx context.Context) (int, metrics.GameMetric, error) {
	var scores [2]int
	starter := e.rng.Intn(2)
	gm := metrics.GameMetric{
		Match:          e.id,
		StartingPlayer: starter,
		Winner:         -1,
		StartTime:      time.Now(),
	}
	finish := func() metrics.GameMetric {
		gm.Scores = scores
		gm.EndTime = time.Now()
		gm.Duration = gm.EndTime.Sub(gm.StartTime)
		return gm
	}

	e.logger.Info().Msgf("Seat %d is starting", starter)
	goal := e.rules.GoalScore()
	for scores[0] < goal && scores[1] < goal {
		if gm.Hands >= e.maxHands {
			e.logger.Warn().Msgf("Stopped after %d hands", gm.Hands)
			switch {
			case scores[0] > scores[1]:
				gm.Winner = 0
			case scores[1] > scores[0]:
				gm.Winner = 1
			}
			return gm.Winner, finish(), nil
		}
		gm.Hands++
		scored, err := e.playHand(ctx, starter, &scores)
		var f *Forfeit
		if errors.As(err, &f) {
			e.logger.Warn().Msg(f.Error())
			gm.Forfeit = true
			gm.Winner = 1 - f.Seat
			return gm.Winner, finish(), nil
		}
		if err != nil {
			return -1, finish(), err
		}
		if scored {
			starter = 1 - starter
		}
	}

	gm.Winner = 1
	if scores[0] >= goal {
		gm.Winner = 0
	}
	e.logger.Info().Msgf("Seat %d wins %d:%d after %d hands", gm.Winner, scores[0], scores[1], gm.Hands)
	return gm.Winner, finish(), nil
}

// playHand deals and plays one hand. scored is false when the hand was
// cancelled.
func (e *LocalEngine) playHand(ctx context.Context, starter int, scores *[2]int) (scored bool, err error) {
	deck := card.Shuffled(e.rng)
	var hands [2][]card.Card
	for i := 0; i < 2*e.rules.HandSize(); i++ {
		hands[i%2] = append(hands[i%2], deck.Pop())
	}
	for seat, p := range e.players {
		if err := p.StartGame(seat, starter, slices.Clone(hands[seat])); err != nil {
			return false, forfeit(seat, err, "startGame")
		}
		e.logger.Debug().Msgf("Seat %d is dealt %s", seat, card.FormatList(hands[seat]))
	}

	discards := card.Deck{deck.Pop()}
	firstFaceUp := discards[0]
	e.logger.Debug().Msgf("The initial face up card is %s", firstFaceUp)

	current := starter
	var knockMelds [][]card.Card
	for turns := 0; deck.Len() > e.rules.StockFloor(); turns++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		p := e.players[current]
		faceUp := discards[len(discards)-1]

		drawFaceUp := false
		// The third turn declines the first face-up card automatically.
		if turns != 2 || faceUp != firstFaceUp {
			if drawFaceUp, err = p.WillDrawFaceUpCard(faceUp); err != nil {
				return false, forfeit(current, err, "willDrawFaceUpCard")
			}
		}

		// Both players may decline the first face-up card without drawing.
		if drawFaceUp || turns >= 2 || faceUp != firstFaceUp {
			var drawn card.Card
			if drawFaceUp {
				drawn = discards.Pop()
			} else {
				drawn = deck.Pop()
			}
			for seat, q := range e.players {
				reported := card.None
				if seat == current || drawFaceUp {
					reported = drawn
				}
				if err := q.ReportDraw(current, reported); err != nil {
					return false, forfeit(seat, err, "reportDraw")
				}
			}
			e.logger.Debug().Msgf("Seat %d draws %s", current, drawn)
			hands[current] = append(hands[current], drawn)

			discard, err := p.GetDiscard()
			if err != nil {
				return false, forfeit(current, err, "getDiscard")
			}
			if !slices.Contains(hands[current], discard) || discard == faceUp {
				return false, forfeit(current, nil, "discards %s illegally", discard)
			}
			hands[current] = utils.Without(hands[current], discard)
			for seat, q := range e.players {
				if err := q.ReportDiscard(current, discard); err != nil {
					return false, forfeit(seat, err, "reportDiscard")
				}
			}
			e.logger.Debug().Msgf("Seat %d discards %s", current, discard)
			discards = append(discards, discard)

			if knockMelds, err = p.GetFinalMelds(); err != nil {
				return false, forfeit(current, err, "getFinalMelds")
			}
			if knockMelds != nil {
				break
			}
		} else {
			e.logger.Debug().Msgf("Seat %d declines %s", current, firstFaceUp)
		}
		current = 1 - current
	}

	if knockMelds != nil {
		if err := e.settle(current, knockMelds, hands, scores); err != nil {
			return false, err
		}
		scored = true
	} else {
		e.logger.Debug().Msg("The stock was reduced without knocking, the hand is cancelled")
	}

	for seat, p := range e.players {
		for j := range hands {
			if err := p.ReportFinalHand(j, slices.Clone(hands[j])); err != nil {
				return false, forfeit(seat, err, "reportFinalHand")
			}
		}
	}
	e.logger.Debug().Msgf("Scores %d:%d", scores[0], scores[1])
	for seat, p := range e.players {
		if err := p.ReportScores(*scores); err != nil {
			return false, forfeit(seat, err, "reportScores")
		}
	}
	return scored, nil
}

// settle checks the melds of both players, lays off the opponent's deadwood
// on the knocker's melds and scores the hand.
func (e *LocalEngine) settle(knocker int, knockMelds [][]card.Card, hands [2][]card.Card, scores *[2]int) error {
	opponent := 1 - knocker

	unmelded, err := checkMelds(knockMelds, hands[knocker])
	if err != nil {
		return forfeit(knocker, err, "knocking melds")
	}
	knockDeadwood := meld.DeadwoodOf(unmelded)
	if knockDeadwood > e.rules.MaxDeadwood() {
		return forfeit(knocker, nil, "melds %v with %d deadwood", knockMelds, knockDeadwood)
	}
	if err := e.reportMelds(knocker, knockMelds); err != nil {
		return err
	}

	opponentMelds, err := e.players[opponent].GetFinalMelds()
	if err != nil {
		return forfeit(opponent, err, "getFinalMelds")
	}
	if err := e.reportMelds(opponent, opponentMelds); err != nil {
		return err
	}
	opponentUnmelded, err := checkMelds(opponentMelds, hands[opponent])
	if err != nil {
		return forfeit(opponent, err, "final melds")
	}

	deadwood := opponentUnmelded.Cards()
	if knockDeadwood > 0 {
		melds := utils.CloneAll(knockMelds)
		for laid := true; laid; {
			laid = false
			for _, c := range deadwood {
				for i, m := range melds {
					if !meld.IsMeld(card.SetOf(m...).Add(c)) {
						continue
					}
					for seat, p := range e.players {
						if err := p.ReportLayoff(opponent, c, slices.Clone(m)); err != nil {
							return forfeit(seat, err, "reportLayoff")
						}
					}
					e.logger.Debug().Msgf("Seat %d lays off %s on %s", opponent, c, card.FormatList(m))
					deadwood = utils.Without(deadwood, c)
					melds[i] = append(m, c)
					laid = true
					break
				}
				if laid {
					break
				}
			}
		}
	}
	opponentDeadwood := meld.DeadwoodPoints(deadwood)

	switch {
	case knockDeadwood == 0:
		scores[knocker] += e.rules.GinBonus() + opponentDeadwood
		e.logger.Debug().Msgf("Seat %d goes gin against %d deadwood", knocker, opponentDeadwood)
	case knockDeadwood < opponentDeadwood:
		scores[knocker] += opponentDeadwood - knockDeadwood
		e.logger.Debug().Msgf("Seat %d knocks with %d against %d deadwood", knocker, knockDeadwood, opponentDeadwood)
	default:
		scores[opponent] += e.rules.UndercutBonus() + knockDeadwood - opponentDeadwood
		e.logger.Debug().Msgf("Seat %d undercuts with %d against %d deadwood", opponent, opponentDeadwood, knockDeadwood)
	}
	return nil
}

func (e *LocalEngine) reportMelds(seat int, melds [][]card.Card) error {
	for i, p := range e.players {
		if err := p.ReportFinalMelds(seat, utils.CloneAll(melds)); err != nil {
			return forfeit(i, err, "reportFinalMelds")
		}
	}
	return nil
}

// checkMelds returns the cards of hand left unmelded. Every meld must be a
// valid meld of cards still unmelded in hand.
func checkMelds(melds [][]card.Card, hand []card.Card) (card.Set, error) {
	unmelded := card.SetOf(hand...)
	for _, m := range melds {
		s := card.SetOf(m...)
		if s.Len() != len(m) || !meld.IsMeld(s) || unmelded&s != s {
			return 0, fmt.Errorf("illegal meld %s", card.FormatList(m))
		}
		unmelded &^= s
	}
	return unmelded, nil
}
