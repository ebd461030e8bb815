package agent

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"ginrummy/card"
	"ginrummy/experiments/metrics"
	"ginrummy/game"
	"ginrummy/policy"
	"ginrummy/selector"
	"ginrummy/utils"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

type Option func(a *Agent)

// WithPolicy shares a policy model between agents. Without it the agent plays
// by the rules only.
func WithPolicy(handle *policy.Handle) Option {
	return func(a *Agent) {
		a.handle = handle
	}
}

func WithSeed(seed uint64) Option {
	return func(a *Agent) {
		a.seed = seed
	}
}

// WithSource fixes the random source, overriding the seed.
func WithSource(src rand.Source) Option {
	return func(a *Agent) {
		a.source = src
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(a *Agent) {
		if collector != nil {
			a.metrics = collector
		}
	}
}

// WithRequireModel makes a model that cannot be loaded fatal instead of
// falling back to rules-based play.
func WithRequireModel(require bool) Option {
	return func(a *Agent) {
		a.requireModel = require
	}
}

func WithName(name string) Option {
	return func(a *Agent) {
		if name != "" {
			a.name = name
		}
	}
}

// Agent is the NFSP player. It samples draw and discard decisions from the
// shared average policy when one is loaded and otherwise plays from melds and
// deadwood. One agent plays one seat of one match at a time.
type Agent struct {
	name         string
	handle       *policy.Handle
	requireModel bool
	seed         uint64
	source       rand.Source
	selector     *selector.Selector
	rules        reasoner
	metrics      metrics.Collector
	logger       zerolog.Logger

	engine  *policy.Engine
	loadErr error
	loaded  bool

	// Episode state
	started         bool
	seat            int
	starter         int
	hand            []card.Card
	encoder         game.Encoder
	opponentKnocked bool
	faceUp          card.Card
	drawn           card.Card
	mustDiscard     bool
	history         []card.Set // (drawn, discard) bitstrings
	scores          [2]int
}

var _ Player = (*Agent)(nil)

func New(options ...Option) *Agent {
	a := &Agent{ // Default values
		name:    "nfsp",
		metrics: metrics.NewDummyCollector(),
		faceUp:  card.None,
		drawn:   card.None,
	}
	for _, option := range options {
		option(a)
	}
	var selectorOptions []selector.Option
	if a.source != nil {
		selectorOptions = append(selectorOptions, selector.WithSource(a.source))
	}
	a.selector = selector.New(a.seed, selectorOptions...)
	a.rules = reasoner{pick: a.selector.Pick}
	a.logger = log.With().Str("agent", a.name).Logger()
	return a
}

func (a *Agent) Name() string { return a.name }

// Hand returns a copy of the cards held.
func (a *Agent) Hand() []card.Card { return slices.Clone(a.hand) }

// Observation returns the current encoded observation.
func (a *Agent) Observation() game.Observation { return a.encoder.Snapshot() }

func (a *Agent) Scores() [2]int { return a.scores }

// Metrics returns the decision counts so far.
func (a *Agent) Metrics() metrics.DecisionMetric { return a.metrics.Complete() }

func (a *Agent) StartGame(seat, starter int, hand []card.Card) error {
	if seat != 0 && seat != 1 || starter != 0 && starter != 1 {
		return a.violate(violation("StartGame", "seats %d and %d", seat, starter))
	}
	var dealt card.Set
	for _, c := range hand {
		if !c.Valid() || dealt.Contains(c) {
			return a.violate(violation("StartGame", "invalid hand %s", card.FormatList(hand)))
		}
		dealt = dealt.Add(c)
	}

	a.started = true
	a.seat, a.starter = seat, starter
	a.hand = slices.Clone(hand)
	a.encoder.InitEpisode(hand)
	a.opponentKnocked = false
	a.faceUp, a.drawn = card.None, card.None
	a.mustDiscard = false
	a.history = nil
	a.logger = log.With().Str("agent", a.name).Int("seat", seat).Logger()
	a.logger.Debug().Msgf("Dealt %s, seat %d starts", card.FormatList(hand), starter)

	a.loadPolicy()
	if a.loadErr != nil && a.requireModel {
		return a.loadErr
	}
	return nil
}

// loadPolicy fetches the shared model the first time a game starts.
func (a *Agent) loadPolicy() {
	if a.loaded || a.handle == nil {
		return
	}
	a.loaded = true
	a.engine, a.loadErr = a.handle.Get()
	switch {
	case a.loadErr == nil:
		a.logger.Debug().Msgf("Playing with the policy at %s", a.handle.Path())
	case !a.requireModel:
		a.logger.Warn().Msgf("Playing by the rules only: %v", a.loadErr)
	}
}

func (a *Agent) WillDrawFaceUpCard(c card.Card) (bool, error) {
	if err := a.decisionReady("WillDrawFaceUpCard"); err != nil {
		return false, err
	}
	if !c.Valid() || slices.Contains(a.hand, c) {
		return false, a.violate(violation("WillDrawFaceUpCard", "offered %s", c))
	}
	if a.mustDiscard {
		return false, a.violate(violation("WillDrawFaceUpCard", "offered a card before discarding"))
	}
	a.faceUp = c
	a.encoder.SetTopDiscard(c)

	if action, ok := a.sample(game.DrawMask()); ok {
		return action == game.PickUpDiscardAction, nil
	}
	a.metrics.AddRuleDecision()
	return willDrawFaceUp(a.hand, c), nil
}

func (a *Agent) ReportDraw(seat int, c card.Card) error {
	if err := a.ready("ReportDraw"); err != nil {
		return err
	}
	switch {
	case seat != 0 && seat != 1:
		return a.violate(violation("ReportDraw", "seat %d", seat))
	case seat != a.seat:
		if c.Valid() {
			if slices.Contains(a.hand, c) {
				return a.violate(violation("ReportDraw", "opponent drew %s from our hand", c))
			}
			a.encoder.MarkOpponentKnown(c)
			a.encoder.ClearTopDiscard()
		}
		return nil
	case a.mustDiscard:
		return a.violate(violation("ReportDraw", "drew twice without discarding"))
	case !c.Valid():
		return a.violate(violation("ReportDraw", "own draw is unknown"))
	}
	if err := a.encoder.AddToHand(c); err != nil {
		return a.violate(violation("ReportDraw", "%v", err))
	}
	a.hand = append(a.hand, c)
	a.drawn = c
	a.mustDiscard = true
	return nil
}

func (a *Agent) GetDiscard() (card.Card, error) {
	if err := a.decisionReady("GetDiscard"); err != nil {
		return card.None, err
	}
	if !a.mustDiscard {
		return card.None, a.violate(violation("GetDiscard", "no draw reported this turn"))
	}

	candidates := discardCandidates(a.hand, a.drawn, a.faceUp, a.history)
	if len(candidates) == 0 {
		// Every pair was played already; only the face-up rule still binds.
		candidates = discardCandidates(a.hand, a.drawn, a.faceUp, nil)
	}

	discard := card.None
	handSet := card.SetOf(a.hand...)
	if action, ok := a.sample(game.DiscardMask(handSet, candidates)); ok {
		c, err := game.ResolveDiscard(action, handSet, candidates)
		if err == nil {
			discard = c
		} else {
			a.logger.Warn().Msgf("Ignoring policy action %s: %v", action, err)
		}
	}
	if discard == card.None {
		a.metrics.AddRuleDecision()
		discard = a.rules.chooseDiscard(a.hand, candidates)
	}
	a.history = append(a.history, card.SetOf(a.drawn, discard))
	a.logger.Debug().Msgf("Drew %s, discarding %s", a.drawn, discard)
	return discard, nil
}

func (a *Agent) ReportDiscard(seat int, c card.Card) error {
	if err := a.ready("ReportDiscard"); err != nil {
		return err
	}
	if !c.Valid() {
		return a.violate(violation("ReportDiscard", "discarded %s", c))
	}
	switch {
	case seat != 0 && seat != 1:
		return a.violate(violation("ReportDiscard", "seat %d", seat))
	case seat != a.seat:
		if slices.Contains(a.hand, c) {
			return a.violate(violation("ReportDiscard", "opponent discarded %s from our hand", c))
		}
		a.encoder.ForgetOpponentKnown(c)
		a.encoder.SetTopDiscard(c)
		return nil
	case !a.mustDiscard:
		return a.violate(violation("ReportDiscard", "discard without a draw"))
	}
	if err := a.encoder.RemoveFromHand(c); err != nil {
		return a.violate(violation("ReportDiscard", "%v", err))
	}
	a.hand = utils.Without(a.hand, c)
	a.encoder.SetTopDiscard(c)
	a.mustDiscard = false
	a.faceUp = card.None
	return nil
}

func (a *Agent) GetFinalMelds() ([][]card.Card, error) {
	if err := a.decisionReady("GetFinalMelds"); err != nil {
		return nil, err
	}
	if a.mustDiscard {
		return nil, a.violate(violation("GetFinalMelds", "asked for melds before discarding"))
	}
	melds := a.rules.finalMelds(a.hand, a.opponentKnocked)
	if melds != nil {
		a.logger.Debug().Msgf("Melding %v", melds)
	}
	return melds, nil
}

func (a *Agent) ReportFinalMelds(seat int, melds [][]card.Card) error {
	if err := a.ready("ReportFinalMelds"); err != nil {
		return err
	}
	if seat == a.seat {
		return nil
	}
	a.opponentKnocked = true
	for _, m := range melds {
		a.markOpponentCards(m)
	}
	return nil
}

func (a *Agent) ReportScores(scores [2]int) error {
	a.scores = scores
	a.logger.Debug().Msgf("Scores %d:%d", scores[0], scores[1])
	return nil
}

func (a *Agent) ReportLayoff(seat int, c card.Card, meld []card.Card) error {
	if err := a.ready("ReportLayoff"); err != nil {
		return err
	}
	if seat != a.seat {
		a.markOpponentCards([]card.Card{c})
	}
	return nil
}

func (a *Agent) ReportFinalHand(seat int, hand []card.Card) error {
	if err := a.ready("ReportFinalHand"); err != nil {
		return err
	}
	if seat != a.seat {
		a.markOpponentCards(hand)
	}
	return nil
}

func (a *Agent) markOpponentCards(cards []card.Card) {
	for _, c := range cards {
		if c.Valid() && !slices.Contains(a.hand, c) {
			a.encoder.MarkOpponentKnown(c)
		}
	}
}

// sample asks the policy for an action among legal. ok is false when no
// policy is loaded or inference failed, and the rules decide instead.
func (a *Agent) sample(legal []game.Action) (game.Action, bool) {
	if a.engine == nil || len(legal) == 0 {
		return 0, false
	}
	start := time.Now()
	scores, err := a.engine.Infer(a.encoder.Snapshot())
	if err != nil {
		a.metrics.AddInferenceError()
		a.logger.Warn().Msgf("Falling back to rules: %v", err)
		return 0, false
	}
	id, fallback := a.selector.Choose(scores, game.Ints(legal))
	if fallback {
		a.metrics.AddFallback()
	}
	a.metrics.AddPolicyDecision(time.Since(start))
	return game.Action(id), true
}

// ready rejects callbacks before a game started.
func (a *Agent) ready(callback string) error {
	if !a.started {
		return a.violate(violation(callback, "no game started"))
	}
	return nil
}

// decisionReady also refuses decisions when the required model is missing.
func (a *Agent) decisionReady(callback string) error {
	if err := a.ready(callback); err != nil {
		return err
	}
	if a.requireModel && a.loadErr != nil {
		return fmt.Errorf("%s: %w", callback, a.loadErr)
	}
	return nil
}

func (a *Agent) violate(err error) error {
	var pv *ProtocolViolation
	if errors.As(err, &pv) {
		a.metrics.AddViolation()
		a.logger.Warn().Msg(err.Error())
	}
	return err
}
