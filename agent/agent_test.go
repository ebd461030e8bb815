package agent

import (
	"path/filepath"
	"slices"
	"testing"

	"ginrummy/card"
	"ginrummy/experiments/metrics"
	"ginrummy/game"
	"ginrummy/meld"
	"ginrummy/policy"
	"ginrummy/policy/policytest"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// zeroSource makes every random draw the smallest value.
type zeroSource struct{}

func (zeroSource) Uint64() uint64 { return 0 }
func (zeroSource) Seed(uint64)    {}

func started(t *testing.T, hand string, options ...Option) *Agent {
	t.Helper()
	a := New(options...)
	require.NoError(t, a.StartGame(0, 0, card.MustParseList(hand)))
	return a
}

// biasModel scores 1 on the given actions and 0 elsewhere.
func biasModel(t *testing.T, actions ...game.Action) *policy.Handle {
	t.Helper()
	bias := make([]float32, game.NumActions)
	for _, a := range actions {
		bias[a] = 1
	}
	e, err := policy.Load(policytest.Bias(bias), policy.WithLogits(false))
	require.NoError(t, err)
	return policy.Preloaded(e)
}

func TestWillDrawFaceUpCard(t *testing.T) {
	t.Run("face-up card completes a set", func(t *testing.T) {
		a := started(t, "AC AH 6S 6D TC")
		take, err := a.WillDrawFaceUpCard(card.New(0, 2))
		require.NoError(t, err)
		require.True(t, take)
		require.Equal(t, card.SetOf(card.New(0, 2)), a.Observation().TopDiscard)
	})

	t.Run("face-up card forms no meld", func(t *testing.T) {
		a := started(t, "AC 4H 7S TD KC")
		take, err := a.WillDrawFaceUpCard(card.New(7, 1))
		require.NoError(t, err)
		require.False(t, take)
	})

	t.Run("taking implies a meld with the card", func(t *testing.T) {
		rng := rand.New(rand.NewSource(11))
		for i := 0; i < 200; i++ {
			deck := card.Shuffled(rng)
			hand := []card.Card(deck[:10])
			faceUp := deck[10]

			a := New(WithSeed(uint64(i + 1)))
			require.NoError(t, a.StartGame(1, 0, hand))
			take, err := a.WillDrawFaceUpCard(faceUp)
			require.NoError(t, err)
			if !take {
				continue
			}
			found := false
			for _, m := range meld.AllMelds(append(slices.Clone(hand), faceUp)) {
				found = found || slices.Contains(m, faceUp)
			}
			require.True(t, found, "Took %s with %s", faceUp, card.FormatList(hand))
		}
	})
}

func TestGetDiscard(t *testing.T) {
	t.Run("discards the card leaving least deadwood", func(t *testing.T) {
		a := started(t, "AH 2H 3H 4S 5S 6S 7C 8C 9C 8D")
		require.NoError(t, a.ReportDraw(0, card.MustParse("3C")))
		discard, err := a.GetDiscard()
		require.NoError(t, err)
		require.Equal(t, card.MustParse("8D"), discard)
		require.Equal(t, []card.Set{card.SetOf(card.New(2, 0), card.New(7, 3))}, a.history)
	})

	t.Run("repeated draw and discard pairs are skipped", func(t *testing.T) {
		hand := card.MustParseList("AH 2H 3H 4S 5S 6S 7C 8C 9C 8D 3C")
		drawn := card.New(2, 0)
		history := []card.Set{card.SetOf(drawn, card.New(7, 3))}

		candidates := discardCandidates(hand, drawn, card.None, history)
		require.NotContains(t, candidates, card.New(7, 3))
		require.Len(t, candidates, 10)

		r := reasoner{pick: func(int) int { return 0 }}
		require.NotEqual(t, card.New(7, 3), r.chooseDiscard(hand, candidates))
	})

	t.Run("the face-up card just taken is kept", func(t *testing.T) {
		kd := card.MustParse("KD")
		handle := biasModel(t, game.PickUpDiscardAction, game.DiscardAction(kd))
		a := started(t, "AC AH 6S 6D TC 2D 3D 9H JH KS", WithPolicy(handle), WithSeed(4))
		take, err := a.WillDrawFaceUpCard(kd)
		require.NoError(t, err)
		require.True(t, take)

		require.NoError(t, a.ReportDraw(0, kd))
		discard, err := a.GetDiscard()
		require.NoError(t, err)
		require.NotEqual(t, kd, discard, "Policy prefers KD but it was just picked up")
		require.NotContains(t, discardCandidates(a.hand, kd, kd, nil), kd)
	})

	t.Run("never repeats a pair within a hand", func(t *testing.T) {
		rng := rand.New(rand.NewSource(5))
		deck := card.Shuffled(rng)
		a := New(WithSeed(9))
		require.NoError(t, a.StartGame(0, 0, deck[:10]))
		stock := deck[10:]

		seen := make(map[card.Set]bool)
		last := card.None
		for turn := 0; turn < 40 && len(stock) > 0; turn++ {
			drawn := card.None
			if last != card.None {
				take, err := a.WillDrawFaceUpCard(last)
				require.NoError(t, err)
				if take {
					drawn = last
				}
			}
			if drawn == card.None {
				drawn = stock.Pop()
			}
			require.NoError(t, a.ReportDraw(0, drawn))
			discard, err := a.GetDiscard()
			require.NoError(t, err)

			pair := card.SetOf(drawn, discard)
			require.False(t, seen[pair], "Pair %s repeated", pair)
			seen[pair] = true
			require.NoError(t, a.ReportDiscard(0, discard))
			last = discard
		}
	})
}

func TestGetFinalMelds(t *testing.T) {
	t.Run("knocks at the deadwood limit", func(t *testing.T) {
		a := started(t, "AC 2C 3C 4H 5H 6H 7S 8S 9S KD")
		require.NoError(t, a.ReportDraw(0, card.MustParse("TD")))
		discard, err := a.GetDiscard()
		require.NoError(t, err)
		require.NoError(t, a.ReportDiscard(0, discard))

		melds, err := a.GetFinalMelds()
		require.NoError(t, err)
		require.NotNil(t, melds)
		require.Equal(t, meld.MaxDeadwood, meld.DeadwoodPointsOf(melds, a.Hand()))
	})

	t.Run("does not knock above the limit", func(t *testing.T) {
		a := started(t, "AC 2C 3C 4H 5H 6H 7S 8S KS KD")
		melds, err := a.GetFinalMelds()
		require.NoError(t, err)
		require.Nil(t, melds)
	})

	t.Run("always melds after the opponent knocked", func(t *testing.T) {
		a := started(t, "AC 4H 7S TD KC 2D 5S 8H JC QD")
		require.NoError(t, a.ReportFinalMelds(1, [][]card.Card{card.MustParseList("2C 3C 4C")}))

		melds, err := a.GetFinalMelds()
		require.NoError(t, err)
		require.NotNil(t, melds, "Opponent knocked")
		require.Empty(t, melds)
		require.True(t, a.Observation().OpponentKnown.Contains(card.MustParse("3C")))
	})

	t.Run("melds only when allowed", func(t *testing.T) {
		rng := rand.New(rand.NewSource(3))
		for i := 0; i < 200; i++ {
			hand := []card.Card(card.Shuffled(rng)[:10])
			a := New(WithSeed(uint64(i + 1)))
			require.NoError(t, a.StartGame(0, 1, hand))
			melds, err := a.GetFinalMelds()
			require.NoError(t, err)
			if melds != nil {
				require.LessOrEqual(t, meld.DeadwoodPointsOf(melds, hand), meld.MaxDeadwood)
			}
		}
	})
}

func TestObservationTracking(t *testing.T) {
	a := started(t, "AC 2C 3C 4H 5H 6H 7S 8S 9S KD")

	require.NoError(t, a.ReportDraw(1, card.None))
	require.NoError(t, a.ReportDiscard(1, card.MustParse("QH")))
	require.Equal(t, card.SetOf(card.MustParse("QH")), a.Observation().TopDiscard)

	require.NoError(t, a.ReportDraw(1, card.MustParse("QH")))
	obs := a.Observation()
	require.True(t, obs.OpponentKnown.Contains(card.MustParse("QH")), "Opponent picked up QH")
	require.Zero(t, obs.TopDiscard)

	require.NoError(t, a.ReportDiscard(1, card.MustParse("QH")))
	require.False(t, a.Observation().OpponentKnown.Contains(card.MustParse("QH")))

	require.NoError(t, a.ReportDraw(0, card.MustParse("TD")))
	require.NoError(t, a.ReportDiscard(0, card.MustParse("KD")))
	obs = a.Observation()
	require.Equal(t, 10, obs.Hand.Len())
	require.True(t, obs.DeadCards.Contains(card.MustParse("QH")), "QH was buried")
	require.Equal(t, card.SetOf(card.MustParse("KD")), obs.TopDiscard)

	require.NoError(t, a.ReportLayoff(1, card.MustParse("TS"), card.MustParseList("7S 8S 9S")))
	require.NoError(t, a.ReportFinalHand(1, card.MustParseList("2D 3D")))
	obs = a.Observation()
	require.True(t, obs.OpponentKnown.ContainsAll(card.SetOf(card.MustParseList("TS 2D 3D")...)))

	require.NoError(t, a.ReportScores([2]int{12, 30}))
	require.Equal(t, [2]int{12, 30}, a.Scores())
}

func TestProtocolViolations(t *testing.T) {
	t.Run("callbacks before the game", func(t *testing.T) {
		a := New()
		_, err := a.GetDiscard()
		require.ErrorIs(t, err, ErrProtocolViolation)
		_, err = a.WillDrawFaceUpCard(card.MustParse("AC"))
		require.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("discard without a draw", func(t *testing.T) {
		c := metrics.NewCollector()
		a := started(t, "AC 2C 3C", WithMetrics(c))
		d, err := a.GetDiscard()
		require.ErrorIs(t, err, ErrProtocolViolation)
		require.Equal(t, card.None, d, "No card is produced")
		require.Equal(t, 1, c.Complete().Violations)

		var pv *ProtocolViolation
		require.ErrorAs(t, err, &pv)
		require.Equal(t, "GetDiscard", pv.Callback)
	})

	t.Run("inconsistent reports", func(t *testing.T) {
		a := started(t, "AC 2C 3C")
		require.ErrorIs(t, a.ReportDraw(0, card.MustParse("AC")), ErrProtocolViolation, "Already held")
		require.ErrorIs(t, a.ReportDraw(0, card.None), ErrProtocolViolation, "Own draws are known")
		require.ErrorIs(t, a.ReportDiscard(0, card.MustParse("AC")), ErrProtocolViolation, "Nothing drawn")

		require.NoError(t, a.ReportDraw(0, card.MustParse("4C")))
		require.ErrorIs(t, a.ReportDraw(0, card.MustParse("5C")), ErrProtocolViolation, "Drew twice")
		require.ErrorIs(t, a.ReportDiscard(0, card.MustParse("KD")), ErrProtocolViolation, "Not held")
		_, err := a.GetFinalMelds()
		require.ErrorIs(t, err, ErrProtocolViolation, "Still holding the drawn card")
	})

	t.Run("bad deal", func(t *testing.T) {
		a := New()
		require.ErrorIs(t, a.StartGame(2, 0, nil), ErrProtocolViolation)
		require.ErrorIs(t, a.StartGame(0, 0, card.MustParseList("AC AC")), ErrProtocolViolation)
	})
}

func TestPolicyDecisions(t *testing.T) {
	t.Run("zero policy mass falls back to uniform and draws from stock", func(t *testing.T) {
		all := make([]game.Action, 0, game.NumActions)
		for id := 0; id < game.NumActions; id++ {
			if id != int(game.DrawCardAction) && id != int(game.PickUpDiscardAction) {
				all = append(all, game.Action(id))
			}
		}
		c := metrics.NewCollector()
		a := started(t, "AC AH 6S 6D TC", WithPolicy(biasModel(t, all...)), WithSource(zeroSource{}), WithMetrics(c))

		take, err := a.WillDrawFaceUpCard(card.New(0, 2))
		require.NoError(t, err)
		require.False(t, take, "Action 2 draws from the stock")
		m := c.Complete()
		require.Equal(t, 1, m.PolicyDecisions)
		require.Equal(t, 1, m.Fallbacks)
		require.Zero(t, m.RuleDecisions)
	})

	t.Run("policy overrides the rules", func(t *testing.T) {
		a := started(t, "AC 4H 7S TD KC", WithPolicy(biasModel(t, game.PickUpDiscardAction)), WithSeed(1))
		take, err := a.WillDrawFaceUpCard(card.New(7, 1))
		require.NoError(t, err)
		require.True(t, take)
	})

	t.Run("policy discard", func(t *testing.T) {
		kd := card.MustParse("KD")
		a := started(t, "AC 2C 3C 4H 5H 6H 7S 8S 9S 2D", WithPolicy(biasModel(t, game.DiscardAction(kd))), WithSeed(1))
		require.NoError(t, a.ReportDraw(0, kd))
		discard, err := a.GetDiscard()
		require.NoError(t, err)
		require.Equal(t, kd, discard)
		require.Equal(t, []card.Set{kd.Bit()}, a.history, "A self pair is one bit")
	})

	t.Run("knock action discards its card", func(t *testing.T) {
		kd := card.MustParse("KD")
		a := started(t, "AC 2C 3C 4H 5H 6H 7S 8S 9S KD", WithPolicy(biasModel(t, game.KnockAction(kd))), WithSeed(1))
		require.NoError(t, a.ReportDraw(0, card.MustParse("TD")))
		discard, err := a.GetDiscard()
		require.NoError(t, err)
		require.Equal(t, kd, discard)
	})

	t.Run("illegal policy choices are masked", func(t *testing.T) {
		c := metrics.NewCollector()
		qs := card.MustParse("QS")
		a := started(t, "AC 2C 3C 4H 5H 6H 7S 8S 9S KD",
			WithPolicy(biasModel(t, game.DiscardAction(qs), game.DeclareDeadHandAction)), WithSource(zeroSource{}), WithMetrics(c))
		require.NoError(t, a.ReportDraw(0, card.MustParse("TD")))
		discard, err := a.GetDiscard()
		require.NoError(t, err)
		require.Equal(t, card.MustParse("AC"), discard, "Uniform over the legal ids picks the lowest with a zero draw")
		require.Equal(t, 1, c.Complete().Fallbacks)
	})

	t.Run("inference errors fall back to rules", func(t *testing.T) {
		w := make([]float32, game.ObservationSize*game.NumActions)
		for j := 0; j < game.NumActions; j++ {
			w[j] = 1e38
		}
		g := policytest.New().
			Placeholder("input", []int64{-1, game.ObservationSize}).
			Const("w", []int64{game.ObservationSize, game.NumActions}, w).
			Const("big", []int64{}, []float32{1e38}).
			Op("mm", "MatMul", "input", "w").
			Op("inf", "Mul", "mm", "big").
			Op("not_activated_output", "Sub", "inf", "inf")
		e, err := policy.Load(g.Bytes())
		require.NoError(t, err)

		c := metrics.NewCollector()
		a := started(t, "AC AH 6S 6D TC", WithPolicy(policy.Preloaded(e)), WithMetrics(c))
		take, err := a.WillDrawFaceUpCard(card.New(0, 2))
		require.NoError(t, err)
		require.True(t, take, "Rules take the third ace")
		m := c.Complete()
		require.Equal(t, 1, m.InferenceErrors)
		require.Equal(t, 1, m.RuleDecisions)
	})
}

func TestModelLoading(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "saved_graph_file")

	t.Run("required model", func(t *testing.T) {
		a := New(WithPolicy(policy.NewHandle(missing)), WithRequireModel(true))
		err := a.StartGame(0, 0, card.MustParseList("AC AH 6S"))
		require.ErrorIs(t, err, policy.ErrModelLoad)

		_, err = a.WillDrawFaceUpCard(card.MustParse("AS"))
		require.ErrorIs(t, err, policy.ErrModelLoad, "Decisions are refused")
		require.NoError(t, a.ReportDraw(1, card.None), "Reports are still accepted")
	})

	t.Run("optional model falls back to rules", func(t *testing.T) {
		a := New(WithPolicy(policy.NewHandle(missing)))
		require.NoError(t, a.StartGame(0, 0, card.MustParseList("AC AH 6S")))
		take, err := a.WillDrawFaceUpCard(card.MustParse("AS"))
		require.NoError(t, err)
		require.True(t, take)
	})

	t.Run("agents share one engine", func(t *testing.T) {
		h := biasModel(t, game.DrawCardAction)
		a, b := New(WithPolicy(h)), New(WithPolicy(h))
		require.NoError(t, a.StartGame(0, 0, nil))
		require.NoError(t, b.StartGame(1, 0, nil))
		require.Same(t, a.engine, b.engine)
	})
}
