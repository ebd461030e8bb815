package selector

import (
	"time"

	"golang.org/x/exp/rand"
)

// MinMass is the legal probability mass under which the scores are ignored
// and the legal actions are played uniformly.
const MinMass = 1e-5

// RemoveIllegal keeps the scores of the legal ids and renormalizes them into
// a distribution. Illegal ids get probability zero.
func RemoveIllegal(scores []float64, legal []int) []float64 {
	probs, _ := removeIllegal(scores, legal)
	return probs
}

func removeIllegal(scores []float64, legal []int) ([]float64, bool) {
	if len(legal) == 0 {
		panic("no legal actions")
	}
	probs := make([]float64, len(scores))
	total := 0.0
	for _, id := range legal {
		probs[id] = scores[id]
		total += scores[id]
	}
	if total < MinMass {
		uniform := 1.0 / float64(len(legal))
		for _, id := range legal {
			probs[id] = uniform
		}
		return probs, true
	}
	for _, id := range legal {
		probs[id] /= total
	}
	return probs, false
}

type Option func(s *Selector)

// WithSource replaces the seeded generator, for example with a fixed source in tests.
func WithSource(src rand.Source) Option {
	return func(s *Selector) {
		if src != nil {
			s.rng = rand.New(src)
		}
	}
}

// Selector samples actions with its own generator. Not safe for concurrent
// use; every agent owns one.
type Selector struct {
	rng *rand.Rand
}

// New returns a selector seeded with seed. A zero seed uses the clock.
func New(seed uint64, options ...Option) *Selector {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s := &Selector{rng: rand.New(rand.NewSource(seed))}
	for _, option := range options {
		option(s)
	}
	return s
}

// Sample draws an id from probs by walking the cumulative distribution in
// ascending id order.
func (s *Selector) Sample(probs []float64) int {
	sampled := s.rng.Float64()
	cumulative := 0.0
	last := -1
	for id, p := range probs {
		if p <= 0 {
			continue
		}
		last = id
		cumulative += p
		if sampled < cumulative {
			return id
		}
	}
	if last < 0 {
		panic("sampling from an empty distribution")
	}
	return last // rounding
}

// Choose masks, renormalizes and samples. fallback reports that the legal ids
// had no mass and were played uniformly.
func (s *Selector) Choose(scores []float64, legal []int) (action int, fallback bool) {
	probs, fallback := removeIllegal(scores, legal)
	return s.Sample(probs), fallback
}

// Pick returns a uniform index in [0,n).
func (s *Selector) Pick(n int) int {
	return s.rng.Intn(n)
}
