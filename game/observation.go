package game

import "ginrummy/card"

// NumRows is the number of planes in an observation.
const NumRows = 4

// ObservationSize is the flattened length of an observation.
const ObservationSize = NumRows * card.NumCards

// Observation is what the agent sees: four planes over the 52 card ids.
type Observation struct {
	Hand          card.Set
	TopDiscard    card.Set
	DeadCards     card.Set
	OpponentKnown card.Set
}

// Rows returns the planes in network order.
func (o Observation) Rows() [NumRows]card.Set {
	return [NumRows]card.Set{o.Hand, o.TopDiscard, o.DeadCards, o.OpponentKnown}
}

// Matrix returns the observation as a 4x52 {0,1} matrix.
func (o Observation) Matrix() [NumRows][card.NumCards]float32 {
	var m [NumRows][card.NumCards]float32
	for r, row := range o.Rows() {
		for _, c := range row.Cards() {
			m[r][c.ID()] = 1
		}
	}
	return m
}

// Vector returns the matrix flattened row-major.
func (o Observation) Vector() []float32 {
	v := make([]float32, 0, ObservationSize)
	m := o.Matrix()
	for r := range m {
		v = append(v, m[r][:]...)
	}
	return v
}

// ObservationFromVector decodes a flattened observation. Any non-zero entry is a set bit.
func ObservationFromVector(v []float32) Observation {
	var rows [NumRows]card.Set
	for i, x := range v {
		if i >= ObservationSize {
			break
		}
		if x != 0 {
			rows[i/card.NumCards] = rows[i/card.NumCards].Add(card.FromID(i % card.NumCards))
		}
	}
	return Observation{Hand: rows[0], TopDiscard: rows[1], DeadCards: rows[2], OpponentKnown: rows[3]}
}
