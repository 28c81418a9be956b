package hopfield

import (
	"fmt"
	"math/rand"
)

// Noise returns a copy of v with each cell negated independently with
// probability p. v is not modified.
func (v Vector) Noise(rng *rand.Rand, p float64) (Vector, error) {
	if rng == nil {
		return nil, fmt.Errorf("noise: rng is required")
	}
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: noise probability %v outside [0, 1]", ErrInvalidInput, p)
	}
	out := make(Vector, len(v))
	for i, cell := range v {
		if rng.Float64() < p {
			cell = -cell
		}
		out[i] = cell
	}
	return out, nil
}

// Noise is the grid form of Vector.Noise. Rows may not be ragged.
func (g Grid) Noise(rng *rand.Rand, p float64) (Grid, error) {
	side := len(g)
	v, err := g.Flatten(side)
	if err != nil {
		return nil, err
	}
	noisy, err := v.Noise(rng, p)
	if err != nil {
		return nil, err
	}
	return noisy.Grid(side)
}
