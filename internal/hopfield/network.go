// Package hopfield implements a discrete Hopfield associative memory.
//
// Patterns are bipolar vectors (+1/-1) folded into a symmetric weight matrix
// with the outer-product Hebbian rule. Recall settles a noisy input by
// sequential in-place threshold updates until the network energy stops
// changing or MaxIterations passes have run.
package hopfield

import (
	"errors"
	"fmt"
	"sync"
)

// MaxIterations caps the number of update passes a single Recall performs.
const MaxIterations = 50

var (
	// ErrInvalidInput is returned when a vector is missing or its length
	// does not match the network size.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyArchive is returned by bulk playback when nothing has been learned.
	ErrEmptyArchive = errors.New("no patterns memorized")
)

// Vector is a flat neuron state. Elements are expected to be +1 or -1;
// other values are accepted but degrade learning and recall.
type Vector []int

// Result is the outcome of a Recall.
type Result struct {
	Vector     Vector `json:"vector"`
	Energy     int64  `json:"energy"`
	Iterations int    `json:"iterations"` // update passes run
	Converged  bool   `json:"converged"`  // energy stopped changing before the cap
}

// Network holds the weight matrix and the archive of learned patterns.
// It is safe for concurrent use: Learn and Reset are exclusive, reads share.
type Network struct {
	mu       sync.RWMutex
	side     int
	n        int
	weights  []int64 // n*n, row-major, diagonal always 0
	patterns []Vector
}

// New creates a zeroed network for a side x side grid.
func New(side int) (*Network, error) {
	if side < 1 {
		return nil, fmt.Errorf("grid side must be positive, got %d", side)
	}
	n := side * side
	return &Network{
		side:     side,
		n:        n,
		weights:  make([]int64, n*n),
		patterns: make([]Vector, 0),
	}, nil
}

// Side returns the grid side length.
func (nw *Network) Side() int { return nw.side }

// Size returns the number of neurons (side squared).
func (nw *Network) Size() int { return nw.n }

func (nw *Network) checkLen(v Vector) error {
	if v == nil {
		return fmt.Errorf("%w: missing vector", ErrInvalidInput)
	}
	if len(v) != nw.n {
		return fmt.Errorf("%w: vector length %d, want %d", ErrInvalidInput, len(v), nw.n)
	}
	return nil
}

// Learn folds pattern into the weights with the unit-rate Hebbian rule
// W[i][j] += p[i]*p[j] for i != j, and appends it to the archive.
// On error nothing is modified.
func (nw *Network) Learn(pattern Vector) error {
	_, err := nw.LearnCount(pattern)
	return err
}

// LearnCount is Learn that also returns the archive size right after
// pattern was added, read under the same lock.
func (nw *Network) LearnCount(pattern Vector) (int, error) {
	if err := nw.checkLen(pattern); err != nil {
		return 0, err
	}
	p := make(Vector, len(pattern))
	copy(p, pattern)

	nw.mu.Lock()
	defer nw.mu.Unlock()

	for i := 0; i < nw.n; i++ {
		row := nw.weights[i*nw.n : (i+1)*nw.n]
		pi := int64(p[i])
		for j := 0; j < nw.n; j++ {
			if i != j {
				row[j] += pi * int64(p[j])
			}
		}
	}
	nw.patterns = append(nw.patterns, p)
	return len(nw.patterns), nil
}

// Recall settles input against the stored weights. Each pass updates neurons
// in index order, in place, so later neurons see earlier updates. The loop
// stops when the energy after a pass equals the energy before it, or after
// MaxIterations passes. Running out of passes is not an error.
func (nw *Network) Recall(input Vector) (Result, error) {
	if err := nw.checkLen(input); err != nil {
		return Result{}, err
	}
	v := make(Vector, len(input))
	copy(v, input)

	nw.mu.RLock()
	defer nw.mu.RUnlock()

	energy := nw.energy(v)
	res := Result{Vector: v}
	for iter := 0; iter < MaxIterations; iter++ {
		nw.pass(v)
		res.Iterations++

		next := nw.energy(v)
		if next == energy {
			res.Converged = true
			break
		}
		energy = next
	}
	res.Energy = energy
	return res, nil
}

// pass runs one sequential in-place update over every neuron.
// A net input of exactly zero resolves to -1.
func (nw *Network) pass(v Vector) {
	for i := 0; i < nw.n; i++ {
		row := nw.weights[i*nw.n : (i+1)*nw.n]
		var net int64
		for j, w := range row {
			net += w * int64(v[j])
		}
		if net > 0 {
			v[i] = 1
		} else {
			v[i] = -1
		}
	}
}

// energy computes -sum_{i<j} W[i][j]*v[i]*v[j]. Caller holds the lock.
func (nw *Network) energy(v Vector) int64 {
	var e int64
	for i := 0; i < nw.n; i++ {
		row := nw.weights[i*nw.n : (i+1)*nw.n]
		vi := int64(v[i])
		for j := i + 1; j < nw.n; j++ {
			e -= row[j] * vi * int64(v[j])
		}
	}
	return e
}

// Energy returns the network energy of v under the current weights.
func (nw *Network) Energy(v Vector) (int64, error) {
	if err := nw.checkLen(v); err != nil {
		return 0, err
	}
	nw.mu.RLock()
	defer nw.mu.RUnlock()
	return nw.energy(v), nil
}

// Weight returns W[i][j]. It panics if i or j is out of range.
func (nw *Network) Weight(i, j int) int64 {
	if i < 0 || i >= nw.n || j < 0 || j >= nw.n {
		panic(fmt.Sprintf("hopfield: weight index (%d, %d) out of range for %d neurons", i, j, nw.n))
	}
	nw.mu.RLock()
	defer nw.mu.RUnlock()
	return nw.weights[i*nw.n+j]
}

// Patterns returns copies of every learned pattern in insertion order.
// An empty network yields an empty, non-nil slice.
func (nw *Network) Patterns() []Vector {
	nw.mu.RLock()
	defer nw.mu.RUnlock()

	out := make([]Vector, len(nw.patterns))
	for i, p := range nw.patterns {
		c := make(Vector, len(p))
		copy(c, p)
		out[i] = c
	}
	return out
}

// Count returns the number of learned patterns.
func (nw *Network) Count() int {
	nw.mu.RLock()
	defer nw.mu.RUnlock()
	return len(nw.patterns)
}

// RecallAll returns every archived pattern reshaped to a grid, for playback.
// It fails with ErrEmptyArchive when nothing has been learned.
func (nw *Network) RecallAll() ([]Grid, error) {
	patterns := nw.Patterns()
	if len(patterns) == 0 {
		return nil, ErrEmptyArchive
	}
	grids := make([]Grid, len(patterns))
	for i, p := range patterns {
		g, err := p.Grid(nw.side)
		if err != nil {
			return nil, fmt.Errorf("reshape pattern %d: %w", i, err)
		}
		grids[i] = g
	}
	return grids, nil
}

// Reset zeroes the weights and empties the archive together.
func (nw *Network) Reset() {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	nw.weights = make([]int64, nw.n*nw.n)
	nw.patterns = make([]Vector, 0)
}
