package mcp

import "github.com/nvandessel/hopfield/internal/hopfield"

// LearnInput defines the input for hopfield_learn.
type LearnInput struct {
	Grid hopfield.Grid `json:"grid" jsonschema:"Square grid of +1/-1 cells, one inner array per row"`
}

// LearnOutput defines the output for hopfield_learn.
type LearnOutput struct {
	Patterns int    `json:"patterns" jsonschema:"Number of memorized patterns after this call"`
	Message  string `json:"message"`
}

// RecallInput defines the input for hopfield_recall.
type RecallInput struct {
	Grid hopfield.Grid `json:"grid" jsonschema:"Noisy or partial square grid of +1/-1 cells to reconstruct"`
}

// RecallOutput defines the output for hopfield_recall.
type RecallOutput struct {
	Grid       hopfield.Grid `json:"grid" jsonschema:"Settled grid"`
	Energy     int64         `json:"energy" jsonschema:"Network energy of the settled grid"`
	Iterations int           `json:"iterations" jsonschema:"Update passes run (at most 50)"`
	Converged  bool          `json:"converged" jsonschema:"Whether the energy stopped changing before the pass limit"`
}

// NoiseInput defines the input for hopfield_noise.
type NoiseInput struct {
	Grid        hopfield.Grid `json:"grid" jsonschema:"Square grid of +1/-1 cells to corrupt"`
	Probability float64       `json:"probability,omitempty" jsonschema:"Chance of flipping each cell, between 0 and 1 (default 0.2)"`
	Seed        *int64        `json:"seed,omitempty" jsonschema:"Random seed for a repeatable result (default time-based)"`
}

// NoiseOutput defines the output for hopfield_noise.
type NoiseOutput struct {
	Grid    hopfield.Grid `json:"grid" jsonschema:"Corrupted copy of the input grid"`
	Flipped int           `json:"flipped" jsonschema:"Number of cells that changed sign"`
	Seed    int64         `json:"seed" jsonschema:"Seed used, to reproduce this result"`
}

// EmptyInput is used by tools that take no arguments.
type EmptyInput struct{}

// RecallAllOutput defines the output for hopfield_recall_all.
type RecallAllOutput struct {
	Grids []hopfield.Grid `json:"grids" jsonschema:"Every memorized pattern in learning order"`
	Count int             `json:"count"`
}

// PatternsOutput defines the output for hopfield_patterns.
type PatternsOutput struct {
	Patterns int `json:"patterns" jsonschema:"Number of memorized patterns"`
	Side     int `json:"side" jsonschema:"Grid side length"`
	Neurons  int `json:"neurons" jsonschema:"Number of neurons (side squared)"`
}

// ResetOutput defines the output for hopfield_reset.
type ResetOutput struct {
	Message string `json:"message"`
}

// HistoryInput defines the input for hopfield_history.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum events to return, newest first (default 20)"`
}

// HistoryEvent is a journal entry as seen by MCP clients.
type HistoryEvent struct {
	ID         string `json:"id"`
	Op         string `json:"op"`
	At         string `json:"at" jsonschema:"RFC3339 timestamp"`
	Patterns   int    `json:"patterns"`
	Energy     *int64 `json:"energy,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
	Converged  bool   `json:"converged,omitempty"`
	Error      string `json:"error,omitempty"`
}

// HistoryOutput defines the output for hopfield_history.
type HistoryOutput struct {
	Events         []HistoryEvent `json:"events"`
	Count          int            `json:"count"`
	OpCounts       map[string]int `json:"op_counts" jsonschema:"Events recorded per operation"`
	Failures       int            `json:"failures"`
	MeanIterations float64        `json:"mean_iterations" jsonschema:"Mean update passes over successful recalls"`
	ConvergedRate  float64        `json:"converged_rate" jsonschema:"Fraction of successful recalls that settled before the pass cap"`
}
