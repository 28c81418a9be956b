// Package service wires the Hopfield network to its journal and loggers.
// The HTTP and MCP surfaces both call into a single Service, which owns the
// one network instance for the process.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/hopfield/internal/history"
	"github.com/nvandessel/hopfield/internal/hopfield"
	"github.com/nvandessel/hopfield/internal/logging"
)

// RecallResult is a settled grid and its energy.
type RecallResult struct {
	Grid       hopfield.Grid `json:"grid"`
	Energy     int64         `json:"energy"`
	Iterations int           `json:"iterations"`
	Converged  bool          `json:"converged"`
}

// Service orchestrates engine operations. Journal and trace failures are
// logged and never returned, so they cannot mask a completed mutation.
type Service struct {
	net     *hopfield.Network
	journal *history.Journal // may be nil
	logger  *slog.Logger
	tracer  *logging.TraceLogger // may be nil
}

// Options configures a Service. Only Network is required.
type Options struct {
	Network *hopfield.Network
	Journal *history.Journal
	Logger  *slog.Logger
	Tracer  *logging.TraceLogger
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Network == nil {
		return nil, fmt.Errorf("network is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		net:     opts.Network,
		journal: opts.Journal,
		logger:  logger,
		tracer:  opts.Tracer,
	}, nil
}

// Side returns the grid side length of the underlying network.
func (s *Service) Side() int { return s.net.Side() }

// Count returns the number of memorized patterns.
func (s *Service) Count() int { return s.net.Count() }

// Memorize flattens grid and learns it.
func (s *Service) Memorize(ctx context.Context, grid hopfield.Grid) error {
	start := time.Now()
	v, err := grid.Flatten(s.net.Side())
	var count int
	if err == nil {
		count, err = s.net.LearnCount(v)
	} else {
		count = s.net.Count()
	}

	s.record(ctx, history.Event{Op: history.OpLearn, Patterns: count}, err)
	if err != nil {
		s.logger.Debug("memorize rejected", "error", err)
		return err
	}

	s.logger.Info("pattern memorized", "patterns", count, "duration", time.Since(start))
	s.tracer.Log(map[string]any{"op": history.OpLearn, "patterns": count, "vector": v})
	return nil
}

// Recall flattens grid, settles it, and reshapes the result.
func (s *Service) Recall(ctx context.Context, grid hopfield.Grid) (RecallResult, error) {
	start := time.Now()
	v, err := grid.Flatten(s.net.Side())
	var res hopfield.Result
	if err == nil {
		res, err = s.net.Recall(v)
	}
	var out RecallResult
	if err == nil {
		out.Grid, err = res.Vector.Grid(s.net.Side())
	}

	ev := history.Event{Op: history.OpRecall, Patterns: s.net.Count()}
	if err == nil {
		energy := res.Energy
		ev.Energy = &energy
		ev.Iterations = res.Iterations
		ev.Converged = res.Converged
	}
	s.record(ctx, ev, err)
	if err != nil {
		s.logger.Debug("recall rejected", "error", err)
		return RecallResult{}, err
	}

	out.Energy = res.Energy
	out.Iterations = res.Iterations
	out.Converged = res.Converged

	s.logger.Debug("recall settled",
		"energy", res.Energy, "iterations", res.Iterations,
		"converged", res.Converged, "duration", time.Since(start))
	s.tracer.Log(map[string]any{
		"op":         history.OpRecall,
		"energy":     res.Energy,
		"iterations": res.Iterations,
		"converged":  res.Converged,
		"vector":     res.Vector,
	})
	return out, nil
}

// Patterns enumerates memorized patterns as grids, in learning order. Unlike
// RecallAll, an empty archive is not an error and nothing is journaled.
func (s *Service) Patterns() ([]hopfield.Grid, error) {
	vectors := s.net.Patterns()
	grids := make([]hopfield.Grid, len(vectors))
	for i, v := range vectors {
		g, err := v.Grid(s.net.Side())
		if err != nil {
			return nil, fmt.Errorf("reshape pattern %d: %w", i, err)
		}
		grids[i] = g
	}
	return grids, nil
}

// RecallAll returns every memorized pattern as a grid, in learning order.
// It returns hopfield.ErrEmptyArchive when nothing has been memorized.
func (s *Service) RecallAll(ctx context.Context) ([]hopfield.Grid, error) {
	grids, err := s.net.RecallAll()
	s.record(ctx, history.Event{Op: history.OpRecallAll, Patterns: len(grids)}, err)
	if err != nil {
		if errors.Is(err, hopfield.ErrEmptyArchive) {
			s.logger.Debug("playback requested with empty archive")
		}
		return nil, err
	}
	return grids, nil
}

// Clear resets the weights and the archive together.
func (s *Service) Clear(ctx context.Context) {
	before := s.net.Count()
	s.net.Reset()
	s.record(ctx, history.Event{Op: history.OpReset}, nil)
	s.logger.Info("memory cleared", "patterns_dropped", before)
	s.tracer.Log(map[string]any{"op": history.OpReset, "patterns_dropped": before})
}

// History returns recent journal events, newest first, and aggregate stats.
// Without a journal it returns empty results.
func (s *Service) History(ctx context.Context, limit int) ([]history.Event, history.Stats, error) {
	if s.journal == nil {
		return []history.Event{}, history.Stats{Counts: map[string]int{}}, nil
	}
	events, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, history.Stats{}, fmt.Errorf("loading history: %w", err)
	}
	stats, err := s.journal.Stats(ctx)
	if err != nil {
		return nil, history.Stats{}, fmt.Errorf("loading history stats: %w", err)
	}
	return events, stats, nil
}

func (s *Service) record(ctx context.Context, ev history.Event, opErr error) {
	if s.journal == nil {
		return
	}
	if opErr != nil {
		ev.Error = opErr.Error()
	}
	if _, err := s.journal.Record(ctx, ev); err != nil {
		s.logger.Warn("failed to journal operation", "op", ev.Op, "error", err)
	}
}
