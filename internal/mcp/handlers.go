package mcp

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/hopfield/internal/hopfield"
	"github.com/nvandessel/hopfield/internal/ratelimit"
)

const (
	patternsResourceURI = "hopfield://patterns"

	// defaultNoise is the flip probability used when a caller gives none.
	defaultNoise = 0.2
)

// registerTools registers all hopfield MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hopfield_learn",
		Description: "Memorize a square +1/-1 grid by Hebbian learning",
	}, s.handleLearn)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hopfield_recall",
		Description: "Reconstruct a stored pattern from a noisy grid by energy minimization",
	}, s.handleRecall)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hopfield_recall_all",
		Description: "Return every memorized pattern for playback; fails when memory is empty",
	}, s.handleRecallAll)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hopfield_patterns",
		Description: "Report how many patterns are memorized and the grid size",
	}, s.handlePatterns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hopfield_reset",
		Description: "Clear the weight matrix and all memorized patterns",
	}, s.handleReset)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hopfield_noise",
		Description: "Flip each cell of a grid with a given probability, producing a noisy input for hopfield_recall",
	}, s.handleNoise)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hopfield_history",
		Description: "List recent learn/recall/reset operations with energies and pass counts",
	}, s.handleHistory)
}

// registerResources registers MCP resources.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         patternsResourceURI,
		Name:        "hopfield-patterns",
		Description: "Memorized patterns drawn as text grids ('#' = +1, '.' = -1).",
		MIMEType:    "text/markdown",
	}, s.handlePatternsResource)
}

func (s *Server) handleLearn(ctx context.Context, req *sdk.CallToolRequest, args LearnInput) (*sdk.CallToolResult, LearnOutput, error) {
	if err := ratelimit.CheckLimit(s.limiters, ratelimit.OpLearn, clientKey); err != nil {
		return nil, LearnOutput{}, err
	}
	if err := s.svc.Memorize(ctx, args.Grid); err != nil {
		return nil, LearnOutput{}, fmt.Errorf("failed to memorize pattern: %w", err)
	}
	return nil, LearnOutput{
		Patterns: s.svc.Count(),
		Message:  "Pattern memorized successfully",
	}, nil
}

func (s *Server) handleRecall(ctx context.Context, req *sdk.CallToolRequest, args RecallInput) (*sdk.CallToolResult, RecallOutput, error) {
	if err := ratelimit.CheckLimit(s.limiters, ratelimit.OpRecall, clientKey); err != nil {
		return nil, RecallOutput{}, err
	}
	res, err := s.svc.Recall(ctx, args.Grid)
	if err != nil {
		return nil, RecallOutput{}, fmt.Errorf("failed to recall pattern: %w", err)
	}
	return nil, RecallOutput{
		Grid:       res.Grid,
		Energy:     res.Energy,
		Iterations: res.Iterations,
		Converged:  res.Converged,
	}, nil
}

func (s *Server) handleRecallAll(ctx context.Context, req *sdk.CallToolRequest, _ EmptyInput) (*sdk.CallToolResult, RecallAllOutput, error) {
	if err := ratelimit.CheckLimit(s.limiters, ratelimit.OpRecallAll, clientKey); err != nil {
		return nil, RecallAllOutput{}, err
	}
	grids, err := s.svc.RecallAll(ctx)
	if err != nil {
		return nil, RecallAllOutput{}, err
	}
	return nil, RecallAllOutput{Grids: grids, Count: len(grids)}, nil
}

func (s *Server) handlePatterns(ctx context.Context, req *sdk.CallToolRequest, _ EmptyInput) (*sdk.CallToolResult, PatternsOutput, error) {
	if err := ratelimit.CheckLimit(s.limiters, ratelimit.OpPatterns, clientKey); err != nil {
		return nil, PatternsOutput{}, err
	}
	side := s.svc.Side()
	return nil, PatternsOutput{
		Patterns: s.svc.Count(),
		Side:     side,
		Neurons:  side * side,
	}, nil
}

func (s *Server) handleReset(ctx context.Context, req *sdk.CallToolRequest, _ EmptyInput) (*sdk.CallToolResult, ResetOutput, error) {
	if err := ratelimit.CheckLimit(s.limiters, ratelimit.OpReset, clientKey); err != nil {
		return nil, ResetOutput{}, err
	}
	s.svc.Clear(ctx)
	return nil, ResetOutput{Message: "Memory cleared successfully"}, nil
}

func (s *Server) handleNoise(ctx context.Context, req *sdk.CallToolRequest, args NoiseInput) (*sdk.CallToolResult, NoiseOutput, error) {
	if err := ratelimit.CheckLimit(s.limiters, ratelimit.OpNoise, clientKey); err != nil {
		return nil, NoiseOutput{}, err
	}
	if side := s.svc.Side(); len(args.Grid) != side {
		return nil, NoiseOutput{}, fmt.Errorf("%w: grid has %d rows, want %d", hopfield.ErrInvalidInput, len(args.Grid), side)
	}
	p := args.Probability
	if p == 0 {
		p = defaultNoise
	}
	seed := time.Now().UnixNano()
	if args.Seed != nil {
		seed = *args.Seed
	}

	noisy, err := args.Grid.Noise(rand.New(rand.NewSource(seed)), p)
	if err != nil {
		return nil, NoiseOutput{}, fmt.Errorf("failed to add noise: %w", err)
	}
	flipped := 0
	for r, row := range noisy {
		for c, cell := range row {
			if cell != args.Grid[r][c] {
				flipped++
			}
		}
	}
	return nil, NoiseOutput{Grid: noisy, Flipped: flipped, Seed: seed}, nil
}

func (s *Server) handleHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (*sdk.CallToolResult, HistoryOutput, error) {
	if err := ratelimit.CheckLimit(s.limiters, ratelimit.OpHistory, clientKey); err != nil {
		return nil, HistoryOutput{}, err
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}
	events, stats, err := s.svc.History(ctx, limit)
	if err != nil {
		return nil, HistoryOutput{}, err
	}

	out := HistoryOutput{
		Events:         make([]HistoryEvent, 0, len(events)),
		Count:          len(events),
		OpCounts:       stats.Counts,
		Failures:       stats.Failures,
		MeanIterations: stats.MeanIterations,
		ConvergedRate:  stats.ConvergedRate,
	}
	for _, e := range events {
		out.Events = append(out.Events, HistoryEvent{
			ID:         e.ID,
			Op:         e.Op,
			At:         e.At.Format(time.RFC3339Nano),
			Patterns:   e.Patterns,
			Energy:     e.Energy,
			Iterations: e.Iterations,
			Converged:  e.Converged,
			Error:      e.Error,
		})
	}
	return nil, out, nil
}

// handlePatternsResource renders memorized patterns as markdown code blocks.
func (s *Server) handlePatternsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	var sb strings.Builder
	sb.WriteString("# Memorized Patterns\n\n")

	grids, err := s.svc.Patterns()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate patterns: %w", err)
	}
	if len(grids) == 0 {
		sb.WriteString("No patterns memorized yet. Store one with `hopfield_learn`.\n")
	} else {
		for i, g := range grids {
			var buf bytes.Buffer
			if err := hopfield.FormatText(&buf, g); err != nil {
				return nil, fmt.Errorf("failed to render pattern %d: %w", i, err)
			}
			fmt.Fprintf(&sb, "## Pattern %d\n\n```\n%s```\n\n", i+1, buf.String())
		}
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      patternsResourceURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}
