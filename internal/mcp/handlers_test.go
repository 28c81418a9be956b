package mcp

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/hopfield/internal/history"
	"github.com/nvandessel/hopfield/internal/hopfield"
	"github.com/nvandessel/hopfield/internal/ratelimit"
	"github.com/nvandessel/hopfield/internal/service"
)

func setupTestServer(t *testing.T, limiters ratelimit.OperationLimiters) *Server {
	t.Helper()
	nw, err := hopfield.New(2)
	if err != nil {
		t.Fatalf("hopfield.New: %v", err)
	}
	j, err := history.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	svc, err := service.New(service.Options{Network: nw, Journal: j})
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}

	server, err := NewServer(&Config{
		Name:     "test-server",
		Version:  "v1.0.0",
		Service:  svc,
		Limiters: limiters,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server
}

func TestNewServer(t *testing.T) {
	server := setupTestServer(t, nil)
	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.svc == nil {
		t.Error("Server.svc is nil")
	}
}

func TestNewServer_RequiresService(t *testing.T) {
	if _, err := NewServer(&Config{Name: "x"}); err == nil {
		t.Error("expected error without service")
	}
}

func TestHandleLearnRecall(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}
	stored := hopfield.Grid{{1, -1}, {1, -1}}

	result, out, err := server.handleLearn(ctx, req, LearnInput{Grid: stored})
	if err != nil {
		t.Fatalf("handleLearn failed: %v", err)
	}
	if result != nil {
		t.Error("Expected nil result (SDK auto-populates)")
	}
	if out.Patterns != 1 {
		t.Errorf("Patterns = %d, want 1", out.Patterns)
	}

	_, rec, err := server.handleRecall(ctx, req, RecallInput{Grid: hopfield.Grid{{-1, -1}, {1, -1}}})
	if err != nil {
		t.Fatalf("handleRecall failed: %v", err)
	}
	if !reflect.DeepEqual(rec.Grid, stored) {
		t.Errorf("Grid = %v, want %v", rec.Grid, stored)
	}
	if rec.Energy != -6 || !rec.Converged || rec.Iterations != 2 {
		t.Errorf("recall = %+v, want energy -6 converged in 2 passes", rec)
	}
}

func TestHandleLearn_InvalidGrid(t *testing.T) {
	server := setupTestServer(t, nil)
	_, _, err := server.handleLearn(context.Background(), &sdk.CallToolRequest{}, LearnInput{Grid: hopfield.Grid{{1}}})
	if !errors.Is(err, hopfield.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestHandleRecallAll(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	if _, _, err := server.handleRecallAll(ctx, req, EmptyInput{}); !errors.Is(err, hopfield.ErrEmptyArchive) {
		t.Fatalf("error = %v, want ErrEmptyArchive", err)
	}

	_, _, _ = server.handleLearn(ctx, req, LearnInput{Grid: hopfield.Grid{{1, 1}, {-1, -1}}})
	_, out, err := server.handleRecallAll(ctx, req, EmptyInput{})
	if err != nil {
		t.Fatalf("handleRecallAll failed: %v", err)
	}
	if out.Count != 1 || len(out.Grids) != 1 {
		t.Errorf("output = %+v, want one grid", out)
	}
}

func TestHandlePatternsAndReset(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	_, _, _ = server.handleLearn(ctx, req, LearnInput{Grid: hopfield.Grid{{1, 1}, {-1, -1}}})

	_, pats, err := server.handlePatterns(ctx, req, EmptyInput{})
	if err != nil {
		t.Fatalf("handlePatterns failed: %v", err)
	}
	if pats.Patterns != 1 || pats.Side != 2 || pats.Neurons != 4 {
		t.Errorf("patterns = %+v", pats)
	}

	_, reset, err := server.handleReset(ctx, req, EmptyInput{})
	if err != nil {
		t.Fatalf("handleReset failed: %v", err)
	}
	if reset.Message != "Memory cleared successfully" {
		t.Errorf("message = %q", reset.Message)
	}

	_, pats, _ = server.handlePatterns(ctx, req, EmptyInput{})
	if pats.Patterns != 0 {
		t.Errorf("patterns after reset = %d, want 0", pats.Patterns)
	}
}

func TestHandleHistory(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	_, _, _ = server.handleLearn(ctx, req, LearnInput{Grid: hopfield.Grid{{1, 1}, {-1, -1}}})
	_, _, _ = server.handleRecall(ctx, req, RecallInput{Grid: hopfield.Grid{{1, 1}, {-1, -1}}})

	_, out, err := server.handleHistory(ctx, req, HistoryInput{})
	if err != nil {
		t.Fatalf("handleHistory failed: %v", err)
	}
	if out.Count != 2 {
		t.Fatalf("Count = %d, want 2", out.Count)
	}
	if out.Events[0].Op != history.OpRecall || out.Events[0].Energy == nil {
		t.Errorf("newest event = %+v, want recall with energy", out.Events[0])
	}
	if out.OpCounts[history.OpLearn] != 1 {
		t.Errorf("OpCounts = %v", out.OpCounts)
	}
	if out.ConvergedRate != 1 || out.MeanIterations != 1 {
		t.Errorf("ConvergedRate = %v, MeanIterations = %v; want 1, 1", out.ConvergedRate, out.MeanIterations)
	}
}

func TestHandleNoise(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}
	grid := hopfield.Grid{{1, -1}, {-1, 1}}
	seed := int64(5)

	_, out, err := server.handleNoise(ctx, req, NoiseInput{Grid: grid, Probability: 1, Seed: &seed})
	if err != nil {
		t.Fatalf("handleNoise failed: %v", err)
	}
	if want := (hopfield.Grid{{-1, 1}, {1, -1}}); !reflect.DeepEqual(out.Grid, want) {
		t.Errorf("Grid = %v, want %v", out.Grid, want)
	}
	if out.Flipped != 4 || out.Seed != 5 {
		t.Errorf("Flipped = %d, Seed = %d; want 4, 5", out.Flipped, out.Seed)
	}
	if !reflect.DeepEqual(grid, hopfield.Grid{{1, -1}, {-1, 1}}) {
		t.Errorf("input grid mutated: %v", grid)
	}

	_, a, err := server.handleNoise(ctx, req, NoiseInput{Grid: grid, Seed: &seed})
	if err != nil {
		t.Fatalf("handleNoise failed: %v", err)
	}
	_, b, _ := server.handleNoise(ctx, req, NoiseInput{Grid: grid, Seed: &seed})
	if !reflect.DeepEqual(a.Grid, b.Grid) || a.Flipped != b.Flipped {
		t.Errorf("same seed gave %v and %v", a.Grid, b.Grid)
	}

	tests := []struct {
		name string
		in   NoiseInput
	}{
		{"wrong size", NoiseInput{Grid: hopfield.Grid{{1}}}},
		{"ragged", NoiseInput{Grid: hopfield.Grid{{1, 1}, {1}}}},
		{"probability above one", NoiseInput{Grid: grid, Probability: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := server.handleNoise(ctx, req, tt.in); !errors.Is(err, hopfield.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRateLimitedTool(t *testing.T) {
	server := setupTestServer(t, ratelimit.OperationLimiters{
		ratelimit.OpPatterns: ratelimit.NewLimiter(0, 1),
	})
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	if _, _, err := server.handlePatterns(ctx, req, EmptyInput{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, _, err := server.handlePatterns(ctx, req, EmptyInput{}); !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Errorf("second call error = %v, want ErrRateLimited", err)
	}
}

func TestPatternsResource(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()

	res, err := server.handlePatternsResource(ctx, &sdk.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("handlePatternsResource failed: %v", err)
	}
	if !strings.Contains(res.Contents[0].Text, "No patterns memorized") {
		t.Errorf("empty resource text = %q", res.Contents[0].Text)
	}

	_, _, _ = server.handleLearn(ctx, &sdk.CallToolRequest{}, LearnInput{Grid: hopfield.Grid{{1, -1}, {-1, 1}}})
	res, err = server.handlePatternsResource(ctx, &sdk.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("handlePatternsResource failed: %v", err)
	}
	text := res.Contents[0].Text
	if !strings.Contains(text, "## Pattern 1") || !strings.Contains(text, "#.\n.#\n") {
		t.Errorf("resource text = %q", text)
	}
}
