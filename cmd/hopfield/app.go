package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nvandessel/hopfield/internal/config"
	"github.com/nvandessel/hopfield/internal/history"
	"github.com/nvandessel/hopfield/internal/hopfield"
	"github.com/nvandessel/hopfield/internal/logging"
	"github.com/nvandessel/hopfield/internal/ratelimit"
	"github.com/nvandessel/hopfield/internal/service"
	"github.com/spf13/cobra"
)

// app bundles everything built from config for the long-running commands.
type app struct {
	cfg      *config.HopfieldConfig
	logger   *slog.Logger
	tracer   *logging.TraceLogger
	journal  *history.Journal
	svc      *service.Service
	limiters ratelimit.OperationLimiters
}

// loadConfig reads the --config flag and validates the result.
func loadConfig(cmd *cobra.Command) (*config.HopfieldConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp creates the single network for this process and the service around it.
func newApp(ctx context.Context, cfg *config.HopfieldConfig) (*app, error) {
	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	nw, err := hopfield.New(cfg.Network.Side)
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}

	journal, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	tracer := logging.NewTraceLogger(cfg.Logging.TraceDir, cfg.Logging.Level)

	svc, err := service.New(service.Options{
		Network: nw,
		Journal: journal,
		Logger:  logger,
		Tracer:  tracer,
	})
	if err != nil {
		journal.Close()
		tracer.Close()
		return nil, err
	}

	var limiters ratelimit.OperationLimiters
	if cfg.RateLimit.Enabled {
		limiters = ratelimit.NewOperationLimiters()
	}

	logger.Debug("network initialized", "side", nw.Side(), "neurons", nw.Size())

	return &app{
		cfg:      cfg,
		logger:   logger,
		tracer:   tracer,
		journal:  journal,
		svc:      svc,
		limiters: limiters,
	}, nil
}

func (a *app) Close() {
	if err := a.journal.Close(); err != nil {
		a.logger.Warn("failed to close history", "error", err)
	}
	a.tracer.Close()
}
