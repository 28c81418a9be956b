package main

import (
	"fmt"

	"github.com/nvandessel/hopfield/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run as an MCP server over stdio",
		Long: `Run hopfield as a Model Context Protocol server on stdin/stdout.

Tools: hopfield_learn, hopfield_recall, hopfield_recall_all,
hopfield_patterns, hopfield_reset, hopfield_noise, hopfield_history.
Resource: hopfield://patterns`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := withShutdown(cmd.Context())
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := mcp.NewServer(&mcp.Config{
				Name:     "hopfield",
				Version:  version,
				Service:  a.svc,
				Limiters: a.limiters,
				Logger:   a.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return srv.Run(ctx)
		},
	}
}
