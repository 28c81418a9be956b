package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/hopfield/internal/mcp"
	"github.com/nvandessel/hopfield/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Hopfield HTTP API",
		Long: `Serve the Hopfield network over HTTP.

Endpoints:
  GET  /api/hopfield               pattern count
  GET  /api/hopfield/get-patterns  pattern count
  POST /api/hopfield/memorize      {"grid": [[...]]}
  POST /api/hopfield/recall        {"grid": [[...]]} -> settled grid and energy
  POST /api/hopfield/recallAll     every memorized pattern
  POST /api/hopfield/clear         reset weights and patterns
  GET  /api/hopfield/history       recent operations

The network lives in memory for the lifetime of the process. With --mcp the
same network is also served to an MCP client on stdin/stdout, and the
process exits when that client disconnects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := withShutdown(cmd.Context())
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.NewServer(a.svc, server.Config{
				Addr:            cfg.Server.Addr,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				Limiters:        a.limiters,
				Logger:          a.logger,
			})

			var mcpRun func(context.Context) error
			if withMCP, _ := cmd.Flags().GetBool("mcp"); withMCP {
				mcpSrv, err := mcp.NewServer(&mcp.Config{
					Name:     "hopfield",
					Version:  version,
					Service:  a.svc,
					Limiters: a.limiters,
					Logger:   a.logger,
				})
				if err != nil {
					return fmt.Errorf("failed to create MCP server: %w", err)
				}
				mcpRun = mcpSrv.Run
			}

			err = runServers(ctx, srv, mcpRun)
			if ctx.Err() != nil {
				a.logger.Info("shut down", "reason", context.Cause(ctx))
			}
			return err
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().Bool("mcp", false, "Also serve MCP over stdio, sharing the same network")
	return cmd
}

// runServers runs the HTTP API and, when mcpRun is non-nil, an MCP session
// beside it. Whichever finishes first stops the other.
func runServers(ctx context.Context, srv *server.Server, mcpRun func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.ListenAndServe(gctx)
	})
	if mcpRun != nil {
		g.Go(func() error {
			defer cancel()
			return mcpRun(gctx)
		})
	}
	return g.Wait()
}
