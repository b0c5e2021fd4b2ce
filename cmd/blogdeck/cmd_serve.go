// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/blogdeck/cmd/blogdeck/config"
	"github.com/AleutianAI/blogdeck/pkg/logging"
	"github.com/AleutianAI/blogdeck/services/blog/navigation"
	"github.com/AleutianAI/blogdeck/services/blog/telemetry"
	"github.com/AleutianAI/blogdeck/services/blog/tui"
	"github.com/AleutianAI/blogdeck/services/devserver"
)

// =============================================================================
// tui
// =============================================================================

func newTUICmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse and edit the blog in an interactive view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := c.stdout.(*os.File)
			if err := tui.CheckTerminal(out); err != nil {
				return err
			}
			c.logSink = io.Discard
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				stop := c.watchConfig(ctx, a.logger.Slog(), func(cfg config.BlogdeckConfig) {
					if err := a.Reconfigure(cfg); err != nil {
						a.logger.Warn("config change ignored", "error", err)
					}
				})
				defer stop()

				a.wiring.Navigator.Navigate(string(navigation.RoutePosts))
				return tui.Run(ctx, a.wiring)
			})
		},
	}
}

// =============================================================================
// serve
// =============================================================================

func newServeCmd(c *cli) *cobra.Command {
	var addr, dsn string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local development backend",
		Long: `Serve the blog REST API for local use. Data is kept in memory unless
a PostgreSQL DSN is configured. /health and /metrics are served next to /api.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dsn != "" {
				cfg.Server.PostgresDSN = dsn
			}

			logCfg := cfg.Logging.LoggerConfig("blogdeck-devserver")
			logCfg.Writer = c.stderr
			logCfg.Level = serveLevel(cfg.Logging.Level)
			logger := logging.New(logCfg)
			defer logger.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			stopWatch := c.watchConfig(ctx, logger.Slog(), func(cfg config.BlogdeckConfig) {
				logger.SetLevel(serveLevel(cfg.Logging.Level))
			})
			defer stopWatch()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			tel := cfg.Telemetry
			tel.ServiceName = "blogdeck-devserver"
			tel.Registerer = reg
			tel.Gatherer = reg
			shutdownTelemetry, err := telemetry.Init(ctx, tel)
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTelemetry(sctx)
			}()

			server := cfg.Server
			server.Registerer = reg
			server.Gatherer = reg
			server.Logger = logger.Slog()
			srv, err := devserver.New(ctx, server)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx) })
			g.Go(func() error {
				base := "http://" + srv.Addr()
				if err := waitReady(gctx, base+"/health", 10*time.Second); err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "Serving the blog API at %s/api (Ctrl+C to stop)\n", base)
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	cmd.Flags().StringVar(&dsn, "postgres-dsn", "", "PostgreSQL DSN, overrides server.postgres_dsn")
	return cmd
}

// serveLevel parses level and caps it at Info so requests stay visible.
func serveLevel(level string) logging.Level {
	l, err := logging.ParseLevel(level)
	if err != nil || l > logging.LevelInfo {
		return logging.LevelInfo
	}
	return l
}

// waitReady polls url until it answers 200, ctx ends, or limit passes.
// A cancelled ctx is not an error.
func waitReady(ctx context.Context, url string, limit time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(limit)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return errors.New("devserver did not become ready at " + url)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
