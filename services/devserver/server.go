// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package devserver runs a local blog backend that speaks the REST contract
// the blog client expects, so the CLI and TUI can be used without a hosted
// service.
//
// # Description
//
// The server is a Gin engine with otelgin tracing, slog request logs and
// Prometheus request metrics. Data lives in memory unless a PostgreSQL DSN
// is configured.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/blogdeck/services/blog/observability"
	"github.com/AleutianAI/blogdeck/services/devserver/handlers"
	"github.com/AleutianAI/blogdeck/services/devserver/middleware"
	"github.com/AleutianAI/blogdeck/services/devserver/routes"
	"github.com/AleutianAI/blogdeck/services/devserver/store"
)

// DefaultAddr is the listen address when Config.Addr is empty.
const DefaultAddr = "127.0.0.1:8080"

const serviceName = "blogdeck-devserver"

// Config configures a Server.
type Config struct {
	// Addr is the listen address. Empty uses DefaultAddr.
	Addr string `yaml:"addr"`

	// PostgresDSN selects the PostgreSQL store. Empty keeps data in memory.
	PostgresDSN string `yaml:"postgres_dsn"`

	// MaxConns bounds the PostgreSQL pool.
	MaxConns int32 `yaml:"max_conns"`

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration `yaml:"token_ttl"`

	// ShutdownTimeout bounds graceful shutdown. Zero uses 5s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// PasswordCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
	PasswordCost int `yaml:"-"`

	// Registerer and Gatherer back the request metrics and /metrics.
	// Nil uses the Prometheus defaults.
	Registerer prometheus.Registerer `yaml:"-"`
	Gatherer   prometheus.Gatherer   `yaml:"-"`

	// Store overrides the store selection. Used by tests.
	Store store.Store `yaml:"-"`

	Logger *slog.Logger `yaml:"-"`
}

// Server is the development blog backend.
type Server struct {
	cfg    Config
	engine *gin.Engine
	store  store.Store
	logger *slog.Logger
}

// New builds the store and the Gin engine.
//
// # Inputs
//
//   - ctx: Bounds the PostgreSQL connect and migration.
//   - cfg: See Config.
//
// # Outputs
//
//   - *Server: Caller must Close it, or let Run return.
//   - error: A store failure.
func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	s := cfg.Store
	if s == nil {
		if cfg.PostgresDSN != "" {
			pg, err := store.NewPostgres(ctx, store.PostgresConfig{DSN: cfg.PostgresDSN, MaxConns: cfg.MaxConns})
			if err != nil {
				return nil, fmt.Errorf("open postgres store: %w", err)
			}
			logger.Info("devserver using postgres store")
			s = pg
		} else {
			logger.Info("devserver using in-memory store")
			s = store.NewMemory(nil)
		}
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	metrics := observability.NewMetrics(cfg.Registerer)

	h := handlers.New(s, handlers.Config{
		TokenTTL:     cfg.TokenTTL,
		PasswordCost: cfg.PasswordCost,
		Logger:       logger,
	})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(serviceName))
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.Metrics(metrics))
	routes.SetupRoutes(engine, h, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{cfg: cfg, engine: engine, store: s, logger: logger}, nil
}

// Handler returns the HTTP handler, for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully and closes
// the store.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devserver listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("devserver: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("devserver shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("devserver shutdown: %w", err)
	}
	return nil
}

// Close releases the store.
func (s *Server) Close() {
	s.store.Close()
}
