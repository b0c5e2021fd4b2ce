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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/blogdeck/cmd/blogdeck/config"
	"github.com/AleutianAI/blogdeck/pkg/logging"
	"github.com/AleutianAI/blogdeck/services/blog/api"
	"github.com/AleutianAI/blogdeck/services/blog/flows"
	"github.com/AleutianAI/blogdeck/services/blog/observability"
	"github.com/AleutianAI/blogdeck/services/blog/sessionstore"
	"github.com/AleutianAI/blogdeck/services/blog/state"
	"github.com/AleutianAI/blogdeck/services/blog/telemetry"
)

// app is one client: a store, the wiring around it, and the resources
// that back them for the lifetime of a command.
type app struct {
	cfg      config.BlogdeckConfig
	logger   *logging.Logger
	registry *prometheus.Registry
	sessions *sessionstore.Store
	client   *api.Client
	wiring   *flows.Wiring

	closers []func(context.Context) error
}

// openApp builds the client described by cfg.
//
// # Description
//
// Order: logger, telemetry, metrics registry, session store bound to the
// session cell, API client, wiring. Anything opened before a failure is
// closed again.
//
// # Inputs
//
//   - ctx: Used by telemetry exporters.
//   - cfg: Effective configuration.
//   - logOut: Console destination for logs.
//
// # Outputs
//
//   - *app: Callers must Close it.
//   - error: Any initialization failure.
func openApp(ctx context.Context, cfg config.BlogdeckConfig, logOut io.Writer) (*app, error) {
	logCfg := cfg.Logging.LoggerConfig("blogdeck")
	logCfg.Writer = logOut
	a := &app{
		cfg:      cfg,
		logger:   logging.New(logCfg),
		registry: prometheus.NewRegistry(),
	}
	a.closers = append(a.closers, func(context.Context) error { return a.logger.Close() })
	ready := false
	defer func() {
		if !ready {
			_ = a.Close(ctx)
		}
	}()

	tel := cfg.Telemetry
	tel.Registerer = a.registry
	tel.Gatherer = a.registry
	shutdown, err := telemetry.Init(ctx, tel)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	sessions, err := sessionstore.Open(sessionstore.Config{
		Path:       cfg.Session.SessionPath(),
		SyncWrites: true,
		TTL:        cfg.Session.TTL,
		Logger:     a.logger.Slog(),
	})
	if err != nil {
		return nil, err
	}
	a.sessions = sessions
	a.closers = append(a.closers, func(context.Context) error { return sessions.Close() })

	store := state.NewStore()
	unbind, err := a.sessions.Bind(store.Session)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { unbind(); return nil })

	client, err := api.NewClient(cfg.API.APIClientConfig(), store.Session)
	if err != nil {
		return nil, err
	}
	a.client = client

	a.wiring = flows.NewWiring(store, client,
		flows.WithDelays(cfg.Notifications),
		flows.WithLogger(a.logger.Slog()),
		flows.WithMetrics(observability.NewMetrics(a.registry)),
	)
	if !a.wiring.Active() {
		return nil, errors.New("blog state could not be wired")
	}
	a.closers = append(a.closers, func(context.Context) error { a.wiring.Close(); return nil })

	a.logger.Debug("client ready", "api", a.client.BaseURL(), "logged_in", store.Session.Get().LoggedIn())
	ready = true
	return a, nil
}

// Reconfigure applies the parts of cfg that can change while the client
// runs: notification delays and the log level.
func (a *app) Reconfigure(cfg config.BlogdeckConfig) error {
	if err := a.wiring.ApplyDelays(cfg.Notifications); err != nil {
		return fmt.Errorf("apply notification delays: %w", err)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.logger.SetLevel(level)
	return nil
}

// Store returns the shared state.
func (a *app) Store() *state.Store {
	return a.wiring.Store
}

// WriteMetrics dumps the flow metrics in the Prometheus text format.
func (a *app) WriteMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// Close releases everything in reverse order of opening.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
