// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flows

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/blogdeck/services/blog/navigation"
	"github.com/AleutianAI/blogdeck/services/blog/notify"
	"github.com/AleutianAI/blogdeck/services/blog/state"
)

var errNotWired = errors.New("blog state is not wired")

// Metrics receives both flow and notification events.
// *observability.Metrics implements it.
type Metrics interface {
	Recorder
	notify.Recorder
}

// WiringOption configures NewWiring.
type WiringOption func(*wiringConfig)

type wiringConfig struct {
	clock   notify.Clock
	delays  notify.Delays
	logger  *slog.Logger
	metrics Metrics
}

// WithClock sets the clock used by notifications, highlights and the
// not-found redirect.
func WithClock(c notify.Clock) WiringOption {
	return func(cfg *wiringConfig) { cfg.clock = c }
}

// WithDelays sets the notification delays.
func WithDelays(d notify.Delays) WiringOption {
	return func(cfg *wiringConfig) { cfg.delays = d }
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) WiringOption {
	return func(cfg *wiringConfig) { cfg.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) WiringOption {
	return func(cfg *wiringConfig) { cfg.metrics = m }
}

// Wiring is the assembled client: one store plus every component that
// observes or writes it.
//
// # Description
//
// The notification banner is force-cleared on every session write and on
// every navigation. Close removes the session subscription.
type Wiring struct {
	Store     *state.Store
	Notifier  *notify.Controller
	Navigator *navigation.Navigator
	Posts     *PostFlows
	Comments  *CommentFlows
	Auth      *AuthFlows

	active    bool
	closeOnce sync.Once
	unsub     []func()
}

// NewWiring assembles the components around store.
//
// # Description
//
// A nil or incomplete store, or a nil backend, cannot be wired. Rather
// than failing, NewWiring logs a warning and returns an inactive Wiring
// whose component fields are nil. Callers check Active. A panic raised
// while wiring is recovered the same way.
//
// # Inputs
//
//   - store: The shared store.
//   - backend: The API client.
//   - opts: Clock, delays, logger and metrics overrides.
//
// # Outputs
//
//   - *Wiring: Never nil.
func NewWiring(store *state.Store, backend Backend, opts ...WiringOption) (w *Wiring) {
	cfg := wiringConfig{
		clock:  notify.SystemClock{},
		delays: notify.DefaultDelays(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = notify.SystemClock{}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	defer func() {
		if rec := recover(); rec != nil {
			cfg.logger.Warn("state wiring skipped", "error", fmt.Sprint(rec))
			w = &Wiring{}
		}
	}()

	if !store.Valid() || backend == nil {
		cfg.logger.Warn("state wiring skipped", "store_valid", store.Valid(), "backend_present", backend != nil)
		return &Wiring{}
	}

	notifyOpts := []notify.Option{
		notify.WithLogger(cfg.logger),
		notify.WithClock(cfg.clock),
		notify.WithDelays(cfg.delays),
	}
	var recorder Recorder = nopRecorder{}
	if cfg.metrics != nil {
		notifyOpts = append(notifyOpts, notify.WithRecorder(cfg.metrics))
		recorder = cfg.metrics
	}
	ctrl := notify.NewController(store, notifyOpts...)
	nav := navigation.New(store, ctrl,
		navigation.WithClock(cfg.clock),
		navigation.WithLogger(cfg.logger),
	)

	w = &Wiring{
		Store:     store,
		Notifier:  ctrl,
		Navigator: nav,
		Posts:     NewPostFlows(store, backend, ctrl, cfg.clock, ctrl.Delays().CreateSuccess, recorder, cfg.logger),
		Comments:  NewCommentFlows(store, backend, ctrl, recorder, cfg.logger),
		Auth:      NewAuthFlows(store, backend, ctrl, nav, recorder, cfg.logger),
		active:    true,
	}
	w.unsub = append(w.unsub, notify.ClearOnChange(ctrl, store.Session))
	return w
}

// Active reports whether the components were wired.
func (w *Wiring) Active() bool {
	return w != nil && w.active
}

// ApplyDelays switches the notification delays and the create highlight
// of a running client. Invalid delays leave both unchanged.
func (w *Wiring) ApplyDelays(d notify.Delays) error {
	if !w.Active() {
		return errNotWired
	}
	if err := w.Notifier.SetDelays(d); err != nil {
		return err
	}
	w.Posts.SetHighlight(d.CreateSuccess)
	return nil
}

// Close removes the wiring's subscriptions. Safe to call more than once.
func (w *Wiring) Close() {
	if w == nil {
		return
	}
	w.closeOnce.Do(func() {
		for _, fn := range w.unsub {
			fn()
		}
		w.unsub = nil
	})
}
