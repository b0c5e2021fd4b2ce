// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package navigation resolves view paths and emits navigation events.
//
// # Description
//
// The Navigator maps a requested path onto one of the known routes,
// applies the session guard to protected routes, and publishes the result
// on an observable cell. Every navigation force-clears the notification
// banner before route subscribers run.
//
// Unknown paths land on RouteNotFound, which redirects to RouteLogin after
// NotFoundRedirect unless another navigation happens first.
//
// # Thread Safety
//
// Navigator is safe for concurrent use.
package navigation

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/blogdeck/services/blog/access"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/notify"
	"github.com/AleutianAI/blogdeck/services/blog/state"
)

// Route is a resolved view.
type Route string

const (
	// RouteLogin is the login form and the default route.
	RouteLogin Route = "/login"

	// RouteRegister is the registration form.
	RouteRegister Route = "/register"

	// RoutePosts lists posts. Requires a session token.
	RoutePosts Route = "/posts"

	// RouteNotFound is shown for unknown paths.
	RouteNotFound Route = "not-found"
)

// NotFoundRedirect is how long the not-found view stays before
// redirecting to the login view.
const NotFoundRedirect = 5000 * time.Millisecond

// Protected reports whether r requires a session token.
func (r Route) Protected() bool {
	return r == RoutePosts
}

// Clearer force-clears the notification banner.
type Clearer interface {
	Clear()
}

// Navigator publishes the current route.
type Navigator struct {
	session *state.Cell[datatypes.Session]
	current *state.Cell[Route]
	clearer Clearer
	clock   notify.Clock
	logger  *slog.Logger

	mu         sync.Mutex
	generation uint64
	redirect   notify.Timer
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithClock replaces the system clock used for the not-found redirect.
func WithClock(c notify.Clock) Option {
	return func(n *Navigator) {
		if c != nil {
			n.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Navigator) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Navigator starting on RouteLogin.
//
// # Inputs
//
//   - store: Supplies the session for the guard.
//   - clearer: Cleared on every navigation. May be nil.
//   - opts: Clock and logger overrides.
func New(store *state.Store, clearer Clearer, opts ...Option) *Navigator {
	n := &Navigator{
		session: store.Session,
		current: state.NewCell(RouteLogin),
		clearer: clearer,
		clock:   notify.SystemClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Current returns the current route.
func (n *Navigator) Current() Route {
	return n.current.Get()
}

// Subscribe registers fn for every navigation.
func (n *Navigator) Subscribe(fn func(Route)) (unsubscribe func()) {
	return n.current.Subscribe(fn)
}

// Resolve maps a path to a route without navigating.
//
// # Description
//
// "" and "/" resolve to RouteLogin. Protected routes resolve to RouteLogin
// when the session guard denies entry. Unknown paths resolve to
// RouteNotFound.
func (n *Navigator) Resolve(path string) Route {
	p := strings.TrimSpace(path)
	if p != "/" {
		p = strings.TrimRight(p, "/")
	}
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	switch Route(p) {
	case "", "/", RouteLogin:
		return RouteLogin
	case RouteRegister:
		return RouteRegister
	case RoutePosts:
		if !access.CanEnter(n.session.Get()) {
			return RouteLogin
		}
		return RoutePosts
	default:
		return RouteNotFound
	}
}

// Navigate resolves path and emits the resulting route.
//
// # Description
//
// Cancels a pending not-found redirect, clears the notification, then
// publishes the route. Navigating to an unknown path schedules the
// redirect to RouteLogin.
//
// # Outputs
//
//   - Route: The route actually emitted.
func (n *Navigator) Navigate(path string) Route {
	route := n.Resolve(path)

	n.mu.Lock()
	n.generation++
	gen := n.generation
	if n.redirect != nil {
		n.redirect.Stop()
		n.redirect = nil
	}
	if route == RouteNotFound {
		n.redirect = n.clock.AfterFunc(NotFoundRedirect, func() { n.redirectToLogin(gen) })
	}
	n.mu.Unlock()

	n.logger.Debug("navigate", "requested", path, "route", route)

	if n.clearer != nil {
		n.clearer.Clear()
	}
	n.current.Set(route)
	return route
}

func (n *Navigator) redirectToLogin(gen uint64) {
	n.mu.Lock()
	stale := gen != n.generation
	if !stale {
		n.redirect = nil
	}
	n.mu.Unlock()

	if stale {
		return
	}
	n.Navigate(string(RouteLogin))
}
