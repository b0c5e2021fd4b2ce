// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/blogdeck/services/blog/api"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/navigation"
	"github.com/AleutianAI/blogdeck/services/blog/state"
)

const resourceSession = "session"

// AuthFlows runs register, login and logout.
//
// # Description
//
// Login and logout are the only writers of the session cell. Each session
// write force-clears the banner (through the wiring's subscription) and
// each navigation clears it again, so the success notification is raised
// last to survive both.
type AuthFlows struct {
	store     *state.Store
	backend   AuthBackend
	notifier  Notifier
	navigator Navigator
	recorder  Recorder
	logger    *slog.Logger
}

// NewAuthFlows wires auth flows. navigator may be nil.
func NewAuthFlows(store *state.Store, backend AuthBackend, notifier Notifier, navigator Navigator, recorder Recorder, logger *slog.Logger) *AuthFlows {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthFlows{
		store:     store,
		backend:   backend,
		notifier:  notifier,
		navigator: navigator,
		recorder:  recorder,
		logger:    logger,
	}
}

// Register creates an account. It does not log in.
func (f *AuthFlows) Register(ctx context.Context, in datatypes.Registration) error {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourceSession, "register")

	if err := in.Validate(); err != nil {
		r.finish(OutcomeInvalid, nil)
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	msg, err := f.backend.Register(ctx, in)
	if err != nil {
		f.notifier.Error(api.MessageOf(err, MsgRegisterFailed))
		r.finish(OutcomeError, err)
		return fmt.Errorf("register %q: %w", in.Username, err)
	}

	if msg == "" {
		msg = MsgRegistered
	}
	f.notifier.Success(msg)
	r.finish(OutcomeSuccess, nil)
	return nil
}

// Login authenticates and stores the session.
//
// # Description
//
// On success the session becomes {username, token} from the response, the
// view moves to the posts route and a success notification is raised. On
// failure the session is untouched.
func (f *AuthFlows) Login(ctx context.Context, in datatypes.Credentials) (datatypes.Session, error) {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourceSession, "login")

	if err := in.Validate(); err != nil {
		r.finish(OutcomeInvalid, nil)
		return datatypes.Session{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	res, err := f.backend.Login(ctx, in)
	if err != nil {
		f.notifier.Error(api.MessageOf(err, MsgLoginFailed))
		r.finish(OutcomeError, err)
		return datatypes.Session{}, fmt.Errorf("login %q: %w", in.Username, err)
	}

	username := res.Data.Username
	if username == "" {
		username = in.Username
	}
	session := datatypes.NewSession(username, res.Data.Token)
	f.store.Session.Set(session)
	if f.navigator != nil {
		f.navigator.Navigate(string(navigation.RoutePosts))
	}

	msg := res.Message
	if msg == "" {
		msg = MsgLoggedIn
	}
	f.notifier.Success(msg)
	r.finish(OutcomeSuccess, nil)
	return session, nil
}

// Logout ends the session on the backend, then locally.
//
// # Description
//
// On success the session resets to {"", nil}, the view moves to the login
// route and the success notification is raised, in that order. On failure
// the session is untouched.
func (f *AuthFlows) Logout(ctx context.Context) error {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourceSession, "logout")

	if err := f.backend.Logout(ctx); err != nil {
		f.notifier.Error(api.MessageOf(err, MsgLogoutFailed))
		r.finish(OutcomeError, err)
		return fmt.Errorf("logout: %w", err)
	}

	f.store.ResetSession()
	if f.navigator != nil {
		f.navigator.Navigate(string(navigation.RouteLogin))
	}
	f.notifier.Success(MsgLoggedOut)
	r.finish(OutcomeSuccess, nil)
	return nil
}
