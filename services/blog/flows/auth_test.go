// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flows

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/blogdeck/services/blog/access"
	"github.com/AleutianAI/blogdeck/services/blog/api"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/navigation"
	"github.com/AleutianAI/blogdeck/services/blog/notify"
	"github.com/AleutianAI/blogdeck/services/blog/state"
)

func TestAuthFlows_Register(t *testing.T) {
	h := newHarness(t)
	h.backend.register = func(in datatypes.Registration) (string, error) {
		return "", nil
	}

	require.NoError(t, h.wiring.Auth.Register(context.Background(), datatypes.Registration{Username: "ana", Password: "longenough"}))
	assert.False(t, h.store.Session.Get().LoggedIn())
	require.NotNil(t, h.banner())
	assert.Equal(t, datatypes.Notification{Kind: datatypes.KindSuccess, Message: MsgRegistered}, *h.banner())
}

func TestAuthFlows_RegisterFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.register = func(datatypes.Registration) (string, error) {
		return "", &api.Error{Status: http.StatusConflict, Message: "Username already taken"}
	}

	err := h.wiring.Auth.Register(context.Background(), datatypes.Registration{Username: "ana", Password: "longenough"})
	require.Error(t, err)
	require.NotNil(t, h.banner())
	assert.Equal(t, datatypes.Notification{Kind: datatypes.KindError, Message: "Username already taken"}, *h.banner())
}

func TestAuthFlows_RegisterInvalid(t *testing.T) {
	h := newHarness(t)

	err := h.wiring.Auth.Register(context.Background(), datatypes.Registration{Username: "ana", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, h.backend.Calls())
	assert.Nil(t, h.banner())
}

func TestAuthFlows_Login(t *testing.T) {
	h := newHarness(t)
	h.backend.login = func(in datatypes.Credentials) (api.LoginResult, error) {
		return api.LoginResult{Data: datatypes.LoginData{Username: in.Username, Token: "abc"}}, nil
	}

	session, err := h.wiring.Auth.Login(context.Background(), datatypes.Credentials{Username: "ana", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, datatypes.NewSession("ana", "abc"), session)
	assert.Equal(t, session, h.store.Session.Get())
	assert.Equal(t, navigation.RoutePosts, h.wiring.Navigator.Current())

	// The success banner is raised after the session write and the
	// navigation, both of which clear it.
	require.NotNil(t, h.banner())
	assert.Equal(t, datatypes.Notification{Kind: datatypes.KindSuccess, Message: MsgLoggedIn}, *h.banner())
}

func TestAuthFlows_LoginFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"server message", &api.Error{Status: http.StatusUnauthorized, Message: "Bad password"}, "Bad password"},
		{"fallback", &api.Error{Status: http.StatusBadGateway}, MsgLoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.login = func(datatypes.Credentials) (api.LoginResult, error) {
				return api.LoginResult{}, tt.err
			}

			_, err := h.wiring.Auth.Login(context.Background(), datatypes.Credentials{Username: "ana", Password: "pw"})
			require.Error(t, err)
			assert.Equal(t, datatypes.Session{}, h.store.Session.Get())
			assert.Equal(t, navigation.RouteLogin, h.wiring.Navigator.Current())
			require.NotNil(t, h.banner())
			assert.Equal(t, tt.message, h.banner().Message)
		})
	}
}

func TestAuthFlows_LoginInvalid(t *testing.T) {
	h := newHarness(t)

	_, err := h.wiring.Auth.Login(context.Background(), datatypes.Credentials{Username: " ", Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, h.backend.Calls())
}

func TestAuthFlows_Logout(t *testing.T) {
	h := newHarness(t)
	h.loginAs("ana")
	h.wiring.Navigator.Navigate(string(navigation.RoutePosts))
	require.Equal(t, navigation.RoutePosts, h.wiring.Navigator.Current())

	var routes []navigation.Route
	h.wiring.Navigator.Subscribe(func(r navigation.Route) { routes = append(routes, r) })

	require.NoError(t, h.wiring.Auth.Logout(context.Background()))

	session := h.store.Session.Get()
	assert.Equal(t, "", session.Username)
	assert.Nil(t, session.Token)
	assert.False(t, access.CanEnter(session))
	assert.Equal(t, []navigation.Route{navigation.RouteLogin}, routes)
	assert.Equal(t, navigation.RouteLogin, h.wiring.Navigator.Resolve(string(navigation.RoutePosts)))

	require.NotNil(t, h.banner())
	assert.Equal(t, datatypes.Notification{Kind: datatypes.KindSuccess, Message: MsgLoggedOut}, *h.banner())
}

func TestAuthFlows_LogoutFailure(t *testing.T) {
	h := newHarness(t)
	h.loginAs("ana")
	h.backend.logout = func() error {
		return &api.Error{Status: http.StatusInternalServerError}
	}

	require.Error(t, h.wiring.Auth.Logout(context.Background()))
	assert.Equal(t, "ana", h.store.Session.Get().Username)
	require.NotNil(t, h.banner())
	assert.Equal(t, datatypes.Notification{Kind: datatypes.KindError, Message: MsgLogoutFailed}, *h.banner())
}

// TestAuthFlows_LoginThenBearer drives the real client against a fake
// backend and checks that requests after login carry the token.
func TestAuthFlows_LoginThenBearer(t *testing.T) {
	var mu sync.Mutex
	var authHeaders []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds datatypes.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Welcome back",
			"data":    map[string]any{"username": creds.Username, "token": "t-123", "expiresIn": 3600},
		})
	})
	mux.HandleFunc("GET /api/posts", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":1,"title":"t","content":"c","authorUsername":"ana"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := state.NewStore()
	client, err := api.NewClient(api.Config{BaseURL: srv.URL + "/api", Timeout: 5 * time.Second}, store.Session)
	require.NoError(t, err)
	w := NewWiring(store, client, WithClock(notify.NewFakeClock(testEpoch)))
	require.True(t, w.Active())
	defer w.Close()

	require.NoError(t, w.Posts.Reload(context.Background()))

	_, err = w.Auth.Login(context.Background(), datatypes.Credentials{Username: "ana", Password: "pw"})
	require.NoError(t, err)
	require.NotNil(t, store.Notification.Get())
	assert.Equal(t, "Welcome back", store.Notification.Get().Message)

	require.NoError(t, w.Posts.Reload(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "Bearer t-123"}, authHeaders)
	assert.Equal(t, []int64{1}, ids(store.Posts.Get()))
}
