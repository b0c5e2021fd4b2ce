// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flows

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/blogdeck/services/blog/api"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/notify"
	"github.com/AleutianAI/blogdeck/services/blog/state"
)

// fakeBackend implements Backend with overridable hooks. Unset hooks
// succeed with zero values.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	listPosts     func() ([]datatypes.Post, error)
	createPost    func(datatypes.PostCreateRequest) (datatypes.Post, error)
	updatePost    func(int64, datatypes.PostInput) (datatypes.Post, error)
	deletePost    func(int64) error
	listComments  func(int64) ([]datatypes.Comment, error)
	createComment func(int64, datatypes.CommentCreateRequest) (datatypes.Comment, error)
	updateComment func(int64, int64, datatypes.CommentInput) (datatypes.Comment, error)
	deleteComment func(int64, int64) error
	register      func(datatypes.Registration) (string, error)
	login         func(datatypes.Credentials) (api.LoginResult, error)
	logout        func() error
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) ListPosts(context.Context) ([]datatypes.Post, error) {
	f.record("ListPosts")
	if f.listPosts != nil {
		return f.listPosts()
	}
	return nil, nil
}

func (f *fakeBackend) CreatePost(_ context.Context, in datatypes.PostCreateRequest) (datatypes.Post, error) {
	f.record("CreatePost")
	if f.createPost != nil {
		return f.createPost(in)
	}
	return datatypes.Post{ID: 1, Title: in.Title, Content: in.Content, AuthorUsername: in.AuthorUsername}, nil
}

func (f *fakeBackend) UpdatePost(_ context.Context, id int64, in datatypes.PostInput) (datatypes.Post, error) {
	f.record("UpdatePost")
	if f.updatePost != nil {
		return f.updatePost(id, in)
	}
	return datatypes.Post{ID: id, Title: in.Title, Content: in.Content}, nil
}

func (f *fakeBackend) DeletePost(_ context.Context, id int64) error {
	f.record("DeletePost")
	if f.deletePost != nil {
		return f.deletePost(id)
	}
	return nil
}

func (f *fakeBackend) ListComments(_ context.Context, postID int64) ([]datatypes.Comment, error) {
	f.record("ListComments")
	if f.listComments != nil {
		return f.listComments(postID)
	}
	return nil, nil
}

func (f *fakeBackend) CreateComment(_ context.Context, postID int64, in datatypes.CommentCreateRequest) (datatypes.Comment, error) {
	f.record("CreateComment")
	if f.createComment != nil {
		return f.createComment(postID, in)
	}
	return datatypes.Comment{ID: 1, PostID: postID, Content: in.Content, AuthorUsername: in.AuthorUsername}, nil
}

func (f *fakeBackend) UpdateComment(_ context.Context, postID, commentID int64, in datatypes.CommentInput) (datatypes.Comment, error) {
	f.record("UpdateComment")
	if f.updateComment != nil {
		return f.updateComment(postID, commentID, in)
	}
	return datatypes.Comment{ID: commentID, PostID: postID, Content: in.Content}, nil
}

func (f *fakeBackend) DeleteComment(_ context.Context, postID, commentID int64) error {
	f.record("DeleteComment")
	if f.deleteComment != nil {
		return f.deleteComment(postID, commentID)
	}
	return nil
}

func (f *fakeBackend) Register(_ context.Context, in datatypes.Registration) (string, error) {
	f.record("Register")
	if f.register != nil {
		return f.register(in)
	}
	return "", nil
}

func (f *fakeBackend) Login(_ context.Context, in datatypes.Credentials) (api.LoginResult, error) {
	f.record("Login")
	if f.login != nil {
		return f.login(in)
	}
	return api.LoginResult{Data: datatypes.LoginData{Username: in.Username, Token: "tok"}}, nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.record("Logout")
	if f.logout != nil {
		return f.logout()
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

var testEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	wiring  *Wiring
	store   *state.Store
	backend *fakeBackend
	clock   *notify.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := state.NewStore()
	backend := &fakeBackend{}
	clock := notify.NewFakeClock(testEpoch)
	w := NewWiring(store, backend, WithClock(clock))
	require.True(t, w.Active())
	t.Cleanup(w.Close)
	return &harness{wiring: w, store: store, backend: backend, clock: clock}
}

func (h *harness) loginAs(username string) {
	h.store.Session.Set(datatypes.NewSession(username, "tok-"+username))
}

func (h *harness) banner() *datatypes.Notification {
	return h.store.Notification.Get()
}

func at(minutes int) *datatypes.Timestamp {
	return datatypes.TimestampPtr(testEpoch.Add(time.Duration(minutes) * time.Minute))
}

func ids(posts []datatypes.Post) []int64 {
	out := make([]int64, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func commentIDs(comments []datatypes.Comment) []int64 {
	out := make([]int64, len(comments))
	for i, c := range comments {
		out[i] = c.ID
	}
	return out
}
