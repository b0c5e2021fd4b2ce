// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

type tokenEntry struct {
	username  string
	expiresAt time.Time
}

// Memory is an in-process Store. Data is lost on exit.
type Memory struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[string]User
	tokens   map[string]tokenEntry
	posts    map[int64]datatypes.Post
	comments map[int64]datatypes.Comment
	nextPost int64
	nextCmt  int64
}

// NewMemory returns an empty Memory store.
//
// # Inputs
//
//   - now: Time source for CreatedAt and token expiry. Nil uses time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:      now,
		users:    make(map[string]User),
		tokens:   make(map[string]tokenEntry),
		posts:    make(map[int64]datatypes.Post),
		comments: make(map[int64]datatypes.Comment),
	}
}

// usernames compare case-insensitively
func userKey(username string) string {
	return strings.ToLower(username)
}

func (m *Memory) CreateUser(_ context.Context, username string, passwordHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := userKey(username)
	if _, ok := m.users[key]; ok {
		return ErrUsernameTaken
	}
	m.users[key] = User{
		Username:     username,
		PasswordHash: append([]byte(nil), passwordHash...),
		CreatedAt:    m.now().UTC(),
	}
	return nil
}

func (m *Memory) GetUser(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userKey(username)]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) CreateToken(_ context.Context, token, username string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = tokenEntry{username: username, expiresAt: expiresAt}
	return nil
}

func (m *Memory) LookupToken(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.tokens[token]
	if !ok {
		return "", ErrNotFound
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.tokens, token)
		return "", ErrNotFound
	}
	return entry.username, nil
}

func (m *Memory) DeleteToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

func (m *Memory) ListPosts(_ context.Context) ([]datatypes.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]datatypes.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) GetPost(_ context.Context, id int64) (datatypes.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok {
		return datatypes.Post{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) CreatePost(_ context.Context, p datatypes.Post) (datatypes.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPost++
	p.ID = m.nextPost
	p.CreatedAt = datatypes.TimestampPtr(m.now().UTC())
	m.posts[p.ID] = p
	return p, nil
}

func (m *Memory) UpdatePost(_ context.Context, id int64, title, content string) (datatypes.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok {
		return datatypes.Post{}, ErrNotFound
	}
	p.Title = title
	p.Content = content
	m.posts[id] = p
	return p, nil
}

func (m *Memory) DeletePost(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.posts, id)
	for cid, c := range m.comments {
		if c.PostID == id {
			delete(m.comments, cid)
		}
	}
	return nil
}

func (m *Memory) ListComments(_ context.Context, postID int64) ([]datatypes.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.posts[postID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]datatypes.Comment, 0)
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetComment(_ context.Context, postID, id int64) (datatypes.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[id]
	if !ok || c.PostID != postID {
		return datatypes.Comment{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) CreateComment(_ context.Context, c datatypes.Comment) (datatypes.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[c.PostID]; !ok {
		return datatypes.Comment{}, ErrNotFound
	}
	m.nextCmt++
	c.ID = m.nextCmt
	c.CreatedAt = datatypes.NewTimestamp(m.now().UTC())
	m.comments[c.ID] = c
	return c, nil
}

func (m *Memory) UpdateComment(_ context.Context, postID, id int64, content string) (datatypes.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || c.PostID != postID {
		return datatypes.Comment{}, ErrNotFound
	}
	c.Content = content
	m.comments[id] = c
	return c, nil
}

func (m *Memory) DeleteComment(_ context.Context, postID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || c.PostID != postID {
		return ErrNotFound
	}
	delete(m.comments, id)
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() {}
