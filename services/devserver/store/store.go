// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store holds the development server's users, tokens, posts and
// comments.
//
// # Description
//
// Two implementations share the Store interface: Memory, the default, and
// Postgres on pgx, selected when a DSN is configured. Both return the
// package's sentinel errors so handlers can map them to status codes
// without knowing the backend.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

var (
	// ErrNotFound is returned when a user, token, post or comment does not
	// exist. Expired tokens are reported as not found.
	ErrNotFound = errors.New("not found")

	// ErrUsernameTaken is returned by CreateUser for a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
)

// User is a registered account.
type User struct {
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Store is the persistence contract of the development server.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateUser registers username. Returns ErrUsernameTaken on conflict.
	CreateUser(ctx context.Context, username string, passwordHash []byte) error

	// GetUser returns the account or ErrNotFound.
	GetUser(ctx context.Context, username string) (User, error)

	// CreateToken stores a bearer token for username until expiresAt.
	CreateToken(ctx context.Context, token, username string, expiresAt time.Time) error

	// LookupToken returns the token's username, or ErrNotFound when the
	// token is unknown or expired.
	LookupToken(ctx context.Context, token string) (string, error)

	// DeleteToken removes the token. Unknown tokens are not an error.
	DeleteToken(ctx context.Context, token string) error

	// ListPosts returns every post, newest first.
	ListPosts(ctx context.Context) ([]datatypes.Post, error)

	// GetPost returns one post or ErrNotFound.
	GetPost(ctx context.Context, id int64) (datatypes.Post, error)

	// CreatePost assigns ID and CreatedAt and stores p.
	CreatePost(ctx context.Context, p datatypes.Post) (datatypes.Post, error)

	// UpdatePost replaces title and content.
	UpdatePost(ctx context.Context, id int64, title, content string) (datatypes.Post, error)

	// DeletePost removes the post and its comments.
	DeletePost(ctx context.Context, id int64) error

	// ListComments returns the comments of a post, oldest first.
	ListComments(ctx context.Context, postID int64) ([]datatypes.Comment, error)

	// GetComment returns one comment of a post or ErrNotFound.
	GetComment(ctx context.Context, postID, id int64) (datatypes.Comment, error)

	// CreateComment assigns ID and CreatedAt and stores c. Returns
	// ErrNotFound when the post does not exist.
	CreateComment(ctx context.Context, c datatypes.Comment) (datatypes.Comment, error)

	// UpdateComment replaces the content.
	UpdateComment(ctx context.Context, postID, id int64, content string) (datatypes.Comment, error)

	// DeleteComment removes one comment.
	DeleteComment(ctx context.Context, postID, id int64) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close()
}
