// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "github.com/google/uuid"

// =============================================================================
// Session
// =============================================================================

// Session is the current user's identity.
//
// A nil Token means logged out. The zero value is the logged-out session.
type Session struct {
	Username string  `json:"username"`
	Token    *string `json:"token"`
}

// NewSession returns a logged-in session.
func NewSession(username, token string) Session {
	return Session{Username: username, Token: &token}
}

// LoggedIn reports whether the session holds a token.
func (s Session) LoggedIn() bool {
	return s.Token != nil
}

// BearerToken returns the token or "" when logged out.
func (s Session) BearerToken() string {
	if s.Token == nil {
		return ""
	}
	return *s.Token
}

// =============================================================================
// Post
// =============================================================================

// Post is a blog post.
//
// Tentative is set only on optimistic placeholders inserted before the
// server confirmed a create. It never leaves the process.
type Post struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	AuthorUsername string     `json:"authorUsername"`
	CreatedAt      *Timestamp `json:"createdAt,omitempty"`
	Tentative      uuid.UUID  `json:"-"`
}

// IsTentative reports whether p is an unconfirmed placeholder.
func (p Post) IsTentative() bool {
	return p.Tentative != uuid.Nil
}

// PostInput is the create/update form for posts.
type PostInput struct {
	Title   string `json:"title" validate:"notblank"`
	Content string `json:"content" validate:"notblank"`
}

// Validate checks that both fields carry non-whitespace text.
func (in PostInput) Validate() error {
	return blogValidate.Struct(in)
}

// PostCreateRequest is the create payload sent to the backend.
type PostCreateRequest struct {
	Title          string `json:"title" validate:"notblank"`
	Content        string `json:"content" validate:"notblank"`
	AuthorUsername string `json:"authorUsername"`
}

// =============================================================================
// Comment
// =============================================================================

// Comment is a comment on one post.
type Comment struct {
	ID             int64     `json:"id"`
	Content        string    `json:"content"`
	AuthorUsername string    `json:"authorUsername"`
	PostID         int64     `json:"postId"`
	CreatedAt      Timestamp `json:"createdAt"`
}

// CommentInput is the create/update form for comments.
type CommentInput struct {
	Content string `json:"content" validate:"notblank"`
}

// Validate checks that the content carries non-whitespace text.
func (in CommentInput) Validate() error {
	return blogValidate.Struct(in)
}

// CommentCreateRequest is the create payload sent to the backend.
type CommentCreateRequest struct {
	Content        string `json:"content" validate:"notblank"`
	AuthorUsername string `json:"authorUsername"`
}

// =============================================================================
// Auth
// =============================================================================

// Credentials is the login form.
type Credentials struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

// Validate checks that both fields are present.
func (c Credentials) Validate() error {
	return blogValidate.Struct(c)
}

// Registration is the register form. Passwords need at least 8 characters.
type Registration struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"required,min=8"`
}

// Validate checks the username and password length.
func (r Registration) Validate() error {
	return blogValidate.Struct(r)
}

// LoginData is the payload inside the login response envelope.
type LoginData struct {
	Username  string `json:"username"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn,omitempty"`
}

// =============================================================================
// Notification
// =============================================================================

// Kind classifies a notification.
type Kind string

const (
	// KindSuccess marks a completed operation.
	KindSuccess Kind = "success"

	// KindError marks a failed operation.
	KindError Kind = "error"
)

// Notification is a transient status message. A nil *Notification in the
// store means no banner is shown. Values are never mutated once stored.
type Notification struct {
	Kind    Kind   `json:"type"`
	Message string `json:"message"`
}
