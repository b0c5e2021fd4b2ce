// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flows

import "errors"

var (
	// ErrInvalidInput is returned when local validation rejects a form.
	// No remote call was made and no notification was shown.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoEditTarget is returned by Update when nothing is being edited.
	ErrNoEditTarget = errors.New("no edit target selected")

	// ErrNoPostSelected is returned by comment flows before Load.
	ErrNoPostSelected = errors.New("no post selected")

	// ErrNotAuthenticated is returned by callers that require a session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// User-facing notification texts.
const (
	MsgPostCreated       = "Post created"
	MsgPostUpdated       = "Post updated"
	MsgPostDeleted       = "Post deleted"
	MsgPostCreateFailed  = "Error creating post"
	MsgPostUpdateFailed  = "Error updating post"
	MsgPostDeleteFailed  = "Error deleting post"
	MsgPostsLoadFailed   = "Error loading posts"
	MsgCommentCreated    = "Comment created"
	MsgCommentUpdated    = "Comment updated"
	MsgCommentDeleted    = "Comment deleted"
	MsgCommentCreateFail = "Error creating comment"
	MsgCommentUpdateFail = "Error updating comment"
	MsgCommentDeleteFail = "Error deleting comment"
	MsgCommentsLoadFail  = "Error loading comments"
	MsgRegistered        = "User registered successfully"
	MsgRegisterFailed    = "Error registering user"
	MsgLoggedIn          = "Logged in successfully"
	MsgLoginFailed       = "Invalid credentials or connection error"
	MsgLoggedOut         = "Session closed successfully."
	MsgLogoutFailed      = "Error closing session."
)
