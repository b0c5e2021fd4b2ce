// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

// Store groups the cells shared by the blog components.
//
// # Description
//
// One Store backs one user-facing client (a CLI invocation or a TUI
// session). It is created by the caller and injected into every flow,
// the notification controller and the navigator.
//
// # Fields
//
//   - Session: current identity; a nil token means logged out.
//   - Posts: the post list, newest first.
//   - Comments: comments of the selected post.
//   - Notification: the banner, nil when empty.
type Store struct {
	Session      *Cell[datatypes.Session]
	Posts        *Cell[[]datatypes.Post]
	Comments     *Cell[[]datatypes.Comment]
	Notification *Cell[*datatypes.Notification]
}

// NewStore returns a Store with a logged-out session and empty collections.
func NewStore() *Store {
	return &Store{
		Session:      NewCell(datatypes.Session{}),
		Posts:        NewCell[[]datatypes.Post](nil),
		Comments:     NewCell[[]datatypes.Comment](nil),
		Notification: NewCell[*datatypes.Notification](nil),
	}
}

// Valid reports whether every cell is present.
func (s *Store) Valid() bool {
	return s != nil &&
		s.Session != nil &&
		s.Posts != nil &&
		s.Comments != nil &&
		s.Notification != nil
}

// ResetSession replaces the session with the logged-out value.
func (s *Store) ResetSession() {
	s.Session.Set(datatypes.Session{})
}
