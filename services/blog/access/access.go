// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package access holds the session guard and the ownership predicate.
package access

import (
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

// CanEnter reports whether a protected view may be shown. Only the
// presence of a token matters; its value is not inspected.
func CanEnter(session datatypes.Session) bool {
	return session.Token != nil
}

// IsOwner reports whether author is the session's user. An empty session
// username never owns anything, not even entities with an empty author.
func IsOwner(session datatypes.Session, author string) bool {
	return session.Username != "" && author == session.Username
}

// OwnsPost is IsOwner for a post.
func OwnsPost(session datatypes.Session, p datatypes.Post) bool {
	return IsOwner(session, p.AuthorUsername)
}

// OwnsComment is IsOwner for a comment.
func OwnsComment(session datatypes.Session, c datatypes.Comment) bool {
	return IsOwner(session, c.AuthorUsername)
}
