// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flows

import (
	"sort"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

// Order is a comment sort direction.
type Order int

const (
	// Descending shows the newest comment first. The default.
	Descending Order = iota

	// Ascending shows the oldest comment first.
	Ascending
)

// String returns "desc" or "asc".
func (o Order) String() string {
	if o == Ascending {
		return "asc"
	}
	return "desc"
}

// Toggle returns the other direction.
func (o Order) Toggle() Order {
	if o == Ascending {
		return Descending
	}
	return Ascending
}

// SortPosts returns a newest-first copy of posts.
//
// # Description
//
// Orders by CreatedAt descending when every post has one, otherwise by ID
// descending. The id fallback assumes the backend assigns ids in creation
// order. The sort is stable, so applying it twice changes nothing.
func SortPosts(posts []datatypes.Post) []datatypes.Post {
	out := make([]datatypes.Post, len(posts))
	copy(out, posts)

	allDated := true
	for _, p := range out {
		if p.CreatedAt == nil {
			allDated = false
			break
		}
	}

	if allDated {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt.Time)
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ID > out[j].ID
		})
	}
	return out
}

// SortComments returns a copy of comments in the given direction.
//
// Orders by CreatedAt when every comment has one, otherwise by ID, with
// the same creation-order assumption as SortPosts. Stable.
func SortComments(comments []datatypes.Comment, order Order) []datatypes.Comment {
	out := make([]datatypes.Comment, len(comments))
	copy(out, comments)

	allDated := true
	for _, c := range out {
		if c.CreatedAt.IsZero() {
			allDated = false
			break
		}
	}

	newer := func(i, j int) bool {
		if allDated {
			return out[i].CreatedAt.After(out[j].CreatedAt.Time)
		}
		return out[i].ID > out[j].ID
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == Ascending {
			return newer(j, i)
		}
		return newer(i, j)
	})
	return out
}
