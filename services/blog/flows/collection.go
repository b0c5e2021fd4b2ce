// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flows

import (
	"github.com/google/uuid"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

// Collection helpers never modify their input; cells hold immutable slices.

func prependUnique[T any](items []T, item T, id func(T) int64) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	for _, it := range items {
		if id(it) != id(item) {
			out = append(out, it)
		}
	}
	return out
}

func replaceByID[T any](items []T, item T, id func(T) int64) []T {
	out := make([]T, len(items))
	for i, it := range items {
		if id(it) == id(item) {
			out[i] = item
		} else {
			out[i] = it
		}
	}
	return out
}

func removeByID[T any](items []T, target int64, id func(T) int64) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if id(it) != target {
			out = append(out, it)
		}
	}
	return out
}

func postID(p datatypes.Post) int64       { return p.ID }
func commentID(c datatypes.Comment) int64 { return c.ID }

// removeTentative drops the placeholder tagged with marker.
func removeTentative(posts []datatypes.Post, marker uuid.UUID) []datatypes.Post {
	out := make([]datatypes.Post, 0, len(posts))
	for _, p := range posts {
		if p.Tentative != marker {
			out = append(out, p)
		}
	}
	return out
}

// confirmTentative swaps the placeholder tagged with marker for the
// server's record and drops any other entry carrying the same id. When
// the placeholder is gone (a reload replaced the list meanwhile) the
// record is prepended instead.
func confirmTentative(posts []datatypes.Post, marker uuid.UUID, confirmed datatypes.Post) []datatypes.Post {
	confirmed.Tentative = uuid.Nil

	out := make([]datatypes.Post, 0, len(posts)+1)
	placed := false
	for _, p := range posts {
		if p.Tentative == marker {
			if !placed {
				out = append(out, confirmed)
				placed = true
			}
			continue
		}
		if !p.IsTentative() && p.ID == confirmed.ID {
			continue
		}
		out = append(out, p)
	}
	if !placed {
		return prependUnique(out, confirmed, postID)
	}
	return out
}
