// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flows

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/blogdeck/services/blog/api"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/notify"
	"github.com/AleutianAI/blogdeck/services/blog/state"
)

const resourcePost = "post"

// PostFlows runs create, update, delete and reload for posts.
//
// # Description
//
// Creation is optimistic: a placeholder tagged with a fresh Tentative
// marker is inserted at the front of the list before the backend call,
// then swapped for the server's record on success or removed on failure.
//
// After a successful create the new post's id is published on Recent for
// the create-success notification delay, so views can highlight it.
//
// # Thread Safety
//
// Safe for concurrent use; the edit target and drafts live in cells.
type PostFlows struct {
	store    *state.Store
	backend  PostsBackend
	notifier Notifier
	clock    notify.Clock
	recorder Recorder
	logger   *slog.Logger

	// Draft holds the new-post form. Cleared after a successful create.
	Draft *state.Cell[datatypes.PostInput]

	// Editing holds the post being edited, nil when not editing.
	Editing *state.Cell[*datatypes.Post]

	// Recent holds the id of the post created last, 0 once the highlight
	// expired.
	Recent *state.Cell[int64]

	mu         sync.Mutex
	highlight  time.Duration
	recentGen  uint64
	recentStop notify.Timer
}

// NewPostFlows wires post flows to store, backend and notifier.
//
// # Inputs
//
//   - highlight: How long Recent keeps a created id. Non-positive disables.
func NewPostFlows(store *state.Store, backend PostsBackend, notifier Notifier, clock notify.Clock, highlight time.Duration, recorder Recorder, logger *slog.Logger) *PostFlows {
	if clock == nil {
		clock = notify.SystemClock{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostFlows{
		store:     store,
		backend:   backend,
		notifier:  notifier,
		clock:     clock,
		recorder:  recorder,
		logger:    logger,
		highlight: highlight,
		Draft:     state.NewCell(datatypes.PostInput{}),
		Editing:   state.NewCell[*datatypes.Post](nil),
		Recent:    state.NewCell[int64](0),
	}
}

// Reload fetches every post and stores them newest first.
func (f *PostFlows) Reload(ctx context.Context) error {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourcePost, "reload")

	posts, err := f.backend.ListPosts(ctx)
	if err != nil {
		f.notifier.Error(api.MessageOf(err, MsgPostsLoadFailed))
		r.finish(OutcomeError, err)
		return fmt.Errorf("reload posts: %w", err)
	}

	f.store.Posts.Set(SortPosts(posts))
	r.finish(OutcomeSuccess, nil)
	return nil
}

// Create validates in, inserts a placeholder, and creates the post.
//
// # Description
//
// On success the placeholder becomes the server's record (any other entry
// with the same id is dropped), the draft is cleared, the new id is
// highlighted and a success notification is raised. On failure the
// placeholder is removed, leaving the list as it was before the call, and
// an error notification is raised.
//
// # Outputs
//
//   - datatypes.Post: The server's record.
//   - error: ErrInvalidInput, or the wrapped backend error.
func (f *PostFlows) Create(ctx context.Context, in datatypes.PostInput) (datatypes.Post, error) {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourcePost, "create")

	if err := in.Validate(); err != nil {
		r.finish(OutcomeInvalid, nil)
		return datatypes.Post{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	author := f.store.Session.Get().Username
	marker := uuid.New()
	placeholder := datatypes.Post{
		Title:          in.Title,
		Content:        in.Content,
		AuthorUsername: author,
		CreatedAt:      datatypes.TimestampPtr(f.clock.Now()),
		Tentative:      marker,
	}
	f.store.Posts.Update(func(cur []datatypes.Post) []datatypes.Post {
		return append([]datatypes.Post{placeholder}, cur...)
	})

	created, err := f.backend.CreatePost(ctx, datatypes.PostCreateRequest{
		Title:          in.Title,
		Content:        in.Content,
		AuthorUsername: author,
	})
	if err != nil {
		f.store.Posts.Update(func(cur []datatypes.Post) []datatypes.Post {
			return removeTentative(cur, marker)
		})
		f.notifier.Error(api.MessageOf(err, MsgPostCreateFailed))
		r.finish(OutcomeError, err)
		return datatypes.Post{}, fmt.Errorf("create post: %w", err)
	}

	f.store.Posts.Update(func(cur []datatypes.Post) []datatypes.Post {
		return confirmTentative(cur, marker, created)
	})
	f.Draft.Set(datatypes.PostInput{})
	f.markRecent(created.ID)
	f.notifier.CreateSuccess(MsgPostCreated)
	r.finish(OutcomeSuccess, nil)
	return created, nil
}

// CreateFromDraft runs Create with the current draft.
func (f *PostFlows) CreateFromDraft(ctx context.Context) (datatypes.Post, error) {
	return f.Create(ctx, f.Draft.Get())
}

// BeginEdit selects p as the edit target.
func (f *PostFlows) BeginEdit(p datatypes.Post) {
	target := p
	f.Editing.Set(&target)
}

// CancelEdit drops the edit target.
func (f *PostFlows) CancelEdit() {
	if f.Editing.Get() != nil {
		f.Editing.Set(nil)
	}
}

// Update sends in for the current edit target.
//
// # Description
//
// Without an edit target this is a no-op returning ErrNoEditTarget. On
// success the post is replaced by id with the server's record and edit
// mode ends. On failure edit mode stays active.
func (f *PostFlows) Update(ctx context.Context, in datatypes.PostInput) (datatypes.Post, error) {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourcePost, "update")

	target := f.Editing.Get()
	if target == nil {
		r.finish(OutcomeNoop, nil)
		return datatypes.Post{}, ErrNoEditTarget
	}
	if err := in.Validate(); err != nil {
		r.finish(OutcomeInvalid, nil)
		return datatypes.Post{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	updated, err := f.backend.UpdatePost(ctx, target.ID, in)
	if err != nil {
		f.notifier.Error(api.MessageOf(err, MsgPostUpdateFailed))
		r.finish(OutcomeError, err)
		return datatypes.Post{}, fmt.Errorf("update post %d: %w", target.ID, err)
	}

	f.store.Posts.Update(func(cur []datatypes.Post) []datatypes.Post {
		return replaceByID(cur, updated, postID)
	})
	f.Editing.Set(nil)
	f.notifier.Success(MsgPostUpdated)
	r.finish(OutcomeSuccess, nil)
	return updated, nil
}

// Delete removes post id on the backend, then locally.
func (f *PostFlows) Delete(ctx context.Context, id int64) error {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourcePost, "delete")

	if err := f.backend.DeletePost(ctx, id); err != nil {
		f.notifier.Error(api.MessageOf(err, MsgPostDeleteFailed))
		r.finish(OutcomeError, err)
		return fmt.Errorf("delete post %d: %w", id, err)
	}

	f.store.Posts.Update(func(cur []datatypes.Post) []datatypes.Post {
		return removeByID(cur, id, postID)
	})
	if target := f.Editing.Get(); target != nil && target.ID == id {
		f.Editing.Set(nil)
	}
	f.notifier.Success(MsgPostDeleted)
	r.finish(OutcomeSuccess, nil)
	return nil
}

// SetHighlight changes how long later creates stay on Recent.
func (f *PostFlows) SetHighlight(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.highlight = d
}

// markRecent publishes id on Recent and schedules its reset.
func (f *PostFlows) markRecent(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.highlight <= 0 {
		return
	}

	f.recentGen++
	gen := f.recentGen
	if f.recentStop != nil {
		f.recentStop.Stop()
	}
	f.recentStop = f.clock.AfterFunc(f.highlight, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if gen != f.recentGen {
			return
		}
		f.recentStop = nil
		f.Recent.Set(0)
	})
	f.Recent.Set(id)
}
