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

	"github.com/AleutianAI/blogdeck/services/blog/api"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/state"
)

const resourceComment = "comment"

// CommentFlows runs the comment flows for the currently selected post.
//
// Creation waits for the backend and then merges the returned comment at
// the front of the list. The list is re-sorted after every Load and every
// ToggleOrder, in the current direction (Descending until toggled).
type CommentFlows struct {
	store    *state.Store
	backend  CommentsBackend
	notifier Notifier
	recorder Recorder
	logger   *slog.Logger

	// Draft holds the new-comment form. Cleared after a successful create.
	Draft *state.Cell[datatypes.CommentInput]

	// Editing holds the comment being edited, nil when not editing.
	Editing *state.Cell[*datatypes.Comment]

	// Order is the current sort direction.
	Order *state.Cell[Order]

	mu     sync.Mutex
	postID int64
}

// NewCommentFlows wires comment flows to store, backend and notifier.
func NewCommentFlows(store *state.Store, backend CommentsBackend, notifier Notifier, recorder Recorder, logger *slog.Logger) *CommentFlows {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentFlows{
		store:    store,
		backend:  backend,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
		Draft:    state.NewCell(datatypes.CommentInput{}),
		Editing:  state.NewCell[*datatypes.Comment](nil),
		Order:    state.NewCell(Descending),
	}
}

// PostID returns the selected post, 0 before the first Load.
func (f *CommentFlows) PostID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.postID
}

func (f *CommentFlows) selected() (int64, error) {
	id := f.PostID()
	if id == 0 {
		return 0, ErrNoPostSelected
	}
	return id, nil
}

// Load selects postID and fetches its comments.
func (f *CommentFlows) Load(ctx context.Context, postID int64) error {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourceComment, "reload")

	f.mu.Lock()
	changed := f.postID != postID
	f.postID = postID
	f.mu.Unlock()
	if changed {
		f.CancelEdit()
	}

	comments, err := f.backend.ListComments(ctx, postID)
	if err != nil {
		f.notifier.Error(api.MessageOf(err, MsgCommentsLoadFail))
		r.finish(OutcomeError, err)
		return fmt.Errorf("load comments of post %d: %w", postID, err)
	}

	f.store.Comments.Set(SortComments(comments, f.Order.Get()))
	r.finish(OutcomeSuccess, nil)
	return nil
}

// ToggleOrder flips the sort direction and re-sorts the list.
func (f *CommentFlows) ToggleOrder() Order {
	var next Order
	f.Order.Update(func(o Order) Order {
		next = o.Toggle()
		return next
	})
	f.store.Comments.Update(func(cur []datatypes.Comment) []datatypes.Comment {
		return SortComments(cur, next)
	})
	return next
}

// Create validates in and adds a comment to the selected post.
func (f *CommentFlows) Create(ctx context.Context, in datatypes.CommentInput) (datatypes.Comment, error) {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourceComment, "create")

	if err := in.Validate(); err != nil {
		r.finish(OutcomeInvalid, nil)
		return datatypes.Comment{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	postID, err := f.selected()
	if err != nil {
		r.finish(OutcomeNoop, nil)
		return datatypes.Comment{}, err
	}

	created, err := f.backend.CreateComment(ctx, postID, datatypes.CommentCreateRequest{
		Content:        in.Content,
		AuthorUsername: f.store.Session.Get().Username,
	})
	if err != nil {
		f.notifier.Error(api.MessageOf(err, MsgCommentCreateFail))
		r.finish(OutcomeError, err)
		return datatypes.Comment{}, fmt.Errorf("create comment on post %d: %w", postID, err)
	}

	f.store.Comments.Update(func(cur []datatypes.Comment) []datatypes.Comment {
		return prependUnique(cur, created, commentID)
	})
	f.Draft.Set(datatypes.CommentInput{})
	f.notifier.CreateSuccess(MsgCommentCreated)
	r.finish(OutcomeSuccess, nil)
	return created, nil
}

// CreateFromDraft runs Create with the current draft.
func (f *CommentFlows) CreateFromDraft(ctx context.Context) (datatypes.Comment, error) {
	return f.Create(ctx, f.Draft.Get())
}

// BeginEdit selects c as the edit target.
func (f *CommentFlows) BeginEdit(c datatypes.Comment) {
	target := c
	f.Editing.Set(&target)
}

// CancelEdit drops the edit target.
func (f *CommentFlows) CancelEdit() {
	if f.Editing.Get() != nil {
		f.Editing.Set(nil)
	}
}

// Update sends in for the current edit target. See PostFlows.Update.
func (f *CommentFlows) Update(ctx context.Context, in datatypes.CommentInput) (datatypes.Comment, error) {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourceComment, "update")

	target := f.Editing.Get()
	if target == nil {
		r.finish(OutcomeNoop, nil)
		return datatypes.Comment{}, ErrNoEditTarget
	}
	if err := in.Validate(); err != nil {
		r.finish(OutcomeInvalid, nil)
		return datatypes.Comment{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	postID := target.PostID
	if postID == 0 {
		postID = f.PostID()
	}

	updated, err := f.backend.UpdateComment(ctx, postID, target.ID, in)
	if err != nil {
		f.notifier.Error(api.MessageOf(err, MsgCommentUpdateFail))
		r.finish(OutcomeError, err)
		return datatypes.Comment{}, fmt.Errorf("update comment %d: %w", target.ID, err)
	}

	f.store.Comments.Update(func(cur []datatypes.Comment) []datatypes.Comment {
		return replaceByID(cur, updated, commentID)
	})
	f.Editing.Set(nil)
	f.notifier.Success(MsgCommentUpdated)
	r.finish(OutcomeSuccess, nil)
	return updated, nil
}

// Delete removes comment id from the selected post.
func (f *CommentFlows) Delete(ctx context.Context, id int64) error {
	ctx, r := startRun(ctx, f.recorder, f.logger, resourceComment, "delete")

	postID, err := f.selected()
	if err != nil {
		r.finish(OutcomeNoop, nil)
		return err
	}

	if err := f.backend.DeleteComment(ctx, postID, id); err != nil {
		f.notifier.Error(api.MessageOf(err, MsgCommentDeleteFail))
		r.finish(OutcomeError, err)
		return fmt.Errorf("delete comment %d: %w", id, err)
	}

	f.store.Comments.Update(func(cur []datatypes.Comment) []datatypes.Comment {
		return removeByID(cur, id, commentID)
	})
	if target := f.Editing.Get(); target != nil && target.ID == id {
		f.Editing.Set(nil)
	}
	f.notifier.Success(MsgCommentDeleted)
	r.finish(OutcomeSuccess, nil)
	return nil
}
