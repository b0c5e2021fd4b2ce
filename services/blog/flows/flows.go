// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flows runs the blog's mutation sequences against the backend.
//
// # Description
//
// Each flow follows the same shape: validate the input locally, mutate the
// owning collection (optimistically for post creation, after the response
// otherwise), call the backend, reconcile or roll back, and raise a
// self-expiring notification. A flow run has exactly one terminal outcome
// and is never retried.
//
// Local validation failures return ErrInvalidInput without a remote call
// or notification. Remote failures raise an error notification carrying
// the server's message when it sent one, and are returned to the caller.
//
// # Concurrency
//
// Flows block on the caller's goroutine for the duration of the remote
// call. Responses are applied unconditionally when they arrive.
package flows

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/blogdeck/services/blog/api"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/navigation"
	"github.com/AleutianAI/blogdeck/services/blog/telemetry"
)

var tracer = otel.Tracer("blogdeck.flows")

// =============================================================================
// Collaborators
// =============================================================================

// PostsBackend is the subset of the API used by post flows.
type PostsBackend interface {
	ListPosts(ctx context.Context) ([]datatypes.Post, error)
	CreatePost(ctx context.Context, in datatypes.PostCreateRequest) (datatypes.Post, error)
	UpdatePost(ctx context.Context, id int64, in datatypes.PostInput) (datatypes.Post, error)
	DeletePost(ctx context.Context, id int64) error
}

// CommentsBackend is the subset of the API used by comment flows.
type CommentsBackend interface {
	ListComments(ctx context.Context, postID int64) ([]datatypes.Comment, error)
	CreateComment(ctx context.Context, postID int64, in datatypes.CommentCreateRequest) (datatypes.Comment, error)
	UpdateComment(ctx context.Context, postID, commentID int64, in datatypes.CommentInput) (datatypes.Comment, error)
	DeleteComment(ctx context.Context, postID, commentID int64) error
}

// AuthBackend is the subset of the API used by auth flows.
type AuthBackend interface {
	Register(ctx context.Context, in datatypes.Registration) (string, error)
	Login(ctx context.Context, in datatypes.Credentials) (api.LoginResult, error)
	Logout(ctx context.Context) error
}

// Backend is everything the flows call. *api.Client implements it.
type Backend interface {
	PostsBackend
	CommentsBackend
	AuthBackend
}

// Notifier raises notifications. *notify.Controller implements it.
type Notifier interface {
	CreateSuccess(message string) uint64
	Success(message string) uint64
	Error(message string) uint64
}

// Navigator emits navigation events. *navigation.Navigator implements it.
type Navigator interface {
	Navigate(path string) navigation.Route
}

// Recorder receives one event per flow run.
type Recorder interface {
	FlowCompleted(resource, operation, outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) FlowCompleted(string, string, string, time.Duration) {}

// Outcome labels passed to Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
	OutcomeNoop    = "noop"
)

// =============================================================================
// Run bookkeeping
// =============================================================================

// run tracks one flow execution for tracing, metrics and logging.
type run struct {
	ctx       context.Context
	resource  string
	operation string
	span      trace.Span
	start     time.Time
	recorder  Recorder
	logger    *slog.Logger
}

func startRun(ctx context.Context, recorder Recorder, logger *slog.Logger, resource, operation string) (context.Context, *run) {
	ctx, span := tracer.Start(ctx, "flows."+resource+"."+operation,
		trace.WithAttributes(
			attribute.String("blog.resource", resource),
			attribute.String("blog.operation", operation),
		),
	)
	return ctx, &run{
		ctx:       ctx,
		resource:  resource,
		operation: operation,
		span:      span,
		start:     time.Now(),
		recorder:  recorder,
		logger:    logger,
	}
}

// finish records the outcome and ends the span. err may be nil.
func (r *run) finish(outcome string, err error) {
	elapsed := time.Since(r.start)
	r.span.SetAttributes(attribute.String("blog.outcome", outcome))
	if err != nil && outcome == OutcomeError {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
	}
	r.span.End()
	r.recorder.FlowCompleted(r.resource, r.operation, outcome, elapsed)

	attrs := []any{
		"resource", r.resource,
		"operation", r.operation,
		"outcome", outcome,
		"duration_ms", elapsed.Milliseconds(),
	}
	logger := telemetry.LoggerWithTrace(r.ctx, r.logger)
	switch outcome {
	case OutcomeError:
		logger.Warn("flow failed", append(attrs, "error", err)...)
	case OutcomeSuccess:
		logger.Info("flow completed", attrs...)
	default:
		logger.Debug("flow skipped", attrs...)
	}
}
