// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api is the HTTP client for the blog REST backend.
//
// # Description
//
// Client wraps the backend's auth, post and comment endpoints. Every
// request carries "Authorization: Bearer <token>" taken from the session
// at call time; when the session has no token the header is omitted.
//
// Non-2xx responses become *Error values carrying the server's "message".
//
// # Thread Safety
//
// Client is safe for concurrent use.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultBaseURL matches the dev backend's default listen address.
	DefaultBaseURL = "http://localhost:8080/api"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 15 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// SessionSource supplies the current session. *state.Cell[datatypes.Session]
// satisfies it.
type SessionSource interface {
	Get() datatypes.Session
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8080/api".
	BaseURL string

	// Timeout bounds each request. Default: DefaultTimeout.
	Timeout time.Duration

	// RatePerSecond limits outgoing requests. Zero disables limiting.
	RatePerSecond float64

	// Burst is the limiter burst size. Default: 1 when limiting.
	Burst int

	// Transport is the base round tripper. Default: http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to the blog backend.
type Client struct {
	base    *url.URL
	http    *http.Client
	session SessionSource
	limiter *rate.Limiter
}

// NewClient creates a Client.
//
// # Description
//
// The transport is wrapped with otelhttp so each request produces a client
// span. Requests wait on a token-bucket limiter before being sent.
//
// # Inputs
//
//   - cfg: Client configuration.
//   - session: Source of the bearer token. May be nil for anonymous use.
//
// # Outputs
//
//   - *Client: Ready to use.
//   - error: ErrInvalidConfig when BaseURL does not parse as absolute.
func NewClient(cfg Config, session SessionSource) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		session: session,
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// =============================================================================
// Auth
// =============================================================================

type messageEnvelope struct {
	Message string `json:"message"`
}

// LoginResult is the decoded login response.
type LoginResult struct {
	Data    datatypes.LoginData `json:"data"`
	Message string              `json:"message"`
}

// Register creates an account. Returns the server's message, if any.
func (c *Client) Register(ctx context.Context, in datatypes.Registration) (string, error) {
	var out messageEnvelope
	if err := c.do(ctx, http.MethodPost, "/auth/register", "/auth/register", in, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, in datatypes.Credentials) (LoginResult, error) {
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", "/auth/login", in, &out); err != nil {
		return LoginResult{}, err
	}
	if out.Data.Token == "" {
		return LoginResult{}, fmt.Errorf("%w: login response without token", ErrDecode)
	}
	return out, nil
}

// Logout invalidates the current token.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", "/auth/logout", struct{}{}, nil)
}

// =============================================================================
// Posts
// =============================================================================

// ListPosts fetches every post. Accepts {"data":[...]} or a bare array.
func (c *Client) ListPosts(ctx context.Context) ([]datatypes.Post, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/posts", "/posts", nil, &raw); err != nil {
		return nil, err
	}
	var posts []datatypes.Post
	if err := decodeList(raw, &posts, ""); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost fetches one post. Accepts {"data":{...}} or a bare entity.
func (c *Client) GetPost(ctx context.Context, id int64) (datatypes.Post, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, postPath(id), "/posts/{id}", nil, &raw); err != nil {
		return datatypes.Post{}, err
	}
	var post datatypes.Post
	if err := decodeEntity(raw, &post); err != nil {
		return datatypes.Post{}, err
	}
	return post, nil
}

// CreatePost creates a post and returns the server's record.
func (c *Client) CreatePost(ctx context.Context, in datatypes.PostCreateRequest) (datatypes.Post, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/posts", "/posts", in, &raw); err != nil {
		return datatypes.Post{}, err
	}
	var post datatypes.Post
	if err := decodeEntity(raw, &post); err != nil {
		return datatypes.Post{}, err
	}
	return post, nil
}

// UpdatePost replaces title and content of post id.
func (c *Client) UpdatePost(ctx context.Context, id int64, in datatypes.PostInput) (datatypes.Post, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPut, postPath(id), "/posts/{id}", in, &raw); err != nil {
		return datatypes.Post{}, err
	}
	var post datatypes.Post
	if err := decodeEntity(raw, &post); err != nil {
		return datatypes.Post{}, err
	}
	return post, nil
}

// DeletePost removes post id.
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, postPath(id), "/posts/{id}", nil, nil)
}

// =============================================================================
// Comments
// =============================================================================

// ListComments fetches the comments of a post from GET /posts/{id}.
// Accepts {"data":[...]} and {"data":{"comments":[...]}}; anything else
// yields an empty list.
func (c *Client) ListComments(ctx context.Context, postID int64) ([]datatypes.Comment, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, postPath(postID), "/posts/{id}", nil, &raw); err != nil {
		return nil, err
	}
	var comments []datatypes.Comment
	if err := decodeList(raw, &comments, "comments"); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment adds a comment to a post.
func (c *Client) CreateComment(ctx context.Context, postID int64, in datatypes.CommentCreateRequest) (datatypes.Comment, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, postPath(postID)+"/comments", "/posts/{id}/comments", in, &raw); err != nil {
		return datatypes.Comment{}, err
	}
	var comment datatypes.Comment
	if err := decodeEntity(raw, &comment); err != nil {
		return datatypes.Comment{}, err
	}
	return comment, nil
}

// UpdateComment replaces the content of a comment.
func (c *Client) UpdateComment(ctx context.Context, postID, commentID int64, in datatypes.CommentInput) (datatypes.Comment, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPut, commentPath(postID, commentID), "/posts/{id}/comments/{cid}", in, &raw); err != nil {
		return datatypes.Comment{}, err
	}
	var comment datatypes.Comment
	if err := decodeEntity(raw, &comment); err != nil {
		return datatypes.Comment{}, err
	}
	return comment, nil
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, postID, commentID int64) error {
	return c.do(ctx, http.MethodDelete, commentPath(postID, commentID), "/posts/{id}/comments/{cid}", nil, nil)
}

// =============================================================================
// Transport
// =============================================================================

func postPath(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10)
}

func commentPath(postID, commentID int64) string {
	return postPath(postID) + "/comments/" + strconv.FormatInt(commentID, 10)
}

// do sends one request and decodes a 2xx body into out (when non-nil).
// route is the templated path used for span names and metric labels.
func (c *Client) do(ctx context.Context, method, path, route string, body, out any) (err error) {
	ctx, span := tracer.Start(ctx, "api "+method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
	)
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		recordRequest(ctx, method, route, status, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err = c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf("encode request: %w", mErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		if s := c.session.Get(); s.Token != nil {
			req.Header.Set("Authorization", "Bearer "+*s.Token)
		}
	}
	span.SetAttributes(attribute.Bool("auth.token_present", req.Header.Get("Authorization") != ""))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if status < 200 || status > 299 {
		return &Error{Status: status, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// errorMessage extracts "message" (or "error") from an error body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// decodeEntity accepts a bare object or one wrapped in {"data": {...}}.
func decodeEntity(raw json.RawMessage, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: empty body", ErrDecode)
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		if d := bytes.TrimSpace(env.Data); len(d) > 0 && d[0] == '{' {
			raw = d
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// decodeList accepts a bare array, {"data":[...]}, and, when nestedKey is
// set, {"data":{nestedKey:[...]}}. Other shapes decode to an empty list.
func decodeList(raw json.RawMessage, out any, nestedKey string) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		return unmarshalList(trimmed, out)
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	data := bytes.TrimSpace(env.Data)
	switch {
	case len(data) == 0:
		return nil
	case data[0] == '[':
		return unmarshalList(data, out)
	case data[0] == '{' && nestedKey != "":
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(data, &nested); err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if inner := bytes.TrimSpace(nested[nestedKey]); len(inner) > 0 && inner[0] == '[' {
			return unmarshalList(inner, out)
		}
	}
	return nil
}

func unmarshalList(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// =============================================================================
// Instrumentation
// =============================================================================

func recordRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	requestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}
