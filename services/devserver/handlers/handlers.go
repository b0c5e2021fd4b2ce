// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the blog REST API served by the development
// server.
//
// # Response Shapes
//
// Errors are {"message": "..."} with a 4xx/5xx status. Lists and the post
// detail are wrapped in {"data": ...}; created and updated entities are
// returned bare. The blog client decodes both forms.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/devserver/middleware"
	"github.com/AleutianAI/blogdeck/services/devserver/store"
)

// Response messages.
const (
	MsgRegistered      = "Registration successful"
	MsgLoggedIn        = "Login successful"
	MsgLoggedOut       = "Logged out"
	MsgInvalidBody     = "Invalid request body"
	MsgInvalidRegister = "Username and a password of at least 8 characters are required"
	MsgInvalidLogin    = "Username and password are required"
	MsgBadCredentials  = "Invalid username or password"
	MsgUsernameTaken   = "Username already taken"
	MsgInvalidPost     = "Title and content are required"
	MsgInvalidComment  = "Comment content is required"
	MsgInvalidID       = "Invalid id"
	MsgPostNotFound    = "Post not found"
	MsgCommentNotFound = "Comment not found"
	MsgNotYourPost     = "Not your post"
	MsgNotYourComment  = "Not your comment"
	MsgInternal        = "Internal server error"
)

// DefaultTokenTTL is the lifetime of a login token.
const DefaultTokenTTL = 24 * time.Hour

const (
	postIDParam    = "id"
	commentIDParam = "cid"
)

// Config configures a Handler.
type Config struct {
	// TokenTTL is the lifetime of issued tokens. Zero uses DefaultTokenTTL.
	TokenTTL time.Duration

	// PasswordCost is the bcrypt cost. Zero uses bcrypt.DefaultCost.
	PasswordCost int

	// Now is the clock. Nil uses time.Now.
	Now func() time.Time

	// Logger receives handler errors. Nil uses slog.Default.
	Logger *slog.Logger
}

// Handler serves the blog API from a store.
//
// # Thread Safety
//
// Safe for concurrent use; all state lives in the store.
type Handler struct {
	store        store.Store
	tokenTTL     time.Duration
	passwordCost int
	now          func() time.Time
	logger       *slog.Logger
}

// New returns a Handler over s.
func New(s store.Store, cfg Config) *Handler {
	h := &Handler{
		store:        s,
		tokenTTL:     cfg.TokenTTL,
		passwordCost: cfg.PasswordCost,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = DefaultTokenTTL
	}
	if h.passwordCost == 0 {
		h.passwordCost = bcrypt.DefaultCost
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Store returns the backing store, for token lookups in middleware.
func (h *Handler) Store() store.Store {
	return h.store
}

type postDetail struct {
	datatypes.Post
	Comments []datatypes.Comment `json:"comments"`
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

func (h *Handler) internal(c *gin.Context, op string, err error) {
	h.logger.Error("handler failed", "op", op, "error", err)
	fail(c, http.StatusInternalServerError, MsgInternal)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, MsgInvalidID)
		return 0, false
	}
	return id, true
}

// =============================================================================
// Health
// =============================================================================

// Health reports 200 when the store answers a ping, 503 otherwise.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// =============================================================================
// Auth
// =============================================================================

// Register creates an account. 201 {"message"} on success, 409 when the
// username is taken.
func (h *Handler) Register(c *gin.Context) {
	var in datatypes.Registration
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidBody)
		return
	}
	if err := in.Validate(); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidRegister)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), h.passwordCost)
	if err != nil {
		h.internal(c, "register.hash", err)
		return
	}

	err = h.store.CreateUser(c.Request.Context(), in.Username, hash)
	if errors.Is(err, store.ErrUsernameTaken) {
		fail(c, http.StatusConflict, MsgUsernameTaken)
		return
	}
	if err != nil {
		h.internal(c, "register.create", err)
		return
	}

	h.logger.Info("user registered", "username", in.Username)
	c.JSON(http.StatusCreated, gin.H{"message": MsgRegistered})
}

// Login checks the password and issues a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var in datatypes.Credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidBody)
		return
	}
	if err := in.Validate(); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidLogin)
		return
	}

	ctx := c.Request.Context()
	user, err := h.store.GetUser(ctx, in.Username)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusUnauthorized, MsgBadCredentials)
		return
	}
	if err != nil {
		h.internal(c, "login.user", err)
		return
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(in.Password)) != nil {
		fail(c, http.StatusUnauthorized, MsgBadCredentials)
		return
	}

	token := uuid.NewString()
	if err := h.store.CreateToken(ctx, token, user.Username, h.now().Add(h.tokenTTL)); err != nil {
		h.internal(c, "login.token", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": datatypes.LoginData{
			Username:  user.Username,
			Token:     token,
			ExpiresIn: int64(h.tokenTTL / time.Second),
		},
		"message": MsgLoggedIn,
	})
}

// Logout revokes the caller's token. Requires RequireAuth.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.store.DeleteToken(c.Request.Context(), middleware.GetToken(c)); err != nil {
		h.internal(c, "logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": MsgLoggedOut})
}

// =============================================================================
// Posts
// =============================================================================

// ListPosts returns {"data": [...]}, newest first.
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.store.ListPosts(c.Request.Context())
	if err != nil {
		h.internal(c, "posts.list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": posts})
}

// GetPost returns {"data": {...post, "comments": [...]}}.
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := pathID(c, postIDParam)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	post, err := h.store.GetPost(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, MsgPostNotFound)
		return
	}
	if err != nil {
		h.internal(c, "posts.get", err)
		return
	}

	comments, err := h.store.ListComments(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.internal(c, "posts.get.comments", err)
		return
	}
	if comments == nil {
		comments = []datatypes.Comment{}
	}
	c.JSON(http.StatusOK, gin.H{"data": postDetail{Post: post, Comments: comments}})
}

// CreatePost stores a post authored by the caller and returns it bare.
// Any authorUsername in the body is ignored.
func (h *Handler) CreatePost(c *gin.Context) {
	var in datatypes.PostCreateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidBody)
		return
	}
	if err := (datatypes.PostInput{Title: in.Title, Content: in.Content}).Validate(); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidPost)
		return
	}

	post, err := h.store.CreatePost(c.Request.Context(), datatypes.Post{
		Title:          in.Title,
		Content:        in.Content,
		AuthorUsername: middleware.GetUsername(c),
	})
	if err != nil {
		h.internal(c, "posts.create", err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// ownPost loads the post and checks the caller wrote it. It writes the
// error response and returns false on any failure.
func (h *Handler) ownPost(c *gin.Context) (datatypes.Post, bool) {
	id, ok := pathID(c, postIDParam)
	if !ok {
		return datatypes.Post{}, false
	}
	post, err := h.store.GetPost(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, MsgPostNotFound)
		return datatypes.Post{}, false
	}
	if err != nil {
		h.internal(c, "posts.owner", err)
		return datatypes.Post{}, false
	}
	if post.AuthorUsername != middleware.GetUsername(c) {
		fail(c, http.StatusForbidden, MsgNotYourPost)
		return datatypes.Post{}, false
	}
	return post, true
}

// UpdatePost replaces title and content of the caller's post.
func (h *Handler) UpdatePost(c *gin.Context) {
	var in datatypes.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidBody)
		return
	}
	if err := in.Validate(); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidPost)
		return
	}

	post, ok := h.ownPost(c)
	if !ok {
		return
	}
	updated, err := h.store.UpdatePost(c.Request.Context(), post.ID, in.Title, in.Content)
	if err != nil {
		h.internal(c, "posts.update", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeletePost removes the caller's post and its comments.
func (h *Handler) DeletePost(c *gin.Context) {
	post, ok := h.ownPost(c)
	if !ok {
		return
	}
	if err := h.store.DeletePost(c.Request.Context(), post.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		h.internal(c, "posts.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// Comments
// =============================================================================

// CreateComment stores a comment by the caller on an existing post.
func (h *Handler) CreateComment(c *gin.Context) {
	postID, ok := pathID(c, postIDParam)
	if !ok {
		return
	}
	var in datatypes.CommentCreateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidBody)
		return
	}
	if err := (datatypes.CommentInput{Content: in.Content}).Validate(); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidComment)
		return
	}

	comment, err := h.store.CreateComment(c.Request.Context(), datatypes.Comment{
		PostID:         postID,
		Content:        in.Content,
		AuthorUsername: middleware.GetUsername(c),
	})
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, MsgPostNotFound)
		return
	}
	if err != nil {
		h.internal(c, "comments.create", err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) ownComment(c *gin.Context) (datatypes.Comment, bool) {
	postID, ok := pathID(c, postIDParam)
	if !ok {
		return datatypes.Comment{}, false
	}
	commentID, ok := pathID(c, commentIDParam)
	if !ok {
		return datatypes.Comment{}, false
	}
	comment, err := h.store.GetComment(c.Request.Context(), postID, commentID)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, MsgCommentNotFound)
		return datatypes.Comment{}, false
	}
	if err != nil {
		h.internal(c, "comments.owner", err)
		return datatypes.Comment{}, false
	}
	if comment.AuthorUsername != middleware.GetUsername(c) {
		fail(c, http.StatusForbidden, MsgNotYourComment)
		return datatypes.Comment{}, false
	}
	return comment, true
}

// UpdateComment replaces the content of the caller's comment.
func (h *Handler) UpdateComment(c *gin.Context) {
	var in datatypes.CommentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidBody)
		return
	}
	if err := in.Validate(); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidComment)
		return
	}

	comment, ok := h.ownComment(c)
	if !ok {
		return
	}
	updated, err := h.store.UpdateComment(c.Request.Context(), comment.PostID, comment.ID, in.Content)
	if err != nil {
		h.internal(c, "comments.update", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteComment removes the caller's comment.
func (h *Handler) DeleteComment(c *gin.Context) {
	comment, ok := h.ownComment(c)
	if !ok {
		return
	}
	if err := h.store.DeleteComment(c.Request.Context(), comment.PostID, comment.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		h.internal(c, "comments.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}
