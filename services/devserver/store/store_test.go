// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

// runStoreContract exercises behaviour every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, "Ana", []byte("hash")))
		assert.ErrorIs(t, s.CreateUser(ctx, "ana", []byte("other")), ErrUsernameTaken)

		u, err := s.GetUser(ctx, "ANA")
		require.NoError(t, err)
		assert.Equal(t, "Ana", u.Username)
		assert.Equal(t, []byte("hash"), u.PasswordHash)

		_, err = s.GetUser(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("tokens", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, "bo", []byte("hash")))
		require.NoError(t, s.CreateToken(ctx, "live", "bo", time.Now().Add(time.Hour)))
		require.NoError(t, s.CreateToken(ctx, "stale", "bo", time.Now().Add(-time.Minute)))

		username, err := s.LookupToken(ctx, "live")
		require.NoError(t, err)
		assert.Equal(t, "bo", username)

		_, err = s.LookupToken(ctx, "stale")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.DeleteToken(ctx, "live"))
		require.NoError(t, s.DeleteToken(ctx, "never-issued"))
		_, err = s.LookupToken(ctx, "live")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("posts", func(t *testing.T) {
		s := newStore(t)
		first, err := s.CreatePost(ctx, datatypes.Post{Title: "one", Content: "c1", AuthorUsername: "ana"})
		require.NoError(t, err)
		second, err := s.CreatePost(ctx, datatypes.Post{Title: "two", Content: "c2", AuthorUsername: "bo"})
		require.NoError(t, err)
		assert.Greater(t, second.ID, first.ID)
		require.NotNil(t, first.CreatedAt)

		posts, err := s.ListPosts(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, second.ID, posts[0].ID)

		updated, err := s.UpdatePost(ctx, first.ID, "one!", "c1!")
		require.NoError(t, err)
		assert.Equal(t, "one!", updated.Title)
		assert.Equal(t, "ana", updated.AuthorUsername)

		_, err = s.UpdatePost(ctx, 9999, "x", "y")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.DeletePost(ctx, first.ID))
		_, err = s.GetPost(ctx, first.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeletePost(ctx, first.ID), ErrNotFound)
	})

	t.Run("comments", func(t *testing.T) {
		s := newStore(t)
		post, err := s.CreatePost(ctx, datatypes.Post{Title: "t", Content: "c", AuthorUsername: "ana"})
		require.NoError(t, err)

		_, err = s.CreateComment(ctx, datatypes.Comment{PostID: 9999, Content: "x"})
		assert.ErrorIs(t, err, ErrNotFound)

		c1, err := s.CreateComment(ctx, datatypes.Comment{PostID: post.ID, Content: "first", AuthorUsername: "bo"})
		require.NoError(t, err)
		c2, err := s.CreateComment(ctx, datatypes.Comment{PostID: post.ID, Content: "second", AuthorUsername: "ana"})
		require.NoError(t, err)
		assert.False(t, c1.CreatedAt.IsZero())

		comments, err := s.ListComments(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, c1.ID, comments[0].ID)

		_, err = s.ListComments(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)

		updated, err := s.UpdateComment(ctx, post.ID, c2.ID, "edited")
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Content)

		_, err = s.GetComment(ctx, post.ID+1, c2.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.DeleteComment(ctx, post.ID, c1.ID))
		assert.ErrorIs(t, s.DeleteComment(ctx, post.ID, c1.ID), ErrNotFound)

		require.NoError(t, s.DeletePost(ctx, post.ID))
		_, err = s.GetComment(ctx, post.ID, c2.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}

func TestMemory(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s := NewMemory(nil)
		t.Cleanup(s.Close)
		return s
	})
}

func TestMemory_TokenExpiryUsesClock(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemory(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.CreateToken(ctx, "tok", "ana", now.Add(time.Minute)))
	_, err := s.LookupToken(ctx, "tok")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = s.LookupToken(ctx, "tok")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_CreatedAtFromClock(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemory(func() time.Time { return now })

	post, err := s.CreatePost(context.Background(), datatypes.Post{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.True(t, now.Equal(post.CreatedAt.Time))
}

// TestPostgres runs the contract against a real database when
// BLOGDECK_TEST_POSTGRES_DSN is set.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("BLOGDECK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BLOGDECK_TEST_POSTGRES_DSN not set")
	}

	runStoreContract(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewPostgres(ctx, PostgresConfig{DSN: dsn, MaxConns: 4})
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE blog_comments, blog_posts, blog_tokens, blog_users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		t.Cleanup(s.Close)
		return s
	})
}

func TestNewPostgres_RequiresDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), PostgresConfig{})
	assert.Error(t, err)
}

func TestNewPostgres_BadDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), PostgresConfig{DSN: "postgres://%zz"})
	assert.Error(t, err)
}
