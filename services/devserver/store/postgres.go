// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS blog_users (
	username      TEXT PRIMARY KEY,
	username_key  TEXT NOT NULL UNIQUE,
	password_hash BYTEA NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS blog_tokens (
	token      TEXT PRIMARY KEY,
	username   TEXT NOT NULL REFERENCES blog_users(username) ON DELETE CASCADE,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS blog_posts (
	id              BIGSERIAL PRIMARY KEY,
	title           TEXT NOT NULL,
	content         TEXT NOT NULL,
	author_username TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS blog_comments (
	id              BIGSERIAL PRIMARY KEY,
	post_id         BIGINT NOT NULL REFERENCES blog_posts(id) ON DELETE CASCADE,
	content         TEXT NOT NULL,
	author_username TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS blog_comments_post_idx ON blog_comments(post_id);
`

// PostgresConfig configures NewPostgres.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
}

// Postgres is a Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, pings and migrates.
//
// # Inputs
//
//   - ctx: Bounds the connect, ping and migration.
//   - cfg: DSN is required. MaxConns <= 0 keeps the pgx default.
//
// # Outputs
//
//   - *Postgres: Caller must Close it.
//   - error: A parse, connect or migration failure.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres DSN is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Migrate creates the tables when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (p *Postgres) CreateUser(ctx context.Context, username string, passwordHash []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO blog_users (username, username_key, password_hash) VALUES ($1, $2, $3)`,
		username, userKey(username), passwordHash)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrUsernameTaken
	}
	return err
}

func (p *Postgres) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`SELECT username, password_hash, created_at FROM blog_users WHERE username_key = $1`,
		userKey(username)).Scan(&u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

func (p *Postgres) CreateToken(ctx context.Context, token, username string, expiresAt time.Time) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO blog_tokens (token, username, expires_at) VALUES ($1, $2, $3)`,
		token, username, expiresAt)
	return err
}

func (p *Postgres) LookupToken(ctx context.Context, token string) (string, error) {
	var username string
	err := p.pool.QueryRow(ctx,
		`SELECT username FROM blog_tokens WHERE token = $1 AND expires_at > now()`,
		token).Scan(&username)
	if err != nil {
		return "", notFound(err)
	}
	return username, nil
}

func (p *Postgres) DeleteToken(ctx context.Context, token string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM blog_tokens WHERE token = $1`, token)
	return err
}

func scanPost(row pgx.Row) (datatypes.Post, error) {
	var (
		post      datatypes.Post
		createdAt time.Time
	)
	if err := row.Scan(&post.ID, &post.Title, &post.Content, &post.AuthorUsername, &createdAt); err != nil {
		return datatypes.Post{}, err
	}
	post.CreatedAt = datatypes.TimestampPtr(createdAt.UTC())
	return post, nil
}

func scanComment(row pgx.Row) (datatypes.Comment, error) {
	var (
		c         datatypes.Comment
		createdAt time.Time
	)
	if err := row.Scan(&c.ID, &c.PostID, &c.Content, &c.AuthorUsername, &createdAt); err != nil {
		return datatypes.Comment{}, err
	}
	c.CreatedAt = datatypes.NewTimestamp(createdAt.UTC())
	return c, nil
}

func (p *Postgres) ListPosts(ctx context.Context) ([]datatypes.Post, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, title, content, author_username, created_at FROM blog_posts ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]datatypes.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, post)
	}
	return out, rows.Err()
}

func (p *Postgres) GetPost(ctx context.Context, id int64) (datatypes.Post, error) {
	post, err := scanPost(p.pool.QueryRow(ctx,
		`SELECT id, title, content, author_username, created_at FROM blog_posts WHERE id = $1`, id))
	if err != nil {
		return datatypes.Post{}, notFound(err)
	}
	return post, nil
}

func (p *Postgres) CreatePost(ctx context.Context, in datatypes.Post) (datatypes.Post, error) {
	return scanPost(p.pool.QueryRow(ctx,
		`INSERT INTO blog_posts (title, content, author_username) VALUES ($1, $2, $3)
		 RETURNING id, title, content, author_username, created_at`,
		in.Title, in.Content, in.AuthorUsername))
}

func (p *Postgres) UpdatePost(ctx context.Context, id int64, title, content string) (datatypes.Post, error) {
	post, err := scanPost(p.pool.QueryRow(ctx,
		`UPDATE blog_posts SET title = $2, content = $3 WHERE id = $1
		 RETURNING id, title, content, author_username, created_at`,
		id, title, content))
	if err != nil {
		return datatypes.Post{}, notFound(err)
	}
	return post, nil
}

func (p *Postgres) DeletePost(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListComments(ctx context.Context, postID int64) ([]datatypes.Comment, error) {
	if _, err := p.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, post_id, content, author_username, created_at FROM blog_comments
		 WHERE post_id = $1 ORDER BY id ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]datatypes.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) GetComment(ctx context.Context, postID, id int64) (datatypes.Comment, error) {
	c, err := scanComment(p.pool.QueryRow(ctx,
		`SELECT id, post_id, content, author_username, created_at FROM blog_comments
		 WHERE post_id = $1 AND id = $2`, postID, id))
	if err != nil {
		return datatypes.Comment{}, notFound(err)
	}
	return c, nil
}

func (p *Postgres) CreateComment(ctx context.Context, in datatypes.Comment) (datatypes.Comment, error) {
	if _, err := p.GetPost(ctx, in.PostID); err != nil {
		return datatypes.Comment{}, err
	}
	return scanComment(p.pool.QueryRow(ctx,
		`INSERT INTO blog_comments (post_id, content, author_username) VALUES ($1, $2, $3)
		 RETURNING id, post_id, content, author_username, created_at`,
		in.PostID, in.Content, in.AuthorUsername))
}

func (p *Postgres) UpdateComment(ctx context.Context, postID, id int64, content string) (datatypes.Comment, error) {
	c, err := scanComment(p.pool.QueryRow(ctx,
		`UPDATE blog_comments SET content = $3 WHERE post_id = $1 AND id = $2
		 RETURNING id, post_id, content, author_username, created_at`,
		postID, id, content))
	if err != nil {
		return datatypes.Comment{}, notFound(err)
	}
	return c, nil
}

func (p *Postgres) DeleteComment(ctx context.Context, postID, id int64) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM blog_comments WHERE post_id = $1 AND id = $2`, postID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}
