// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessionstore persists the blog session in BadgerDB so the CLI
// stays logged in between invocations.
//
// Only one record is kept. A logged-out session is stored as the absence
// of that record.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/state"
)

var (
	// ErrPathRequired is returned by Open without a path for a persistent
	// store.
	ErrPathRequired = errors.New("path is required for persistent session store")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session store closed")
)

var sessionKey = []byte("blogdeck/session/v1")

// Config configures a Store.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps the data in memory only. Used by tests.
	InMemory bool

	// SyncWrites makes every save durable before returning.
	SyncWrites bool

	// TTL expires the stored session after the given duration. Zero keeps
	// it until logout.
	TTL time.Duration

	// Logger receives store and badger logs. Nil disables badger's logging.
	Logger *slog.Logger
}

// record is the stored form. The token is kept as-is; the data directory
// is created 0700.
type record struct {
	Username string    `json:"username"`
	Token    string    `json:"token"`
	SavedAt  time.Time `json:"saved_at"`
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed session store.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if needed) the store described by cfg.
//
// # Inputs
//
//   - cfg: Path is required unless InMemory is set.
//
// # Outputs
//
//   - *Store: Caller must Close it.
//   - error: ErrPathRequired, or a badger open failure.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, ErrPathRequired
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0700); err != nil {
			return nil, fmt.Errorf("create session directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &Store{db: db, ttl: cfg.TTL, logger: logger}, nil
}

// OpenInMemory opens a store that forgets everything on Close.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Close closes the database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Load returns the stored session.
//
// # Outputs
//
//   - datatypes.Session: The logged-out session when nothing is stored.
//   - bool: Whether a session was found.
//   - error: ErrClosed or a read/decode failure.
func (s *Store) Load() (datatypes.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return datatypes.Session{}, false, ErrClosed
	}

	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.Session{}, false, nil
	}
	if err != nil {
		return datatypes.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	return datatypes.NewSession(rec.Username, rec.Token), true, nil
}

// Save stores session. A logged-out session clears the store instead.
func (s *Store) Save(session datatypes.Session) error {
	if !session.LoggedIn() {
		return s.Clear()
	}

	payload, err := json.Marshal(record{
		Username: session.Username,
		Token:    session.BearerToken(),
		SavedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(sessionKey, payload)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *Store) Clear() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey)
	}); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Bind restores the stored session into cell and persists every later
// write to it.
//
// # Description
//
// The restore happens before the subscription, so it is not written back.
// Persist failures are logged, not returned; the in-memory session stays
// authoritative.
//
// # Outputs
//
//   - func(): Removes the subscription.
//   - error: A load failure. The cell is untouched and nothing is bound.
func (s *Store) Bind(cell *state.Cell[datatypes.Session]) (func(), error) {
	session, found, err := s.Load()
	if err != nil {
		return func() {}, err
	}
	if found {
		cell.Set(session)
		s.logger.Debug("session restored", "username", session.Username, "token_present", true)
	}

	return cell.Subscribe(func(next datatypes.Session) {
		if err := s.Save(next); err != nil {
			s.logger.Warn("persist session failed", "error", err)
		}
	}), nil
}
