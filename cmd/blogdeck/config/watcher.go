// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is how long the watcher waits for a save to settle.
const DefaultReloadDebounce = 150 * time.Millisecond

// ReloadHandler receives every valid configuration read after a change.
type ReloadHandler func(BlogdeckConfig)

// Watcher reloads the config file when it changes on disk.
//
// # Description
//
// Long-running commands (tui, serve) use it to pick up edits without a
// restart. The parent directory is watched rather than the file, because
// editors commonly save by writing a temporary file and renaming it over
// the original. Events for other files in the directory are ignored.
//
// A burst of events is debounced into one reload. A file that fails to
// parse or validate is logged and skipped; the handler only ever sees
// valid configurations.
//
// # Thread Safety
//
// Start must be called once. The handler runs on Start's goroutine.
type Watcher struct {
	path     string
	handler  ReloadHandler
	logger   *slog.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the config at path.
//
// # Description
//
// Watching begins here, so a change made between NewWatcher and Start is
// not lost.
//
// # Inputs
//
//   - path: Config file location, or "" for DefaultPath.
//   - handler: Called with each reloaded configuration.
//   - logger: May be nil.
//
// # Outputs
//
//   - *Watcher: Ready to Start. Callers must Stop it.
//   - error: Path resolution or fsnotify failures.
func NewWatcher(path string, handler ReloadHandler, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	return &Watcher{
		path:     abs,
		handler:  handler,
		logger:   logger,
		debounce: DefaultReloadDebounce,
		watcher:  watcher,
	}, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Start delivers reloads until ctx is cancelled or Stop is called.
// Blocks; run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.logger.Debug("watching config", "path", w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Debug("config watcher stopping")
			return
		}
	}
}

// Stop releases the watch. Safe to call more than once.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func (w *Watcher) reload() {
	cfg, err := Reload(w.path)
	if err != nil {
		w.logger.Warn("config change ignored", "path", w.path, "error", err)
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	if w.handler != nil {
		w.handler(cfg)
	}
}
