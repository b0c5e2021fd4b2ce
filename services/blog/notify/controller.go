// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify manages the lifecycle of the transient notification banner.
//
// # Description
//
// The Controller writes the Store's Notification cell and schedules its
// automatic clearing. Every Show and every forced Clear bumps a generation
// counter; a scheduled clear only acts when the generation it captured is
// still current. An overwritten notification's timer can therefore never
// clear its replacement.
//
// # Lifecycle
//
//	Empty --Show--> Shown(kind, message, deadline, generation)
//	Shown --timer (same generation)--> Empty
//	Shown --Clear (session write, navigation)--> Empty
//	Shown --Show--> Shown (replaced)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Subscribers of the Notification
// cell run while the controller lock is held and must not call back into
// the controller.
package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/state"
)

// =============================================================================
// Delays
// =============================================================================

// ErrInvalidDelays is returned by Delays.Validate.
var ErrInvalidDelays = errors.New("invalid notification delays")

// Delays configures how long each kind of notification stays visible.
type Delays struct {
	// CreateSuccess applies to successful creates. Default 1500ms.
	CreateSuccess time.Duration `yaml:"create_success"`

	// Success applies to every other successful operation. Default 2000ms.
	Success time.Duration `yaml:"success"`

	// Error applies to every failure. Default 2500ms.
	Error time.Duration `yaml:"error"`
}

// DefaultDelays returns 1500ms / 2000ms / 2500ms.
func DefaultDelays() Delays {
	return Delays{
		CreateSuccess: 1500 * time.Millisecond,
		Success:       2000 * time.Millisecond,
		Error:         2500 * time.Millisecond,
	}
}

// Validate checks that every delay is positive and that errors stay
// visible at least as long as any success.
func (d Delays) Validate() error {
	if d.CreateSuccess <= 0 || d.Success <= 0 || d.Error <= 0 {
		return fmt.Errorf("%w: delays must be positive", ErrInvalidDelays)
	}
	if d.Error < d.Success || d.Error < d.CreateSuccess {
		return fmt.Errorf("%w: error delay %s shorter than a success delay", ErrInvalidDelays, d.Error)
	}
	return nil
}

// =============================================================================
// Recorder
// =============================================================================

// ClearReason labels why a notification left the screen.
type ClearReason string

const (
	// ClearExpired means its own timer fired.
	ClearExpired ClearReason = "expired"

	// ClearForced means a session or navigation event cleared it.
	ClearForced ClearReason = "forced"

	// ClearReplaced means a newer notification overwrote it.
	ClearReplaced ClearReason = "replaced"
)

// Recorder receives lifecycle events for metrics.
type Recorder interface {
	NotificationShown(kind string)
	NotificationCleared(reason string)
	StaleTimerDiscarded()
}

type nopRecorder struct{}

func (nopRecorder) NotificationShown(string)   {}
func (nopRecorder) NotificationCleared(string) {}
func (nopRecorder) StaleTimerDiscarded()       {}

// =============================================================================
// Controller
// =============================================================================

// Controller owns the Notification cell of one Store.
type Controller struct {
	cell     *state.Cell[*datatypes.Notification]
	clock    Clock
	logger   *slog.Logger
	recorder Recorder

	mu         sync.Mutex
	delays     Delays
	generation uint64
	timer      Timer
	deadline   time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(ctrl *Controller) {
		if c != nil {
			ctrl.clock = c
		}
	}
}

// WithDelays replaces DefaultDelays. Invalid delays are ignored with a
// warning; callers should Validate configuration earlier.
func WithDelays(d Delays) Option {
	return func(ctrl *Controller) {
		if err := d.Validate(); err != nil {
			ctrl.logger.Warn("ignoring notification delays", "error", err)
			return
		}
		ctrl.delays = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctrl *Controller) {
		if l != nil {
			ctrl.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(ctrl *Controller) {
		if r != nil {
			ctrl.recorder = r
		}
	}
}

// NewController creates a controller for store's Notification cell.
//
// # Description
//
// Options are applied in order, so WithLogger should precede WithDelays
// for the warning to reach the right logger.
//
// # Inputs
//
//   - store: The store whose Notification cell is managed. Must be valid.
//   - opts: Clock, delays, logger and recorder overrides.
//
// # Outputs
//
//   - *Controller: Ready to use.
func NewController(store *state.Store, opts ...Option) *Controller {
	ctrl := &Controller{
		cell:     store.Notification,
		clock:    SystemClock{},
		delays:   DefaultDelays(),
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	return ctrl
}

// Delays returns the configured delays.
func (c *Controller) Delays() Delays {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delays
}

// SetDelays replaces the delays used by later notifications. A banner
// already on screen keeps its deadline. Invalid delays are rejected and
// the current ones stay in effect.
func (c *Controller) SetDelays(d Delays) error {
	if err := d.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays = d
	c.logger.Debug("notification delays updated",
		"create_success", d.CreateSuccess,
		"success", d.Success,
		"error", d.Error,
	)
	return nil
}

// Show replaces any current notification with (kind, message) and
// schedules its clearing after delay. A non-positive delay keeps it until
// it is replaced or force-cleared.
//
// # Outputs
//
//   - uint64: The generation assigned to this notification.
func (c *Controller) Show(kind datatypes.Kind, message string, delay time.Duration) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cell.Get() != nil {
		c.recorder.NotificationCleared(string(ClearReplaced))
	}
	c.stopTimerLocked()
	c.generation++
	gen := c.generation

	if delay > 0 {
		c.deadline = c.clock.Now().Add(delay)
		c.timer = c.clock.AfterFunc(delay, func() { c.expire(gen) })
	} else {
		c.deadline = time.Time{}
	}

	c.cell.Set(&datatypes.Notification{Kind: kind, Message: message})
	c.recorder.NotificationShown(string(kind))
	c.logger.Debug("notification shown", "kind", kind, "generation", gen, "delay", delay)
	return gen
}

// CreateSuccess shows a success with the create-success delay.
func (c *Controller) CreateSuccess(message string) uint64 {
	return c.Show(datatypes.KindSuccess, message, c.Delays().CreateSuccess)
}

// Success shows a success with the default success delay.
func (c *Controller) Success(message string) uint64 {
	return c.Show(datatypes.KindSuccess, message, c.Delays().Success)
}

// Error shows an error with the error delay.
func (c *Controller) Error(message string) uint64 {
	return c.Show(datatypes.KindError, message, c.Delays().Error)
}

// Clear empties the banner immediately and invalidates any pending timer.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	c.generation++
	c.deadline = time.Time{}

	if c.cell.Get() == nil {
		return
	}
	c.cell.Set(nil)
	c.recorder.NotificationCleared(string(ClearForced))
}

// Generation returns the current generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Deadline returns when the current notification expires, or the zero
// time when nothing is scheduled.
func (c *Controller) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

// ClearOnChange force-clears the banner after every write to cell.
// Returns the unsubscribe function.
func ClearOnChange[T any](c *Controller, cell *state.Cell[T]) func() {
	return cell.Subscribe(func(T) { c.Clear() })
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.recorder.StaleTimerDiscarded()
		c.logger.Debug("stale notification timer discarded", "generation", gen, "current", c.generation)
		return
	}
	c.timer = nil
	c.deadline = time.Time{}
	if c.cell.Get() == nil {
		return
	}
	c.cell.Set(nil)
	c.recorder.NotificationCleared(string(ClearExpired))
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
