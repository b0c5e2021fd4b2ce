// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package state provides observable value cells and the blog Store.
//
// # Description
//
// A Cell holds one value. Reads see the latest write immediately, and every
// write synchronously notifies all current subscribers in the order they
// subscribed. The Store groups the four cells shared by the blog
// components and is passed explicitly to each of them.
//
// # Thread Safety
//
// Cells may be written from any goroutine (timer callbacks included).
// Notification of one write finishes before the next write to the same
// cell notifies, so every subscriber sees the writes in order.
//
// A subscriber must not write the cell it is subscribed to; doing so
// deadlocks. Writing other cells from a subscriber is fine.
package state

import (
	"sync"
)

// Cell is an observable holder of a single value.
//
// The zero value is ready to use and holds the zero T.
//
// Values of reference type (slices, pointers) must be treated as
// immutable once stored: replace them, do not modify them in place.
type Cell[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   []subscription[T]
	nextID uint64

	// dispatch serialises write+notify so subscriber order holds
	// across goroutines.
	dispatch sync.Mutex
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// NewCell returns a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies subscribers with it.
func (c *Cell[T]) Set(v T) {
	c.Update(func(T) T { return v })
}

// Update replaces the value with fn(current) atomically with respect to
// other writers, then notifies subscribers with the new value.
func (c *Cell[T]) Update(fn func(T) T) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	next := fn(c.value)
	c.value = next
	subs := make([]subscription[T], len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(next)
	}
}

// Subscribe registers fn to run after every write. The returned function
// removes the subscription; calling it more than once is harmless.
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription[T]{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
