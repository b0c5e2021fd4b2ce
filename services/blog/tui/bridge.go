// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/flows"
	"github.com/AleutianAI/blogdeck/services/blog/navigation"
)

// StateChangedMsg tells the model that at least one watched cell changed
// since the last render.
type StateChangedMsg struct{}

// Bridge turns cell writes into StateChangedMsg deliveries.
//
// # Description
//
// Subscribers run on whatever goroutine wrote the cell, which may be the
// bubbletea event loop itself. They must not call Program.Send; they post
// a non-blocking signal into a one-slot channel and Forward delivers it
// from its own goroutine. Bursts of writes collapse into one message.
//
// # Thread Safety
//
// Safe for concurrent use.
type Bridge struct {
	signal chan struct{}
	done   chan struct{}

	closeOnce sync.Once
	unsub     []func()
}

// Watch subscribes to every cell the view renders.
func Watch(w *flows.Wiring) *Bridge {
	b := &Bridge{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if !w.Active() {
		return b
	}

	b.unsub = append(b.unsub,
		w.Store.Session.Subscribe(func(datatypes.Session) { b.notify() }),
		w.Store.Posts.Subscribe(func([]datatypes.Post) { b.notify() }),
		w.Store.Comments.Subscribe(func([]datatypes.Comment) { b.notify() }),
		w.Store.Notification.Subscribe(func(*datatypes.Notification) { b.notify() }),
		w.Posts.Recent.Subscribe(func(int64) { b.notify() }),
		w.Posts.Editing.Subscribe(func(*datatypes.Post) { b.notify() }),
		w.Comments.Order.Subscribe(func(flows.Order) { b.notify() }),
		w.Navigator.Subscribe(func(navigation.Route) { b.notify() }),
	)
	return b
}

func (b *Bridge) notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Changes exposes the signal channel, for tests.
func (b *Bridge) Changes() <-chan struct{} {
	return b.signal
}

// Forward calls send with a StateChangedMsg for every signal until ctx is
// done or the bridge is closed.
func (b *Bridge) Forward(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-b.signal:
			send(StateChangedMsg{})
		}
	}
}

// Close removes every subscription and stops Forward. Safe to call more
// than once.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		for _, fn := range b.unsub {
			fn()
		}
		close(b.done)
	})
}
