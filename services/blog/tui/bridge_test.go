// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/flows"
)

func TestWatch_SignalsOnCellWrites(t *testing.T) {
	st, w := newTestWiring(t, newStubBackend(), false)
	b := Watch(w)
	defer b.Close()

	writes := []func(){
		func() { st.Session.Set(datatypes.NewSession("ana", "tok")) },
		func() { st.Posts.Set([]datatypes.Post{{ID: 1}}) },
		func() { st.Comments.Set(nil) },
		func() { w.Notifier.Success("hi") },
		func() { w.Comments.ToggleOrder() },
		func() { w.Navigator.Navigate("/posts") },
	}
	for i, write := range writes {
		write()
		select {
		case <-b.Changes():
		default:
			t.Fatalf("write %d did not signal", i)
		}
	}
}

func TestWatch_CoalescesBursts(t *testing.T) {
	st, w := newTestWiring(t, newStubBackend(), false)
	b := Watch(w)
	defer b.Close()

	for i := 0; i < 10; i++ {
		st.Posts.Set([]datatypes.Post{{ID: int64(i)}})
	}

	<-b.Changes()
	select {
	case <-b.Changes():
		t.Fatal("expected a single pending signal")
	default:
	}
}

func TestWatch_InactiveWiring(t *testing.T) {
	b := Watch(&flows.Wiring{})
	assert.NotPanics(t, b.Close)
}

func TestBridge_CloseUnsubscribes(t *testing.T) {
	st, w := newTestWiring(t, newStubBackend(), false)
	before := st.Posts.Subscribers()

	b := Watch(w)
	assert.Equal(t, before+1, st.Posts.Subscribers())

	b.Close()
	b.Close()
	assert.Equal(t, before, st.Posts.Subscribers())
}

func TestBridge_Forward(t *testing.T) {
	st, w := newTestWiring(t, newStubBackend(), false)
	b := Watch(w)

	got := make(chan tea.Msg, 4)
	done := make(chan struct{})
	go func() {
		b.Forward(context.Background(), func(msg tea.Msg) { got <- msg })
		close(done)
	}()

	st.Posts.Set([]datatypes.Post{{ID: 7}})
	select {
	case msg := <-got:
		assert.IsType(t, StateChangedMsg{}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no message forwarded")
	}

	b.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Forward did not stop after Close")
	}
}

func TestBridge_ForwardStopsOnContext(t *testing.T) {
	_, w := newTestWiring(t, newStubBackend(), false)
	b := Watch(w)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Forward(ctx, func(tea.Msg) { t.Fatal("unexpected send") })
}

func TestCheckTerminal(t *testing.T) {
	assert.ErrorIs(t, CheckTerminal(nil), ErrNoTerminal)

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()
	assert.ErrorIs(t, CheckTerminal(f), ErrNoTerminal)
}

func TestRun_NotWired(t *testing.T) {
	assert.ErrorIs(t, Run(context.Background(), &flows.Wiring{}), ErrNotWired)
}
