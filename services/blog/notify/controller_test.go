// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/state"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// leakyClock never cancels timers, so only the generation guard can stop
// a stale clear.
type leakyClock struct {
	*FakeClock
}

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return false }

func (c leakyClock) AfterFunc(d time.Duration, f func()) Timer {
	c.FakeClock.AfterFunc(d, f)
	return leakyTimer{}
}

type countingRecorder struct {
	mu      sync.Mutex
	shown   map[string]int
	cleared map[string]int
	stale   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{shown: map[string]int{}, cleared: map[string]int{}}
}

func (r *countingRecorder) NotificationShown(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown[kind]++
}

func (r *countingRecorder) NotificationCleared(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared[reason]++
}

func (r *countingRecorder) StaleTimerDiscarded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func setup(t *testing.T, clock Clock) (*state.Store, *Controller, *countingRecorder) {
	t.Helper()
	store := state.NewStore()
	rec := newCountingRecorder()
	return store, NewController(store, WithClock(clock), WithRecorder(rec)), rec
}

// =============================================================================
// Delays
// =============================================================================

func TestDelays_Validate(t *testing.T) {
	tests := []struct {
		name    string
		delays  Delays
		wantErr bool
	}{
		{"defaults", DefaultDelays(), false},
		{"equal", Delays{CreateSuccess: time.Second, Success: time.Second, Error: time.Second}, false},
		{"error shorter than success", Delays{CreateSuccess: time.Second, Success: 3 * time.Second, Error: 2 * time.Second}, true},
		{"error shorter than create", Delays{CreateSuccess: 3 * time.Second, Success: time.Second, Error: 2 * time.Second}, true},
		{"zero", Delays{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.delays.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDelays)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultDelays(t *testing.T) {
	d := DefaultDelays()
	assert.Equal(t, 1500*time.Millisecond, d.CreateSuccess)
	assert.Equal(t, 2000*time.Millisecond, d.Success)
	assert.Equal(t, 2500*time.Millisecond, d.Error)
}

func TestWithDelays_InvalidIgnored(t *testing.T) {
	store := state.NewStore()
	ctrl := NewController(store, WithDelays(Delays{Success: time.Second}))
	assert.Equal(t, DefaultDelays(), ctrl.Delays())
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestController_ShowThenExpire(t *testing.T) {
	clock := NewFakeClock(epoch)
	store, ctrl, rec := setup(t, clock)

	ctrl.Success("Post updated")
	require.NotNil(t, store.Notification.Get())
	assert.Equal(t, datatypes.KindSuccess, store.Notification.Get().Kind)
	assert.Equal(t, epoch.Add(2*time.Second), ctrl.Deadline())

	clock.Advance(1999 * time.Millisecond)
	assert.NotNil(t, store.Notification.Get())

	clock.Advance(time.Millisecond)
	assert.Nil(t, store.Notification.Get())
	assert.True(t, ctrl.Deadline().IsZero())
	assert.Equal(t, 1, rec.cleared[string(ClearExpired)])
}

func TestController_DelaysPerOutcome(t *testing.T) {
	tests := []struct {
		name string
		show func(*Controller)
		want time.Duration
	}{
		{"create success", func(c *Controller) { c.CreateSuccess("Post created") }, 1500 * time.Millisecond},
		{"success", func(c *Controller) { c.Success("Post deleted") }, 2000 * time.Millisecond},
		{"error", func(c *Controller) { c.Error("boom") }, 2500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewFakeClock(epoch)
			store, ctrl, _ := setup(t, clock)

			tt.show(ctrl)
			clock.Advance(tt.want - time.Millisecond)
			assert.NotNil(t, store.Notification.Get())
			clock.Advance(time.Millisecond)
			assert.Nil(t, store.Notification.Get())
		})
	}
}

func TestController_SetDelays(t *testing.T) {
	clock := NewFakeClock(epoch)
	store, ctrl, _ := setup(t, clock)

	ctrl.Success("shown before the change")
	require.NoError(t, ctrl.SetDelays(Delays{CreateSuccess: time.Second, Success: time.Second, Error: 5 * time.Second}))
	assert.Equal(t, epoch.Add(2000*time.Millisecond), ctrl.Deadline(), "current banner keeps its deadline")

	clock.Advance(2000 * time.Millisecond)
	assert.Nil(t, store.Notification.Get())

	ctrl.Error("boom")
	clock.Advance(4999 * time.Millisecond)
	assert.NotNil(t, store.Notification.Get())
	clock.Advance(time.Millisecond)
	assert.Nil(t, store.Notification.Get())

	err := ctrl.SetDelays(Delays{CreateSuccess: time.Second, Success: 3 * time.Second, Error: 2 * time.Second})
	require.ErrorIs(t, err, ErrInvalidDelays)
	assert.Equal(t, 5*time.Second, ctrl.Delays().Error)
}

// Success A (2000) then error B 500 later: at the 2000 mark B is still shown.
func TestController_StaleTimerDoesNotClearReplacement(t *testing.T) {
	clocks := map[string]func() (Clock, *FakeClock){
		"stoppable timers": func() (Clock, *FakeClock) {
			fc := NewFakeClock(epoch)
			return fc, fc
		},
		"leaky timers": func() (Clock, *FakeClock) {
			fc := NewFakeClock(epoch)
			return leakyClock{fc}, fc
		},
	}

	for name, mk := range clocks {
		t.Run(name, func(t *testing.T) {
			clock, fake := mk()
			store, ctrl, _ := setup(t, clock)

			ctrl.Show(datatypes.KindSuccess, "A", 2000*time.Millisecond)
			fake.Advance(500 * time.Millisecond)
			ctrl.Show(datatypes.KindError, "B", 2500*time.Millisecond)

			fake.Advance(1500 * time.Millisecond)
			got := store.Notification.Get()
			require.NotNil(t, got)
			assert.Equal(t, datatypes.KindError, got.Kind)
			assert.Equal(t, "B", got.Message)

			fake.Advance(1000 * time.Millisecond)
			assert.Nil(t, store.Notification.Get())
		})
	}
}

func TestController_LeakyStaleTimerCounted(t *testing.T) {
	fake := NewFakeClock(epoch)
	_, ctrl, rec := setup(t, leakyClock{fake})

	ctrl.Success("A")
	ctrl.Error("B")
	fake.Advance(2000 * time.Millisecond)

	assert.Equal(t, 1, rec.stale)
	assert.Equal(t, 1, rec.cleared[string(ClearReplaced)])
}

func TestController_ClearInvalidatesPendingTimer(t *testing.T) {
	fake := NewFakeClock(epoch)
	store, ctrl, rec := setup(t, leakyClock{fake})

	ctrl.Success("A")
	ctrl.Clear()
	assert.Nil(t, store.Notification.Get())

	ctrl.Error("B")
	fake.Advance(2000 * time.Millisecond)
	require.NotNil(t, store.Notification.Get(), "A's timer must not clear B")
	assert.Equal(t, "B", store.Notification.Get().Message)
	assert.Equal(t, 1, rec.cleared[string(ClearForced)])
}

func TestController_ClearWhenEmptyIsQuiet(t *testing.T) {
	store, ctrl, rec := setup(t, NewFakeClock(epoch))
	writes := 0
	store.Notification.Subscribe(func(*datatypes.Notification) { writes++ })

	ctrl.Clear()
	assert.Equal(t, 0, writes)
	assert.Equal(t, 0, rec.cleared[string(ClearForced)])
	assert.Equal(t, uint64(1), ctrl.Generation())
}

func TestController_ZeroDelayIsSticky(t *testing.T) {
	fake := NewFakeClock(epoch)
	store, ctrl, _ := setup(t, fake)

	ctrl.Show(datatypes.KindError, "sticky", 0)
	fake.Advance(time.Hour)
	assert.NotNil(t, store.Notification.Get())
	assert.Equal(t, 0, fake.Pending())
}

func TestController_GenerationMonotonic(t *testing.T) {
	_, ctrl, _ := setup(t, NewFakeClock(epoch))

	g1 := ctrl.Success("a")
	ctrl.Clear()
	g2 := ctrl.Error("b")
	assert.Greater(t, g2, g1)
	assert.Equal(t, g2, ctrl.Generation())
}

func TestClearOnChange(t *testing.T) {
	store, ctrl, _ := setup(t, NewFakeClock(epoch))
	unsub := ClearOnChange(ctrl, store.Session)

	ctrl.Success("hello")
	store.Session.Set(datatypes.NewSession("ana", "t"))
	assert.Nil(t, store.Notification.Get())

	unsub()
	ctrl.Success("again")
	store.ResetSession()
	assert.NotNil(t, store.Notification.Get())
}

// =============================================================================
// FakeClock
// =============================================================================

func TestFakeClock_OrderAndStop(t *testing.T) {
	clock := NewFakeClock(epoch)
	var fired []string

	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	clock.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "c") })
	stopped := clock.AfterFunc(time.Second, func() { fired = append(fired, "x") })

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, epoch.Add(3*time.Second), clock.Now())
	assert.Equal(t, 0, clock.Pending())
}

func TestFakeClock_NestedScheduling(t *testing.T) {
	clock := NewFakeClock(epoch)
	var at []time.Time

	clock.AfterFunc(time.Second, func() {
		at = append(at, clock.Now())
		clock.AfterFunc(time.Second, func() { at = append(at, clock.Now()) })
	})

	clock.Advance(5 * time.Second)
	assert.Equal(t, []time.Time{epoch.Add(time.Second), epoch.Add(2 * time.Second)}, at)
}

func TestSystemClock(t *testing.T) {
	var clock Clock = SystemClock{}
	done := make(chan struct{})
	clock.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("system clock timer did not fire")
	}
	assert.False(t, clock.Now().IsZero())
}
