// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/blogdeck/services/blog/flows"
)

var (
	// ErrNoTerminal is returned when stdout is not a terminal.
	ErrNoTerminal = errors.New("the interactive view needs a terminal")

	// ErrNotWired is returned for an inactive wiring.
	ErrNotWired = errors.New("blog state is not wired")
)

// CheckTerminal returns ErrNoTerminal unless f is a terminal.
func CheckTerminal(f *os.File) error {
	if f == nil {
		return ErrNoTerminal
	}
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return nil
	}
	return ErrNoTerminal
}

// Run starts the interactive view and blocks until the user quits or ctx
// is cancelled.
//
// # Inputs
//
//   - ctx: Cancels the program and in-flight flow calls.
//   - w: Active wiring.
//   - opts: Extra program options, e.g. tea.WithInput for tests.
//
// # Outputs
//
//   - error: ErrNotWired, or the program's error. Cancellation through ctx
//     is not an error.
func Run(ctx context.Context, w *flows.Wiring, opts ...tea.ProgramOption) error {
	if !w.Active() {
		return ErrNotWired
	}

	bridge := Watch(w)
	defer bridge.Close()

	programOpts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(New(ctx, w), programOpts...)
	go bridge.Forward(ctx, p.Send)

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run interactive view: %w", err)
	}
	return nil
}
