// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

// errUsage marks mistakes in how a command was invoked.
var errUsage = errors.New("usage")

// errNoPrompt is returned when a value is missing and stdin is not a
// terminal.
var errNoPrompt = fmt.Errorf("%w: missing value and no terminal to ask for it", errUsage)

// Prompter asks the user for the fields a command was not given.
//
// Implementations only fill empty fields.
type Prompter interface {
	Credentials(ctx context.Context, title string, username, password *string) error
	Post(ctx context.Context, in *datatypes.PostInput) error
	Comment(ctx context.Context, in *datatypes.CommentInput) error
}

// newPrompter returns huh forms when in is a terminal and a refusing
// prompter otherwise.
func newPrompter(in io.Reader) Prompter {
	if f, ok := in.(*os.File); ok {
		fd := f.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return huhPrompter{}
		}
	}
	return noPrompter{}
}

// =============================================================================
// huh forms
// =============================================================================

type huhPrompter struct{}

func notBlank(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func (huhPrompter) Credentials(ctx context.Context, title string, username, password *string) error {
	var fields []huh.Field
	if *username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(username).
			Validate(notBlank("username")))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(notBlank("password")))
	}
	if len(fields) == 0 {
		return nil
	}
	return runForm(ctx, huh.NewGroup(fields...).Title(title))
}

func (huhPrompter) Post(ctx context.Context, in *datatypes.PostInput) error {
	var fields []huh.Field
	if strings.TrimSpace(in.Title) == "" {
		fields = append(fields, huh.NewInput().
			Title("Title").
			Value(&in.Title).
			Validate(notBlank("title")))
	}
	if strings.TrimSpace(in.Content) == "" {
		fields = append(fields, huh.NewText().
			Title("Content").
			Value(&in.Content).
			Validate(notBlank("content")))
	}
	if len(fields) == 0 {
		return nil
	}
	return runForm(ctx, huh.NewGroup(fields...))
}

func (huhPrompter) Comment(ctx context.Context, in *datatypes.CommentInput) error {
	if strings.TrimSpace(in.Content) != "" {
		return nil
	}
	return runForm(ctx, huh.NewGroup(
		huh.NewText().
			Title("Comment").
			Value(&in.Content).
			Validate(notBlank("comment")),
	))
}

func runForm(ctx context.Context, group *huh.Group) error {
	if err := huh.NewForm(group).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return fmt.Errorf("%w: cancelled", errUsage)
		}
		return fmt.Errorf("prompt: %w", err)
	}
	return nil
}

// =============================================================================
// Non-interactive
// =============================================================================

type noPrompter struct{}

func (noPrompter) Credentials(_ context.Context, _ string, username, password *string) error {
	if *username == "" || *password == "" {
		return errNoPrompt
	}
	return nil
}

func (noPrompter) Post(_ context.Context, in *datatypes.PostInput) error {
	if in.Title == "" || in.Content == "" {
		return errNoPrompt
	}
	return nil
}

func (noPrompter) Comment(_ context.Context, in *datatypes.CommentInput) error {
	if in.Content == "" {
		return errNoPrompt
	}
	return nil
}

// readSecret reads the first line of r, for --password-stdin.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
