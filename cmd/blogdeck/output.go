// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/AleutianAI/blogdeck/services/blog/access"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/flows"
	"github.com/AleutianAI/blogdeck/services/blog/tui"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess = 0 // Operation completed successfully
	CLIExitFailed  = 1 // The backend rejected the operation or was unreachable
	CLIExitUsage   = 2 // Invalid input, missing login, or bad configuration
)

// OutputConfig controls output behavior.
type OutputConfig struct {
	JSON    bool // Output as JSON
	Compact bool // No indentation
}

// CommandResult wraps command output with metadata.
type CommandResult struct {
	APIVersion   string                  `json:"api_version"`
	Command      string                  `json:"command"`
	Timestamp    time.Time               `json:"timestamp"`
	DurationMs   int64                   `json:"duration_ms"`
	Success      bool                    `json:"success"`
	Notification *datatypes.Notification `json:"notification,omitempty"`
	Data         interface{}             `json:"data,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// OutputJSON writes data as JSON to w.
func OutputJSON(w io.Writer, data interface{}, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// exitCode maps a command error to a process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return CLIExitSuccess
	case errors.Is(err, flows.ErrInvalidInput),
		errors.Is(err, flows.ErrNotAuthenticated),
		errors.Is(err, errUsage),
		errors.Is(err, tui.ErrNoTerminal):
		return CLIExitUsage
	default:
		return CLIExitFailed
	}
}

// printer renders command results for one invocation.
type printer struct {
	cfg    OutputConfig
	out    io.Writer
	errOut io.Writer
}

// result prints the banner the flow left behind and, in JSON mode, the
// whole CommandResult.
//
// # Description
//
// Human mode writes success banners to out and error banners to errOut,
// followed by the rendered data. JSON mode writes a single document to
// out whatever the outcome.
//
// # Inputs
//
//   - cmd: Command path for metadata.
//   - start: Start time for duration calculation.
//   - banner: The notification cell's value after the flow. May be nil.
//   - data: Payload for JSON mode.
//   - render: Human renderer for data. May be nil.
//   - err: The flow's error.
func (p printer) result(cmd string, start time.Time, banner *datatypes.Notification, data interface{}, render func(io.Writer), err error) {
	if p.cfg.JSON {
		res := CommandResult{
			APIVersion:   "1.0",
			Command:      cmd,
			Timestamp:    time.Now(),
			DurationMs:   time.Since(start).Milliseconds(),
			Success:      err == nil,
			Notification: banner,
			Data:         data,
		}
		if err != nil {
			res.Error = err.Error()
			res.Data = nil
		}
		if encErr := OutputJSON(p.out, res, p.cfg.Compact); encErr != nil {
			fmt.Fprintf(p.errOut, "Failed to encode JSON: %v\n", encErr)
		}
		return
	}

	if banner != nil {
		if banner.Kind == datatypes.KindError {
			fmt.Fprintf(p.errOut, "Error: %s\n", banner.Message)
		} else {
			fmt.Fprintln(p.out, banner.Message)
		}
	}
	if err != nil && banner == nil {
		fmt.Fprintf(p.errOut, "Error: %v\n", err)
	}
	if err == nil && render != nil {
		render(p.out)
	}
}

func renderPosts(posts []datatypes.Post, session datatypes.Session) func(io.Writer) {
	return func(w io.Writer) {
		if len(posts) == 0 {
			fmt.Fprintln(w, "No posts yet.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCREATED")
		for _, p := range posts {
			author := p.AuthorUsername
			if access.OwnsPost(session, p) {
				author += " (you)"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, oneLine(p.Title), author, formatCreated(p.CreatedAt))
		}
		tw.Flush()
	}
}

func renderPost(p datatypes.Post) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintf(w, "#%d %s by %s\n", p.ID, p.Title, p.AuthorUsername)
		if p.Content != "" {
			fmt.Fprintf(w, "\n%s\n", p.Content)
		}
	}
}

func renderComments(postID int64, order flows.Order, comments []datatypes.Comment, session datatypes.Session) func(io.Writer) {
	return func(w io.Writer) {
		if len(comments) == 0 {
			fmt.Fprintf(w, "No comments on #%d.\n", postID)
			return
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "ID\tAUTHOR\tCREATED (%s)\tCOMMENT\n", order)
		for _, c := range comments {
			author := c.AuthorUsername
			if access.OwnsComment(session, c) {
				author += " (you)"
			}
			created := c.CreatedAt
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, author, formatCreated(&created), oneLine(c.Content))
		}
		tw.Flush()
	}
}

func formatCreated(ts *datatypes.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func oneLine(s string) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return string(r)
}
