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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/blogdeck/cmd/blogdeck/config"
	"github.com/AleutianAI/blogdeck/services/blog/access"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/flows"
)

// reportedError marks an error whose message already reached the user.
type reportedError struct{ error }

func (r reportedError) Unwrap() error { return r.error }

// cli holds the per-invocation streams and persistent flags.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	prompt Prompter

	configPath string
	apiURL     string
	logLevel   string
	metricsOut string
	output     OutputConfig

	// logSink overrides stderr as the log console. The tui sets it to
	// io.Discard so logs do not tear the alternate screen.
	logSink io.Writer
}

func newCLI(stdin io.Reader, stdout, stderr io.Writer) *cli {
	return &cli{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		prompt: newPrompter(stdin),
	}
}

// newRootCmd builds the command tree for one invocation.
func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "blogdeck",
		Short: "A terminal client for the blog: posts, comments and sessions",
		Long: `blogdeck talks to a blog backend over its REST API. It keeps your
login between runs, offers an interactive view with "blogdeck tui" and can
start a local development backend with "blogdeck serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(c.stdin)
	rootCmd.SetOut(c.stdout)
	rootCmd.SetErr(c.stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ~/.blogdeck/blogdeck.yaml)")
	flags.StringVar(&c.apiURL, "api-url", "", "blog API root, overrides api.base_url")
	flags.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&c.metricsOut, "metrics-out", "", "write flow metrics in Prometheus text format to this file on exit")
	flags.BoolVar(&c.output.JSON, "json", false, "print results as JSON")
	flags.BoolVar(&c.output.Compact, "compact", false, "with --json, print without indentation")

	rootCmd.AddCommand(
		newRegisterCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newPostsCmd(c),
		newCommentsCmd(c),
		newTUICmd(c),
		newServeCmd(c),
	)
	return rootCmd
}

// loadConfig reads the config file and applies the persistent flags.
func (c *cli) loadConfig() (config.BlogdeckConfig, error) {
	cfg, err := config.Load(c.configPath, c.stderr)
	if err != nil {
		return config.BlogdeckConfig{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	cfg, err = c.withFlags(cfg)
	if err != nil {
		return config.BlogdeckConfig{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	return cfg, nil
}

// withFlags applies the persistent flags over cfg and revalidates.
func (c *cli) withFlags(cfg config.BlogdeckConfig) (config.BlogdeckConfig, error) {
	if c.apiURL != "" {
		cfg.API.BaseURL = c.apiURL
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.BlogdeckConfig{}, err
	}
	return cfg, nil
}

// watchConfig reloads the config file in the background until ctx ends
// and hands every valid change, flags applied, to apply. A watch that
// cannot be set up is logged and skipped. The returned stop waits for
// the watcher to finish.
func (c *cli) watchConfig(ctx context.Context, logger *slog.Logger, apply func(config.BlogdeckConfig)) (stop func()) {
	w, err := config.NewWatcher(c.configPath, func(cfg config.BlogdeckConfig) {
		cfg, err := c.withFlags(cfg)
		if err != nil {
			logger.Warn("config change ignored", "error", err)
			return
		}
		apply(cfg)
	}, logger)
	if err != nil {
		logger.Warn("config changes will not be picked up", "error", err)
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()
	return func() {
		cancel()
		<-done
		_ = w.Stop()
	}
}

// withApp opens the client, runs fn and releases the client again.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logOut := c.logSink
	if logOut == nil {
		logOut = c.stderr
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg, logOut)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)
	if err := a.WriteMetrics(c.metricsOut); err != nil && runErr == nil {
		runErr = err
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("close client: %w", err)
	}
	return runErr
}

// report prints the outcome of a flow run and marks its error as reported.
func (c *cli) report(cmd *cobra.Command, start time.Time, a *app, data interface{}, render func(io.Writer), err error) error {
	p := printer{cfg: c.output, out: c.stdout, errOut: c.stderr}
	p.result(cmd.CommandPath(), start, a.Store().Notification.Get(), data, render, err)
	if err != nil {
		return reportedError{err}
	}
	return nil
}

// requireLogin enforces the session guard before a write.
func requireLogin(a *app) (datatypes.Session, error) {
	session := a.Store().Session.Get()
	if !access.CanEnter(session) {
		return session, fmt.Errorf("%w: run \"blogdeck login\" first", flows.ErrNotAuthenticated)
	}
	return session, nil
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number, got %q", errUsage, what, arg)
	}
	return id, nil
}

// exitStatus prints err unless a command already did and returns the exit
// code.
func exitStatus(err error, stderr io.Writer) int {
	if err == nil {
		return CLIExitSuccess
	}
	var r reportedError
	if !errors.As(err, &r) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}
