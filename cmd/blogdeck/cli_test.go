// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AleutianAI/blogdeck/cmd/blogdeck/config"
	"github.com/AleutianAI/blogdeck/pkg/logging"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/notify"
	"github.com/AleutianAI/blogdeck/services/devserver"
	"github.com/AleutianAI/blogdeck/services/devserver/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Harness
// =============================================================================

// startBackend serves a fresh in-memory devserver and returns its API root.
func startBackend(t *testing.T) string {
	t.Helper()
	reg := prometheus.NewRegistry()
	srv, err := devserver.New(context.Background(), devserver.Config{
		Store:        store.NewMemory(nil),
		PasswordCost: bcrypt.MinCost,
		Registerer:   reg,
		Gatherer:     reg,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts.URL + "/api"
}

// cliUser is one person at one terminal: their own config file and data
// directory, so sessions stay separate.
type cliUser struct {
	configPath string
	dataDir    string
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func newCLIUser(t *testing.T, apiURL string) cliUser {
	t.Helper()
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvDataDir, "")
	t.Setenv(config.EnvLogLevel, "")

	dir := t.TempDir()
	u := cliUser{
		configPath: filepath.Join(dir, "blogdeck.yaml"),
		dataDir:    filepath.Join(dir, "data"),
	}
	content := fmt.Sprintf("api:\n  base_url: %s\nsession:\n  data_dir: %s\nlogging:\n  level: error\n", apiURL, u.dataDir)
	require.NoError(t, os.WriteFile(u.configPath, []byte(content), 0600))
	return u
}

func (u cliUser) exec(ctx context.Context, prompt Prompter, stdin string, args ...string) cliResult {
	var stdout, stderr bytes.Buffer
	c := newCLI(strings.NewReader(stdin), &stdout, &stderr)
	if prompt != nil {
		c.prompt = prompt
	}
	root := newRootCmd(c)
	root.SetArgs(append([]string{"--config", u.configPath}, args...))
	code := exitStatus(root.ExecuteContext(ctx), &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func (u cliUser) run(t *testing.T, args ...string) cliResult {
	t.Helper()
	return u.exec(context.Background(), nil, "", args...)
}

// mustRun fails the test unless the command exits 0.
func (u cliUser) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	res := u.run(t, args...)
	require.Equal(t, CLIExitSuccess, res.code, "blogdeck %v\nstdout: %s\nstderr: %s", args, res.stdout, res.stderr)
	return res.stdout
}

func (u cliUser) signup(t *testing.T, name string) {
	t.Helper()
	res := u.exec(context.Background(), nil, "password123\n", "register", "-u", name, "--password-stdin")
	require.Equal(t, CLIExitSuccess, res.code, res.stderr)
	res = u.exec(context.Background(), nil, "password123\n", "login", "-u", name, "--password-stdin")
	require.Equal(t, CLIExitSuccess, res.code, res.stderr)
}

type fakePrompter struct {
	title, content string
	asked          int
}

func (f *fakePrompter) Credentials(_ context.Context, _ string, username, password *string) error {
	f.asked++
	if *username == "" {
		*username = "ana"
	}
	if *password == "" {
		*password = "password123"
	}
	return nil
}

func (f *fakePrompter) Post(_ context.Context, in *datatypes.PostInput) error {
	f.asked++
	if in.Title == "" {
		in.Title = f.title
	}
	if in.Content == "" {
		in.Content = f.content
	}
	return nil
}

func (f *fakePrompter) Comment(_ context.Context, in *datatypes.CommentInput) error {
	f.asked++
	if in.Content == "" {
		in.Content = f.content
	}
	return nil
}

// =============================================================================
// Session commands
// =============================================================================

func TestCLI_SessionLifecycle(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))

	assert.Contains(t, ana.mustRun(t, "whoami"), "Not logged in.")

	res := ana.exec(context.Background(), nil, "password123\n", "register", "-u", "ana", "--password-stdin")
	require.Equal(t, CLIExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Registration successful")

	res = ana.exec(context.Background(), nil, "password123\n", "login", "-u", "ana", "--password-stdin")
	require.Equal(t, CLIExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Login successful")

	// the session survives into the next invocation
	assert.Contains(t, ana.mustRun(t, "whoami"), "Logged in as ana")

	assert.Contains(t, ana.mustRun(t, "logout"), "Session closed successfully.")
	assert.Contains(t, ana.mustRun(t, "whoami"), "Not logged in.")
}

func TestCLI_LoginRejected(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))
	ana.signup(t, "ana")
	ana.mustRun(t, "logout")

	res := ana.exec(context.Background(), nil, "wrong-password\n", "login", "-u", "ana", "--password-stdin")
	assert.Equal(t, CLIExitFailed, res.code)
	assert.Contains(t, res.stderr, "Error: Invalid username or password")
	assert.Equal(t, 1, strings.Count(res.stderr, "Error:"), "error must be printed once")

	assert.Contains(t, ana.mustRun(t, "whoami"), "Not logged in.")
}

func TestCLI_LoginUsesPrompter(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))
	ana.signup(t, "ana")
	ana.mustRun(t, "logout")

	prompt := &fakePrompter{}
	res := ana.exec(context.Background(), prompt, "", "login")
	require.Equal(t, CLIExitSuccess, res.code, res.stderr)
	assert.Equal(t, 1, prompt.asked)
	assert.Contains(t, ana.mustRun(t, "whoami"), "Logged in as ana")
}

func TestCLI_LogoutRequiresLogin(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))

	res := ana.run(t, "logout")
	assert.Equal(t, CLIExitUsage, res.code)
	assert.Contains(t, res.stderr, "blogdeck login")
}

// =============================================================================
// Posts and comments
// =============================================================================

func TestCLI_PostsAndComments(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))
	ana.signup(t, "ana")

	out := ana.mustRun(t, "posts", "create", "--title", "Hello", "--content", "First post")
	assert.Contains(t, out, "Post created")
	assert.Contains(t, out, "#1 Hello by ana")

	out = ana.mustRun(t, "posts", "list")
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "ana (you)")

	assert.Contains(t, ana.mustRun(t, "comments", "create", "1", "--content", "nice"), "Comment created")
	ana.mustRun(t, "comments", "create", "1", "--content", "second")

	out = ana.mustRun(t, "comments", "list", "1", "--asc")
	assert.Contains(t, out, "(asc)")
	require.Contains(t, out, "nice")
	require.Contains(t, out, "second")
	assert.Less(t, strings.Index(out, "nice"), strings.Index(out, "second"))

	out = ana.mustRun(t, "posts", "update", "1", "--title", "Hello again")
	assert.Contains(t, out, "Post updated")
	assert.Contains(t, out, "#1 Hello again by ana")
	assert.Contains(t, out, "First post", "untouched fields keep their value")

	assert.Contains(t, ana.mustRun(t, "comments", "update", "1", "1", "--content", "very nice"), "Comment updated")
	assert.Contains(t, ana.mustRun(t, "comments", "delete", "1", "2"), "Comment deleted")

	out = ana.mustRun(t, "comments", "list", "1")
	assert.Contains(t, out, "very nice")
	assert.NotContains(t, out, "second")

	assert.Contains(t, ana.mustRun(t, "posts", "delete", "1"), "Post deleted")
	assert.Contains(t, ana.mustRun(t, "posts", "list"), "No posts yet.")
}

func TestCLI_WritesRequireLogin(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))

	tests := []struct {
		name string
		args []string
	}{
		{"create post", []string{"posts", "create", "-t", "x", "-c", "y"}},
		{"update post", []string{"posts", "update", "1", "-t", "x"}},
		{"delete post", []string{"posts", "delete", "1"}},
		{"create comment", []string{"comments", "create", "1", "-c", "x"}},
		{"delete comment", []string{"comments", "delete", "1", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ana.run(t, tt.args...)
			assert.Equal(t, CLIExitUsage, res.code)
			assert.Contains(t, res.stderr, "not authenticated")
		})
	}
}

func TestCLI_OnlyAuthorsChangeTheirContent(t *testing.T) {
	api := startBackend(t)
	ana := newCLIUser(t, api)
	bo := newCLIUser(t, api)
	ana.signup(t, "ana")
	bo.signup(t, "bo")

	ana.mustRun(t, "posts", "create", "-t", "Ana's", "-c", "text")
	ana.mustRun(t, "comments", "create", "1", "-c", "by ana")

	assert.Contains(t, bo.mustRun(t, "posts", "list"), "Ana's")

	res := bo.run(t, "posts", "delete", "1")
	assert.Equal(t, CLIExitUsage, res.code)
	assert.Contains(t, res.stderr, "only the author can change a post")

	res = bo.run(t, "comments", "update", "1", "1", "-c", "hijack")
	assert.Equal(t, CLIExitUsage, res.code)
	assert.Contains(t, res.stderr, "only the author can change a comment")

	assert.Contains(t, ana.mustRun(t, "posts", "list"), "Ana's")
}

func TestCLI_MissingTargets(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))
	ana.signup(t, "ana")

	res := ana.run(t, "posts", "delete", "42")
	assert.Equal(t, CLIExitUsage, res.code)
	assert.Contains(t, res.stderr, "post #42 not found")

	res = ana.run(t, "comments", "list", "42")
	assert.Equal(t, CLIExitFailed, res.code)
	assert.Contains(t, res.stderr, "Error: Post not found")

	res = ana.run(t, "posts", "delete", "abc")
	assert.Equal(t, CLIExitUsage, res.code)
	assert.Contains(t, res.stderr, "POST_ID must be a positive number")

	res = ana.run(t, "posts", "update", "1")
	assert.Equal(t, CLIExitUsage, res.code)
	assert.Contains(t, res.stderr, "pass --title, --content or both")
}

func TestCLI_CreateWithoutValues(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))
	ana.signup(t, "ana")

	t.Run("no terminal", func(t *testing.T) {
		res := ana.run(t, "posts", "create", "--title", "only a title")
		assert.Equal(t, CLIExitUsage, res.code)
		assert.Contains(t, res.stderr, "no terminal")
	})

	t.Run("blank fields fail validation", func(t *testing.T) {
		res := ana.run(t, "posts", "create", "--title", "   ", "--content", "x")
		assert.Equal(t, CLIExitUsage, res.code)
		assert.Contains(t, res.stderr, "invalid input")
	})

	t.Run("prompted", func(t *testing.T) {
		prompt := &fakePrompter{title: "From the form", content: "Typed in"}
		res := ana.exec(context.Background(), prompt, "", "posts", "create")
		require.Equal(t, CLIExitSuccess, res.code, res.stderr)
		assert.Contains(t, res.stdout, "From the form")
	})
}

// =============================================================================
// Output and configuration
// =============================================================================

func TestCLI_JSONOutput(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))
	ana.signup(t, "ana")
	ana.mustRun(t, "posts", "create", "-t", "Hello", "-c", "body")

	out := ana.mustRun(t, "--json", "posts", "list")
	var res struct {
		Command string           `json:"command"`
		Success bool             `json:"success"`
		Data    []datatypes.Post `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "blogdeck posts list", res.Command)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Hello", res.Data[0].Title)

	failed := ana.run(t, "--json", "comments", "list", "42")
	assert.Equal(t, CLIExitFailed, failed.code)
	var fres CommandResult
	require.NoError(t, json.Unmarshal([]byte(failed.stdout), &fres))
	assert.False(t, fres.Success)
	assert.NotEmpty(t, fres.Error)
	require.NotNil(t, fres.Notification)
	assert.Equal(t, datatypes.KindError, fres.Notification.Kind)
}

func TestCLI_MetricsOut(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))
	path := filepath.Join(t.TempDir(), "blogdeck.prom")

	ana.mustRun(t, "--metrics-out", path, "posts", "list")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "blogdeck_flows_runs_total")
}

func TestCLI_BadConfig(t *testing.T) {
	ana := newCLIUser(t, "http://localhost:8080/api")
	require.NoError(t, os.WriteFile(ana.configPath, []byte("logging:\n  level: loud\n"), 0600))

	res := ana.run(t, "whoami")
	assert.Equal(t, CLIExitUsage, res.code)
	assert.Contains(t, res.stderr, "logging.level")
}

func TestCLI_APIURLFlag(t *testing.T) {
	ana := newCLIUser(t, "http://localhost:1/api")
	api := startBackend(t)

	out := ana.mustRun(t, "--api-url", api, "posts", "list")
	assert.Contains(t, out, "No posts yet.")

	res := ana.run(t, "--api-url", "not a url", "posts", "list")
	assert.Equal(t, CLIExitUsage, res.code)
}

func TestCLI_TUINeedsTerminal(t *testing.T) {
	ana := newCLIUser(t, startBackend(t))

	res := ana.run(t, "tui")
	assert.Equal(t, CLIExitUsage, res.code)
	assert.Contains(t, res.stderr, "needs a terminal")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, CLIExitSuccess},
		{"usage", errNoPrompt, CLIExitUsage},
		{"reported usage", reportedError{errNotYourPost}, CLIExitUsage},
		{"other", assert.AnError, CLIExitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestReadSecret(t *testing.T) {
	got, err := readSecret(strings.NewReader("s3cret pass\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret pass", got)

	got, err = readSecret(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", got)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\t c "))
	long := strings.Repeat("é", 80)
	got := oneLine(long)
	assert.Equal(t, 60, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}

// =============================================================================
// serve
// =============================================================================

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// syncBuffer lets the test read output while the command still writes it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCLI_Serve(t *testing.T) {
	addr := freeAddr(t)
	ana := newCLIUser(t, "http://"+addr+"/api")

	var stdout, stderr syncBuffer
	c := newCLI(strings.NewReader(""), &stdout, &stderr)
	root := newRootCmd(c)
	root.SetArgs([]string{"--config", ana.configPath, "serve", "--addr", addr})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "Serving the blog API at http://"+addr+"/api")
	}, 10*time.Second, 50*time.Millisecond, stderr.String())

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestWaitReady(t *testing.T) {
	t.Run("becomes ready", func(t *testing.T) {
		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		require.NoError(t, waitReady(context.Background(), ts.URL, 5*time.Second))
		assert.GreaterOrEqual(t, calls.Load(), int32(3))
	})

	t.Run("gives up", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		assert.Error(t, waitReady(context.Background(), ts.URL, 200*time.Millisecond))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, waitReady(ctx, "http://127.0.0.1:1/health", time.Minute))
	})
}

// =============================================================================
// Live configuration
// =============================================================================

func TestApp_Reconfigure(t *testing.T) {
	u := newCLIUser(t, startBackend(t))
	cfg, err := config.Load(u.configPath, nil)
	require.NoError(t, err)

	a, err := openApp(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	defer a.Close(context.Background())
	assert.Equal(t, logging.LevelError, a.logger.Level())

	next := cfg
	next.Notifications = notify.Delays{CreateSuccess: 3 * time.Second, Success: 3 * time.Second, Error: 6 * time.Second}
	next.Logging.Level = "debug"
	require.NoError(t, a.Reconfigure(next))
	assert.Equal(t, next.Notifications, a.wiring.Notifier.Delays())
	assert.Equal(t, logging.LevelDebug, a.logger.Level())

	bad := next
	bad.Notifications.Error = time.Second
	bad.Logging.Level = "warn"
	require.ErrorIs(t, a.Reconfigure(bad), notify.ErrInvalidDelays)
	assert.Equal(t, next.Notifications, a.wiring.Notifier.Delays())
	assert.Equal(t, logging.LevelDebug, a.logger.Level())
}

func TestCLI_WatchConfigKeepsFlags(t *testing.T) {
	u := newCLIUser(t, "http://127.0.0.1:1/api")
	c := newCLI(strings.NewReader(""), io.Discard, io.Discard)
	c.configPath = u.configPath
	c.logLevel = "warn"

	reloads := make(chan config.BlogdeckConfig, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := c.watchConfig(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), func(cfg config.BlogdeckConfig) {
		reloads <- cfg
	})
	defer stop()

	content := fmt.Sprintf("api:\n  base_url: http://127.0.0.1:1/api\nsession:\n  data_dir: %s\nnotifications:\n  create_success: 3s\n  success: 3s\n  error: 6s\nlogging:\n  level: debug\n", u.dataDir)
	require.NoError(t, os.WriteFile(u.configPath, []byte(content), 0600))

	select {
	case cfg := <-reloads:
		assert.Equal(t, 6*time.Second, cfg.Notifications.Error)
		assert.Equal(t, "warn", cfg.Logging.Level, "--log-level wins over the file")
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not delivered")
	}
}

func TestCLI_WatchConfigWithoutDirectory(t *testing.T) {
	c := newCLI(strings.NewReader(""), io.Discard, io.Discard)
	c.configPath = filepath.Join(t.TempDir(), "missing", "blogdeck.yaml")

	stop := c.watchConfig(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), func(config.BlogdeckConfig) {
		t.Error("nothing to reload")
	})
	assert.NotPanics(t, stop)
}

func TestServeLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logging.Level
	}{
		{"debug", logging.LevelDebug},
		{"info", logging.LevelInfo},
		{"warn", logging.LevelInfo},
		{"error", logging.LevelInfo},
		{"nonsense", logging.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, serveLevel(tt.in))
		})
	}
}
