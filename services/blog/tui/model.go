// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui provides the interactive terminal view of the blog.
//
// # Description
//
// The model renders the shared store: the notification banner, the post
// list with owner markers and the recently-created highlight, and the
// comments of the opened post. Mutations go through the wired flows and
// run as tea.Cmds so the event loop never blocks on the network. The
// model keeps no copy of the blog data; View reads the cells directly.
//
// # Thread Safety
//
// The model is designed for single-threaded use within the bubbletea
// event loop. Cells are safe to read from any goroutine.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/blogdeck/services/blog/access"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
	"github.com/AleutianAI/blogdeck/services/blog/flows"
)

// =============================================================================
// Modes and Messages
// =============================================================================

type mode int

const (
	modeBrowse mode = iota
	modeNewPost
	modeEditPost
	modeNewComment
	modeEditComment
)

// flow operations, carried by flowDoneMsg
const (
	opReload        = "reload"
	opLoadComments  = "load-comments"
	opCreatePost    = "create-post"
	opUpdatePost    = "update-post"
	opDeletePost    = "delete-post"
	opCreateComment = "create-comment"
	opUpdateComment = "update-comment"
	opDeleteComment = "delete-comment"
	opLogout        = "logout"
)

// Hints shown under the lists.
const (
	hintLoginFirst   = "Not logged in. Run `blogdeck login`, then start the TUI again."
	hintNotOwner        = "Only the author can change this post."
	hintNotCommentOwner = "Only the author can change this comment."
	hintOpenPost        = "Open a post with enter before commenting."
	hintNoComment       = "Open a post and pick a comment with J/K first."
	hintStillSaving     = "This post is still being saved."
	hintFillFields      = "Every field needs some text."
	hintNoPosts         = "No posts yet. Press n to write one."
	hintNoComments      = "No comments yet. Press c to add one."
	workingIndicator    = "working..."
)

type flowDoneMsg struct {
	op  string
	err error
}

// =============================================================================
// Model
// =============================================================================

// Model is the bubbletea model for the blog view.
type Model struct {
	ctx    context.Context
	wiring *flows.Wiring

	keys     keyMap
	formKeys formKeys
	help     help.Model

	mode          mode
	cursor        int
	commentCursor int
	inputs        []textinput.Model
	focus         int
	pending       int
	hint          string
	width         int

	quitting bool
}

// New creates the model over an active wiring.
//
// # Inputs
//
//   - ctx: Passed to every flow call. Cancelling it aborts in-flight requests.
//   - w: Wired flows. Must be active.
func New(ctx context.Context, w *flows.Wiring) Model {
	return Model{
		ctx:      ctx,
		wiring:   w,
		keys:     defaultKeyMap(),
		formKeys: defaultFormKeys(),
		help:     help.New(),
	}
}

// Init implements tea.Model. A logged-in session loads the post list.
func (m Model) Init() tea.Cmd {
	if !access.CanEnter(m.wiring.Store.Session.Get()) {
		return nil
	}
	return m.run(opReload, m.wiring.Posts.Reload)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case StateChangedMsg:
		m.clampCursor()

	case flowDoneMsg:
		m.handleDone(msg)

	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.updateForm(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.hint = ""
	w := m.wiring

	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	session := w.Store.Session.Get()
	if !access.CanEnter(session) {
		m.hint = hintLoginFirst
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(w.Store.Posts.Get())-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Open):
		p, ok := m.selectedSaved()
		if !ok {
			return m, nil
		}
		m.pending++
		return m, m.run(opLoadComments, func(ctx context.Context) error {
			return w.Comments.Load(ctx, p.ID)
		})

	case key.Matches(msg, m.keys.NewPost):
		draft := w.Posts.Draft.Get()
		m.openForm(modeNewPost, field{"Title", draft.Title}, field{"Content", draft.Content})

	case key.Matches(msg, m.keys.NewComment):
		if w.Comments.PostID() == 0 {
			m.hint = hintOpenPost
			return m, nil
		}
		m.openForm(modeNewComment, field{"Comment", w.Comments.Draft.Get().Content})

	case key.Matches(msg, m.keys.Edit):
		p, ok := m.selectedOwned(session)
		if !ok {
			return m, nil
		}
		w.Posts.BeginEdit(p)
		m.openForm(modeEditPost, field{"Title", p.Title}, field{"Content", p.Content})

	case key.Matches(msg, m.keys.Delete):
		p, ok := m.selectedOwned(session)
		if !ok {
			return m, nil
		}
		m.pending++
		return m, m.run(opDeletePost, func(ctx context.Context) error {
			return w.Posts.Delete(ctx, p.ID)
		})

	case key.Matches(msg, m.keys.CommentDown):
		if m.commentCursor < len(w.Store.Comments.Get())-1 {
			m.commentCursor++
		}

	case key.Matches(msg, m.keys.CommentUp):
		if m.commentCursor > 0 {
			m.commentCursor--
		}

	case key.Matches(msg, m.keys.EditComment):
		c, ok := m.selectedOwnedComment(session)
		if !ok {
			return m, nil
		}
		w.Comments.BeginEdit(c)
		m.openForm(modeEditComment, field{"Comment", c.Content})

	case key.Matches(msg, m.keys.DeleteComment):
		c, ok := m.selectedOwnedComment(session)
		if !ok {
			return m, nil
		}
		m.pending++
		return m, m.run(opDeleteComment, func(ctx context.Context) error {
			return w.Comments.Delete(ctx, c.ID)
		})

	case key.Matches(msg, m.keys.ToggleOrder):
		w.Comments.ToggleOrder()

	case key.Matches(msg, m.keys.Reload):
		m.pending++
		return m, m.run(opReload, w.Posts.Reload)

	case key.Matches(msg, m.keys.Logout):
		m.pending++
		return m, m.run(opLogout, w.Auth.Logout)
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	w := m.wiring

	switch {
	case key.Matches(msg, m.formKeys.Cancel):
		switch m.mode {
		case modeEditPost:
			w.Posts.CancelEdit()
		case modeNewPost:
			w.Posts.Draft.Set(datatypes.PostInput{Title: m.value(0), Content: m.value(1)})
		case modeNewComment:
			w.Comments.Draft.Set(datatypes.CommentInput{Content: m.value(0)})
		case modeEditComment:
			w.Comments.CancelEdit()
		}
		m.closeForm()
		return m, nil

	case key.Matches(msg, m.formKeys.Next):
		m.setFocus((m.focus + 1) % len(m.inputs))
		return m, nil

	case key.Matches(msg, m.formKeys.Submit):
		if m.focus < len(m.inputs)-1 {
			m.setFocus(m.focus + 1)
			return m, nil
		}
		return m.submit()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	w := m.wiring
	m.hint = ""
	m.pending++

	switch m.mode {
	case modeNewPost:
		w.Posts.Draft.Set(datatypes.PostInput{Title: m.value(0), Content: m.value(1)})
		return m, m.run(opCreatePost, func(ctx context.Context) error {
			_, err := w.Posts.CreateFromDraft(ctx)
			return err
		})

	case modeEditPost:
		in := datatypes.PostInput{Title: m.value(0), Content: m.value(1)}
		return m, m.run(opUpdatePost, func(ctx context.Context) error {
			_, err := w.Posts.Update(ctx, in)
			return err
		})

	case modeNewComment:
		w.Comments.Draft.Set(datatypes.CommentInput{Content: m.value(0)})
		return m, m.run(opCreateComment, func(ctx context.Context) error {
			_, err := w.Comments.CreateFromDraft(ctx)
			return err
		})

	case modeEditComment:
		in := datatypes.CommentInput{Content: m.value(0)}
		return m, m.run(opUpdateComment, func(ctx context.Context) error {
			_, err := w.Comments.Update(ctx, in)
			return err
		})
	}

	m.pending--
	return m, nil
}

// handleDone closes the form after a successful save. Remote failures
// already raised an error banner; forms stay open so the input is kept.
func (m *Model) handleDone(msg flowDoneMsg) {
	if m.pending > 0 {
		m.pending--
	}

	if msg.err != nil {
		switch {
		case errors.Is(msg.err, flows.ErrInvalidInput):
			m.hint = hintFillFields
		case errors.Is(msg.err, flows.ErrNoPostSelected):
			m.hint = hintOpenPost
		}
		return
	}

	switch msg.op {
	case opLoadComments:
		m.commentCursor = 0
	case opCreatePost:
		if m.mode == modeNewPost {
			m.closeForm()
		}
		m.cursor = 0
	case opUpdatePost:
		if m.mode == modeEditPost {
			m.closeForm()
		}
	case opCreateComment:
		if m.mode == modeNewComment {
			m.closeForm()
		}
		m.commentCursor = 0
	case opUpdateComment:
		if m.mode == modeEditComment {
			m.closeForm()
		}
	case opLogout:
		m.closeForm()
		m.cursor = 0
	}
	m.clampCursor()
}

// run wraps a flow call as a tea.Cmd.
func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return flowDoneMsg{op: op, err: fn(ctx)}
	}
}

// =============================================================================
// Selection and Forms
// =============================================================================

type field struct {
	label string
	value string
}

func (m *Model) openForm(md mode, fields ...field) {
	m.mode = md
	m.inputs = make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Prompt = f.label + ": "
		ti.Placeholder = strings.ToLower(f.label)
		ti.Cursor.SetMode(cursor.CursorStatic)
		ti.SetValue(f.value)
		m.inputs[i] = ti
	}
	m.setFocus(0)
}

func (m *Model) closeForm() {
	m.mode = modeBrowse
	m.inputs = nil
	m.focus = 0
}

func (m *Model) setFocus(i int) {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func (m Model) value(i int) string {
	if i >= len(m.inputs) {
		return ""
	}
	return m.inputs[i].Value()
}

func (m *Model) clampCursor() {
	n := len(m.wiring.Store.Posts.Get())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	c := len(m.wiring.Store.Comments.Get())
	if m.commentCursor >= c {
		m.commentCursor = c - 1
	}
	if m.commentCursor < 0 {
		m.commentCursor = 0
	}
}

func (m Model) selected() (datatypes.Post, bool) {
	posts := m.wiring.Store.Posts.Get()
	if m.cursor < 0 || m.cursor >= len(posts) {
		return datatypes.Post{}, false
	}
	return posts[m.cursor], true
}

// selectedSaved returns the selected post unless it is still a placeholder.
func (m *Model) selectedSaved() (datatypes.Post, bool) {
	p, ok := m.selected()
	if !ok {
		return datatypes.Post{}, false
	}
	if p.IsTentative() {
		m.hint = hintStillSaving
		return datatypes.Post{}, false
	}
	return p, true
}

func (m *Model) selectedOwned(session datatypes.Session) (datatypes.Post, bool) {
	p, ok := m.selectedSaved()
	if !ok {
		return datatypes.Post{}, false
	}
	if !access.OwnsPost(session, p) {
		m.hint = hintNotOwner
		return datatypes.Post{}, false
	}
	return p, true
}

// selectedOwnedComment returns the comment under the comment cursor when
// the session wrote it.
func (m *Model) selectedOwnedComment(session datatypes.Session) (datatypes.Comment, bool) {
	comments := m.wiring.Store.Comments.Get()
	if m.wiring.Comments.PostID() == 0 || m.commentCursor >= len(comments) {
		m.hint = hintNoComment
		return datatypes.Comment{}, false
	}
	c := comments[m.commentCursor]
	if !access.OwnsComment(session, c) {
		m.hint = hintNotCommentOwner
		return datatypes.Comment{}, false
	}
	return c, true
}

// =============================================================================
// View
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	w := m.wiring
	session := w.Store.Session.Get()
	var b strings.Builder

	b.WriteString(m.renderHeader(session))
	b.WriteString("\n")
	if n := w.Store.Notification.Get(); n != nil {
		b.WriteString(bannerStyle(n.Kind).Render(n.Message))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if !access.CanEnter(session) {
		b.WriteString(hintStyle.Render(hintLoginFirst))
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Quit}))
		return b.String()
	}

	b.WriteString(m.renderPosts(session))
	if w.Comments.PostID() != 0 {
		b.WriteString("\n")
		b.WriteString(m.renderComments(session))
	}
	if m.mode != modeBrowse {
		b.WriteString("\n")
		b.WriteString(m.renderForm())
	}
	if m.hint != "" {
		b.WriteString("\n")
		b.WriteString(hintStyle.Render(m.hint))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.mode != modeBrowse {
		b.WriteString(m.help.View(m.formKeys))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m Model) renderHeader(session datatypes.Session) string {
	who := "anonymous"
	if session.Username != "" {
		who = session.Username
	}
	status := fmt.Sprintf("  %s  %s", who, m.wiring.Navigator.Current())
	if m.pending > 0 {
		status += "  " + workingIndicator
	}
	return titleStyle.Render("blogdeck") + statsStyle.Render(status)
}

func (m Model) renderPosts(session datatypes.Session) string {
	w := m.wiring
	posts := w.Store.Posts.Get()
	recent := w.Posts.Recent.Get()
	editing := w.Posts.Editing.Get()

	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Posts (%d)", len(posts))))
	b.WriteString("\n")
	if len(posts) == 0 {
		b.WriteString(statsStyle.Render(hintNoPosts))
		b.WriteString("\n")
		return b.String()
	}

	for i, p := range posts {
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}

		line := fmt.Sprintf("#%d %s by %s", p.ID, p.Title, p.AuthorUsername)
		if p.IsTentative() {
			line = pendingStyle.Render(fmt.Sprintf("%s by %s (saving)", p.Title, p.AuthorUsername))
		} else if p.ID == recent && recent != 0 {
			line = recentStyle.Render(line)
		}
		if access.OwnsPost(session, p) {
			line += " " + ownerStyle.Render("(you)")
		}
		if editing != nil && editing.ID == p.ID && !p.IsTentative() {
			line += " " + statsStyle.Render("[editing]")
		}
		b.WriteString(marker + line + "\n")
	}
	return b.String()
}

func (m Model) renderComments(session datatypes.Session) string {
	w := m.wiring
	comments := w.Store.Comments.Get()

	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Comments on #%d (%s)", w.Comments.PostID(), w.Comments.Order.Get())))
	b.WriteString("\n")
	if len(comments) == 0 {
		b.WriteString(statsStyle.Render(hintNoComments))
		b.WriteString("\n")
		return b.String()
	}
	editing := w.Comments.Editing.Get()
	for i, c := range comments {
		marker := "  "
		if i == m.commentCursor {
			marker = cursorStyle.Render("> ")
		}
		line := fmt.Sprintf("%s: %s", c.AuthorUsername, c.Content)
		if access.OwnsComment(session, c) {
			line += " " + ownerStyle.Render("(you)")
		}
		if editing != nil && editing.ID == c.ID {
			line += " " + statsStyle.Render("[editing]")
		}
		b.WriteString(marker + line + "\n")
	}
	return b.String()
}

func (m Model) renderForm() string {
	titles := map[mode]string{
		modeNewPost:     "New post",
		modeEditPost:    "Edit post",
		modeNewComment:  "New comment",
		modeEditComment: "Edit comment",
	}

	var b strings.Builder
	b.WriteString(sectionStyle.Render(titles[m.mode]))
	b.WriteString("\n")
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	return b.String()
}
