// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the browse-mode bindings.
type keyMap struct {
	Up            key.Binding
	Down          key.Binding
	Open          key.Binding
	NewPost       key.Binding
	NewComment    key.Binding
	Edit          key.Binding
	Delete        key.Binding
	CommentUp     key.Binding
	CommentDown   key.Binding
	EditComment   key.Binding
	DeleteComment key.Binding
	ToggleOrder   key.Binding
	Reload        key.Binding
	Logout        key.Binding
	Quit          key.Binding
}

// formKeys holds the bindings active while a form is open.
type formKeys struct {
	Next   key.Binding
	Submit key.Binding
	Cancel key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:            key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:          key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Open:          key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "comments")),
		NewPost:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new post")),
		NewComment:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comment")),
		Edit:          key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:        key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		CommentUp:     key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "comment up")),
		CommentDown:   key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "comment down")),
		EditComment:   key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "edit comment")),
		DeleteComment: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete comment")),
		ToggleOrder:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order")),
		Reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Logout:        key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func defaultFormKeys() formKeys {
	return formKeys{
		Next:   key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Open, k.NewPost, k.NewComment, k.Edit, k.Delete, k.ToggleOrder, k.Reload, k.Logout, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Down, k.Up, k.Open},
		{k.NewPost, k.NewComment, k.Edit, k.Delete},
		{k.CommentDown, k.CommentUp, k.EditComment, k.DeleteComment},
		{k.ToggleOrder, k.Reload, k.Logout, k.Quit},
	}
}

// ShortHelp implements help.KeyMap.
func (k formKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Submit, k.Cancel}
}

// FullHelp implements help.KeyMap.
func (k formKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
