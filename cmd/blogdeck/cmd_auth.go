// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/blogdeck/services/blog/access"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

type credentialFlags struct {
	username      string
	passwordStdin bool
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "account name")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
}

// collect returns the username and password from flags, stdin or a form.
func (f *credentialFlags) collect(ctx context.Context, c *cli, title string) (string, string, error) {
	username, password := f.username, ""
	if f.passwordStdin {
		secret, err := readSecret(c.stdin)
		if err != nil {
			return "", "", err
		}
		password = secret
	}
	if err := c.prompt.Credentials(ctx, title, &username, &password); err != nil {
		return "", "", err
	}
	return username, password, nil
}

type sessionView struct {
	Username string `json:"username,omitempty"`
	LoggedIn bool   `json:"logged_in"`
}

func newRegisterCmd(c *cli) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the blog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				username, password, err := creds.collect(ctx, c, "Create an account")
				if err != nil {
					return err
				}
				err = a.wiring.Auth.Register(ctx, datatypes.Registration{Username: username, Password: password})
				return c.report(cmd, start, a, sessionView{Username: username}, nil, err)
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newLoginCmd(c *cli) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				username, password, err := creds.collect(ctx, c, "Log in")
				if err != nil {
					return err
				}
				session, err := a.wiring.Auth.Login(ctx, datatypes.Credentials{Username: username, Password: password})
				view := sessionView{Username: session.Username, LoggedIn: session.LoggedIn()}
				return c.report(cmd, start, a, view, nil, err)
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Close the session on the server and forget it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := requireLogin(a); err != nil {
					return err
				}
				err := a.wiring.Auth.Logout(ctx)
				return c.report(cmd, start, a, sessionView{}, nil, err)
			})
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				session := a.Store().Session.Get()
				view := sessionView{Username: session.Username, LoggedIn: access.CanEnter(session)}
				render := func(w io.Writer) {
					if !view.LoggedIn {
						fmt.Fprintln(w, "Not logged in.")
						return
					}
					fmt.Fprintf(w, "Logged in as %s against %s\n", view.Username, a.client.BaseURL())
				}
				return c.report(cmd, start, a, view, render, nil)
			})
		},
	}
}
