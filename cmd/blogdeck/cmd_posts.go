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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/blogdeck/services/blog/access"
	"github.com/AleutianAI/blogdeck/services/blog/datatypes"
)

var errNotYourPost = fmt.Errorf("%w: only the author can change a post", errUsage)

func newPostsCmd(c *cli) *cobra.Command {
	postsCmd := &cobra.Command{
		Use:     "posts",
		Aliases: []string{"p"},
		Short:   "List, create, update and delete posts",
	}
	postsCmd.AddCommand(
		newPostsListCmd(c),
		newPostsCreateCmd(c),
		newPostsUpdateCmd(c),
		newPostsDeleteCmd(c),
	)
	return postsCmd
}

func newPostsListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List posts, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				err := a.wiring.Posts.Reload(ctx)
				posts := a.Store().Posts.Get()
				return c.report(cmd, start, a, posts, renderPosts(posts, a.Store().Session.Get()), err)
			})
		},
	}
}

func newPostsCreateCmd(c *cli) *cobra.Command {
	var in datatypes.PostInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := requireLogin(a); err != nil {
					return err
				}
				if err := c.prompt.Post(ctx, &in); err != nil {
					return err
				}
				post, err := a.wiring.Posts.Create(ctx, in)
				return c.report(cmd, start, a, post, renderPost(post), err)
			})
		},
	}
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "post title")
	cmd.Flags().StringVarP(&in.Content, "content", "c", "", "post body")
	return cmd
}

// ownedPost reloads the list and returns post id when the session owns it.
func ownedPost(ctx context.Context, a *app, id int64) (datatypes.Post, error) {
	session, err := requireLogin(a)
	if err != nil {
		return datatypes.Post{}, err
	}
	if err := a.wiring.Posts.Reload(ctx); err != nil {
		return datatypes.Post{}, err
	}
	for _, p := range a.Store().Posts.Get() {
		if p.ID != id {
			continue
		}
		if !access.OwnsPost(session, p) {
			return datatypes.Post{}, errNotYourPost
		}
		return p, nil
	}
	return datatypes.Post{}, fmt.Errorf("%w: post #%d not found", errUsage, id)
}

func newPostsUpdateCmd(c *cli) *cobra.Command {
	var title, content string
	cmd := &cobra.Command{
		Use:   "update POST_ID",
		Short: "Change the title or body of one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "POST_ID")
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("title") && !cmd.Flags().Changed("content") {
				return fmt.Errorf("%w: pass --title, --content or both", errUsage)
			}
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				post, err := ownedPost(ctx, a, id)
				if err != nil {
					return c.reportIfBanner(cmd, start, a, err)
				}
				in := datatypes.PostInput{Title: post.Title, Content: post.Content}
				if cmd.Flags().Changed("title") {
					in.Title = title
				}
				if cmd.Flags().Changed("content") {
					in.Content = content
				}
				a.wiring.Posts.BeginEdit(post)
				updated, err := a.wiring.Posts.Update(ctx, in)
				return c.report(cmd, start, a, updated, renderPost(updated), err)
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&content, "content", "c", "", "new body")
	return cmd
}

func newPostsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete POST_ID",
		Aliases: []string{"rm"},
		Short:   "Delete one of your posts and its comments",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "POST_ID")
			if err != nil {
				return err
			}
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := ownedPost(ctx, a, id); err != nil {
					return c.reportIfBanner(cmd, start, a, err)
				}
				err := a.wiring.Posts.Delete(ctx, id)
				return c.report(cmd, start, a, map[string]int64{"id": id}, nil, err)
			})
		},
	}
}

// reportIfBanner reports err through the printer when a flow left an
// error banner, and passes it through untouched otherwise.
func (c *cli) reportIfBanner(cmd *cobra.Command, start time.Time, a *app, err error) error {
	if n := a.Store().Notification.Get(); n != nil && n.Kind == datatypes.KindError {
		return c.report(cmd, start, a, nil, nil, err)
	}
	return err
}
