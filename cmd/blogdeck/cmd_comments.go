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

var errNotYourComment = fmt.Errorf("%w: only the author can change a comment", errUsage)

func newCommentsCmd(c *cli) *cobra.Command {
	commentsCmd := &cobra.Command{
		Use:     "comments",
		Aliases: []string{"c"},
		Short:   "List, create, update and delete the comments of a post",
	}
	commentsCmd.AddCommand(
		newCommentsListCmd(c),
		newCommentsCreateCmd(c),
		newCommentsUpdateCmd(c),
		newCommentsDeleteCmd(c),
	)
	return commentsCmd
}

func newCommentsListCmd(c *cli) *cobra.Command {
	var ascending bool
	cmd := &cobra.Command{
		Use:     "list POST_ID",
		Aliases: []string{"ls"},
		Short:   "List the comments of a post, newest first",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0], "POST_ID")
			if err != nil {
				return err
			}
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				err := a.wiring.Comments.Load(ctx, postID)
				if err == nil && ascending {
					a.wiring.Comments.ToggleOrder()
				}
				comments := a.Store().Comments.Get()
				render := renderComments(postID, a.wiring.Comments.Order.Get(), comments, a.Store().Session.Get())
				return c.report(cmd, start, a, comments, render, err)
			})
		},
	}
	cmd.Flags().BoolVar(&ascending, "asc", false, "oldest first")
	return cmd
}

func newCommentsCreateCmd(c *cli) *cobra.Command {
	var in datatypes.CommentInput
	cmd := &cobra.Command{
		Use:   "create POST_ID",
		Short: "Comment on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0], "POST_ID")
			if err != nil {
				return err
			}
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := requireLogin(a); err != nil {
					return err
				}
				if err := a.wiring.Comments.Load(ctx, postID); err != nil {
					return c.report(cmd, start, a, nil, nil, err)
				}
				if err := c.prompt.Comment(ctx, &in); err != nil {
					return err
				}
				comment, err := a.wiring.Comments.Create(ctx, in)
				return c.report(cmd, start, a, comment, nil, err)
			})
		},
	}
	cmd.Flags().StringVarP(&in.Content, "content", "c", "", "comment text")
	return cmd
}

// ownedComment loads the post's comments and returns comment id when the
// session owns it.
func ownedComment(ctx context.Context, a *app, postID, id int64) (datatypes.Comment, error) {
	session, err := requireLogin(a)
	if err != nil {
		return datatypes.Comment{}, err
	}
	if err := a.wiring.Comments.Load(ctx, postID); err != nil {
		return datatypes.Comment{}, err
	}
	for _, cm := range a.Store().Comments.Get() {
		if cm.ID != id {
			continue
		}
		if !access.OwnsComment(session, cm) {
			return datatypes.Comment{}, errNotYourComment
		}
		return cm, nil
	}
	return datatypes.Comment{}, fmt.Errorf("%w: comment #%d not found on post #%d", errUsage, id, postID)
}

func parseCommentArgs(args []string) (int64, int64, error) {
	postID, err := parseID(args[0], "POST_ID")
	if err != nil {
		return 0, 0, err
	}
	id, err := parseID(args[1], "COMMENT_ID")
	if err != nil {
		return 0, 0, err
	}
	return postID, id, nil
}

func newCommentsUpdateCmd(c *cli) *cobra.Command {
	var in datatypes.CommentInput
	cmd := &cobra.Command{
		Use:   "update POST_ID COMMENT_ID",
		Short: "Change the text of one of your comments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, id, err := parseCommentArgs(args)
			if err != nil {
				return err
			}
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				comment, err := ownedComment(ctx, a, postID, id)
				if err != nil {
					return c.reportIfBanner(cmd, start, a, err)
				}
				if err := c.prompt.Comment(ctx, &in); err != nil {
					return err
				}
				a.wiring.Comments.BeginEdit(comment)
				updated, err := a.wiring.Comments.Update(ctx, in)
				return c.report(cmd, start, a, updated, nil, err)
			})
		},
	}
	cmd.Flags().StringVarP(&in.Content, "content", "c", "", "new comment text")
	return cmd
}

func newCommentsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete POST_ID COMMENT_ID",
		Aliases: []string{"rm"},
		Short:   "Delete one of your comments",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, id, err := parseCommentArgs(args)
			if err != nil {
				return err
			}
			start := time.Now()
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := ownedComment(ctx, a, postID, id); err != nil {
					return c.reportIfBanner(cmd, start, a, err)
				}
				err := a.wiring.Comments.Delete(ctx, id)
				return c.report(cmd, start, a, map[string]int64{"post_id": postID, "id": id}, nil, err)
			})
		},
	}
}
