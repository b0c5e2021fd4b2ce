// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/blogdeck/services/devserver/handlers"
	"github.com/AleutianAI/blogdeck/services/devserver/middleware"
)

// SetupRoutes registers the blog API on router.
//
// Reads are public. Writes and logout sit behind RequireAuth. metrics may
// be nil, in which case /metrics is not registered.
func SetupRoutes(router *gin.Engine, h *handlers.Handler, metrics http.Handler) {
	router.GET("/health", h.Health)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	requireAuth := middleware.RequireAuth(h.Store())

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/logout", requireAuth, h.Logout)
		}

		posts := api.Group("/posts")
		{
			posts.GET("", h.ListPosts)
			posts.GET("/:id", h.GetPost)
			posts.POST("", requireAuth, h.CreatePost)
			posts.PUT("/:id", requireAuth, h.UpdatePost)
			posts.DELETE("/:id", requireAuth, h.DeletePost)

			posts.POST("/:id/comments", requireAuth, h.CreateComment)
			posts.PUT("/:id/comments/:cid", requireAuth, h.UpdateComment)
			posts.DELETE("/:id/comments/:cid", requireAuth, h.DeleteComment)
		}
	}
}
