// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the blog development
// server.
//
// # Authentication Flow
//
// RequireAuth extracts a bearer token from the Authorization header,
// resolves it to a username through the TokenResolver, and stores the
// username and token in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	RequireAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► resolver.LookupToken(ctx, token)
//	   │
//	   └─► Store username in context
//	           │
//	           ▼
//	       Handler (retrieves via GetUsername)
//
// Failures abort with 401 and a {"message": ...} body, the error shape the
// blog client reads.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// Context Keys
// =============================================================================

const (
	usernameKey = "blogdeck_username"
	tokenKey    = "blogdeck_token"
)

// Messages returned on authentication failure.
const (
	MsgAuthRequired = "Authentication required"
	MsgInvalidToken = "Invalid or expired token"
)

// TokenResolver maps a bearer token to its username.
type TokenResolver interface {
	LookupToken(ctx context.Context, token string) (string, error)
}

// =============================================================================
// Context Helpers
// =============================================================================

// SetUsername stores the authenticated username and its token in the Gin
// context.
func SetUsername(c *gin.Context, username, token string) {
	c.Set(usernameKey, username)
	c.Set(tokenKey, token)
}

// GetUsername returns the authenticated username, or "" when the request
// did not pass RequireAuth.
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func GetUsername(c *gin.Context) string {
	return c.GetString(usernameKey)
}

// GetToken returns the bearer token accepted by RequireAuth.
func GetToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// =============================================================================
// Auth Middleware
// =============================================================================

// RequireAuth creates a Gin middleware that rejects requests without a
// valid bearer token.
//
// # Description
//
// A missing or malformed header aborts with MsgAuthRequired. A token the
// resolver rejects, for any reason, aborts with MsgInvalidToken. On success
// the username is available through GetUsername.
//
// # Inputs
//
//   - resolver: Token lookup. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with Gin.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequireAuth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": MsgAuthRequired,
			})
			return
		}

		username, err := resolver.LookupToken(c.Request.Context(), token)
		if err != nil || username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": MsgInvalidToken,
			})
			return
		}

		SetUsername(c, username, token)
		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
//
// Returns "" if the header is missing or malformed. The "Bearer" prefix is
// case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
