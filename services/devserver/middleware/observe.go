// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/blogdeck/services/blog/telemetry"
)

// unmatchedRoute labels requests that hit no registered route, so path
// parameters and junk URLs do not explode label cardinality.
const unmatchedRoute = "unmatched"

// HTTPRecorder receives one observation per request.
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, status int, elapsed time.Duration)
}

// Metrics records method, route template, status and latency of every
// request. A nil recorder returns a pass-through middleware.
func Metrics(recorder HTTPRecorder) gin.HandlerFunc {
	if recorder == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		recorder.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// RequestLogger logs each request at Info, or Warn for 5xx, with the trace
// id when a span is active.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		log := telemetry.LoggerWithTrace(c.Request.Context(), logger)
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if username := GetUsername(c); username != "" {
			attrs = append(attrs, "username", username)
		}

		if status >= 500 {
			log.Warn("request failed", attrs...)
			return
		}
		log.Info("request", attrs...)
	}
}
