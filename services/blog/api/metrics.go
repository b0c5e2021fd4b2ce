// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for backend calls.
var (
	tracer = otel.Tracer("blogdeck.api")
	meter  = otel.Meter("blogdeck.api")
)

var (
	requestDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		requestDuration, metricsErr = meter.Float64Histogram(
			"blogdeck_api_request_duration_seconds",
			metric.WithDescription("Duration of requests to the blog backend"),
			metric.WithUnit("s"),
		)
	})
	return metricsErr
}
