// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for blogdeck.
//
// # Description
//
// Metrics cover the client side (flow runs, notification lifecycle) and the
// development server (HTTP requests). Metrics include:
//   - Flow run counters and latency histograms (by resource, operation, outcome)
//   - Notification counters (shown by kind, cleared by reason)
//   - A gauge reporting whether a banner is visible
//   - HTTP request counters and latency histograms for the dev server
//
// # Integration
//
// The dev server exposes these on /metrics. The client registers them on
// a private registry and only exports them when telemetry is enabled.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "blogdeck"

// Subsystems
const (
	flowsSubsystem        = "flows"
	notificationSubsystem = "notification"
	httpSubsystem         = "http"
)

// Metrics holds every Prometheus collector blogdeck records.
//
// # Description
//
// Initialize once per registry via NewMetrics. *Metrics satisfies both the
// flow recorder and the notification recorder interfaces.
//
// # Fields
//
//   - FlowsTotal: Counter of flow runs by resource, operation and outcome
//   - FlowDurationSeconds: Histogram of flow run duration
//   - NotificationsShownTotal: Counter of banners shown by kind
//   - NotificationsClearedTotal: Counter of banners cleared by reason
//   - StaleTimersTotal: Counter of expiry timers discarded as stale
//   - NotificationVisible: 1 while a banner is shown, else 0
//   - HTTPRequestsTotal: Counter of dev server requests
//   - HTTPRequestDurationSeconds: Histogram of dev server request latency
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// FlowsTotal counts completed flow runs.
	// Labels: resource (post, comment, session), operation, outcome
	FlowsTotal *prometheus.CounterVec

	// FlowDurationSeconds measures flow run duration.
	// Labels: resource, operation
	FlowDurationSeconds *prometheus.HistogramVec

	// NotificationsShownTotal counts banners shown.
	// Labels: kind (success, error)
	NotificationsShownTotal *prometheus.CounterVec

	// NotificationsClearedTotal counts banners cleared.
	// Labels: reason (expired, forced, replaced)
	NotificationsClearedTotal *prometheus.CounterVec

	// StaleTimersTotal counts expiry timers that fired after being
	// superseded.
	StaleTimersTotal prometheus.Counter

	// NotificationVisible is 1 while a banner is shown.
	NotificationVisible prometheus.Gauge

	// HTTPRequestsTotal counts dev server requests.
	// Labels: method, route, status
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDurationSeconds measures dev server request latency.
	// Labels: method, route
	HTTPRequestDurationSeconds *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
//
// # Inputs
//
//   - reg: Target registry. nil uses prometheus.DefaultRegisterer.
//
// # Outputs
//
//   - *Metrics: The initialized metrics.
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FlowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: flowsSubsystem,
				Name:      "runs_total",
				Help:      "Total flow runs by resource, operation and outcome",
			},
			[]string{"resource", "operation", "outcome"},
		),

		FlowDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: flowsSubsystem,
				Name:      "duration_seconds",
				Help:      "Flow run duration in seconds, including the backend call",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
			},
			[]string{"resource", "operation"},
		),

		NotificationsShownTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: notificationSubsystem,
				Name:      "shown_total",
				Help:      "Total notifications shown by kind",
			},
			[]string{"kind"},
		),

		NotificationsClearedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: notificationSubsystem,
				Name:      "cleared_total",
				Help:      "Total notifications cleared by reason",
			},
			[]string{"reason"},
		),

		StaleTimersTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: notificationSubsystem,
				Name:      "stale_timers_total",
				Help:      "Expiry timers discarded because a newer notification replaced theirs",
			},
		),

		NotificationVisible: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: notificationSubsystem,
				Name:      "visible",
				Help:      "1 while a notification banner is shown",
			},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "Total dev server requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Dev server request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// =============================================================================
// Recorder Methods
// =============================================================================

// FlowCompleted records one flow run.
//
// # Inputs
//
//   - resource: post, comment or session.
//   - operation: create, update, delete, reload, login, ...
//   - outcome: success, error, invalid or noop.
//   - elapsed: Run duration.
func (m *Metrics) FlowCompleted(resource, operation, outcome string, elapsed time.Duration) {
	m.FlowsTotal.WithLabelValues(resource, operation, outcome).Inc()
	m.FlowDurationSeconds.WithLabelValues(resource, operation).Observe(elapsed.Seconds())
}

// NotificationShown records a banner being shown.
func (m *Metrics) NotificationShown(kind string) {
	m.NotificationsShownTotal.WithLabelValues(kind).Inc()
	m.NotificationVisible.Set(1)
}

// NotificationCleared records a banner being cleared.
//
// A replaced banner is immediately followed by a new one, so the gauge
// only drops for expired and forced clears.
func (m *Metrics) NotificationCleared(reason string) {
	m.NotificationsClearedTotal.WithLabelValues(reason).Inc()
	if reason != "replaced" {
		m.NotificationVisible.Set(0)
	}
}

// StaleTimerDiscarded records a superseded expiry timer.
func (m *Metrics) StaleTimerDiscarded() {
	m.StaleTimersTotal.Inc()
}

// RecordHTTPRequest records one dev server request.
//
// # Inputs
//
//   - method: HTTP method.
//   - route: Route template, e.g. "/api/posts/:id". Never the raw path.
//   - status: Response status code.
//   - elapsed: Handler duration.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
