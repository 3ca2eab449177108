// Package metrics declares the Prometheus collectors served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muzikuj_http_requests_total",
			Help: "HTTP requests by route pattern, method and status class",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "muzikuj_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// HousekeepingRecords counts rows touched by housekeeping, by kind
	// (expired_requests, archived_quick_requests, anonymized_users).
	HousekeepingRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muzikuj_housekeeping_records_total",
			Help: "Records expired, archived or anonymised by housekeeping",
		},
		[]string{"kind"},
	)

	HousekeepingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muzikuj_housekeeping_runs_total",
			Help: "Housekeeping passes by outcome",
		},
		[]string{"outcome"},
	)

	RatingsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "muzikuj_ratings_submitted_total",
			Help: "Ratings created or updated",
		},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muzikuj_emails_total",
			Help: "Outbound emails by result (sent, skipped, failed, open_circuit)",
		},
		[]string{"result"},
	)

	ModerationHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muzikuj_moderation_hits_total",
			Help: "Automatic moderation hits by category",
		},
		[]string{"category"},
	)
)
