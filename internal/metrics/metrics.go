// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VotesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideavote_votes_applied_total",
		Help: "Committed vote ledger mutations by target type and outcome.",
	}, []string{"target_type", "outcome"})

	DuplicateRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ideavote_duplicate_requests_total",
		Help: "Requests rejected because their idempotency token was already applied.",
	})

	SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideavote_side_effect_failures_total",
		Help: "Post-commit side effects that failed (sync, cache, broadcast, notify).",
	}, []string{"effect"})

	SyncDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideavote_sync_deliveries_total",
		Help: "Outbound statistics sync attempts by result.",
	}, []string{"result"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideavote_rate_limited_total",
		Help: "Requests rejected by the rate limiter per action class.",
	}, []string{"class"})

	RealtimeDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ideavote_realtime_dropped_total",
		Help: "Realtime events dropped because a subscriber queue was full.",
	})
)
