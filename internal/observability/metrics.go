package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideshare", Name: "matches_total", Help: "Driver selections by ranking strategy"},
		[]string{"strategy"},
	)
	NoDriverTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "match_no_driver_total", Help: "Assignment attempts that left the ride pending"})
	RankerFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideshare", Name: "ranker_fallbacks_total", Help: "Delegated ranker fallbacks to the deterministic scorer"},
		[]string{"reason"},
	)
	MatchLatency    = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "rideshare", Name: "match_latency_seconds", Help: "Driver selection latency seconds"})
	CommitConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "assignment_conflicts_total", Help: "Assignments rejected because the driver was taken"})

	RideTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideshare", Name: "ride_transitions_total", Help: "Ride status transitions by target status"},
		[]string{"status"},
	)
	LocationUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideshare", Name: "location_updates_total", Help: "Driver location updates by result"},
		[]string{"result"},
	)
	DistanceFallbacks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "distance_fallbacks_total", Help: "Distance quotes served by the straight-line estimator"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideshare", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rideshare",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
