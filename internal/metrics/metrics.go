// Package metrics declares the Prometheus collectors shared by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TagLookups counts enrichment outcomes per track: hit, miss, failed, mismatch, skipped.
	TagLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodmix_tag_lookups_total",
			Help: "Tag enrichment outcomes per track",
		},
		[]string{"outcome"},
	)

	// TagCacheEntries is the size of the in-memory tag cache.
	TagCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moodmix_tag_cache_entries",
			Help: "Entries held in the tag cache",
		},
	)

	// LastfmRequests counts Last.fm API calls by method and result.
	LastfmRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodmix_lastfm_requests_total",
			Help: "Last.fm API requests",
		},
		[]string{"method", "result"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moodmix_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// PipelineRuns counts generate runs by outcome.
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodmix_pipeline_runs_total",
			Help: "Playlist generation runs by outcome",
		},
		[]string{"outcome"},
	)

	// StageDuration observes how long each pipeline stage takes.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodmix_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"stage"},
	)
)
