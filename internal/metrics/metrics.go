// Package metrics exposes Prometheus counters for citation processing and the ask pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"groundchat/internal/citation"
)

var (
	citationMarkers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundchat_citation_markers_total",
			Help: "Citation markers seen by outcome (resolved, partial, removed, malformed, rescued, lost)",
		},
		[]string{"outcome"},
	)

	citationDroppedRefs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groundchat_citation_dropped_references_total",
			Help: "References dropped because they named no item in their pool",
		},
	)

	citationSources = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundchat_citation_sources_total",
			Help: "Sources emitted per pool",
		},
		[]string{"pool"},
	)

	formatterErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groundchat_citation_formatter_errors_total",
			Help: "Formatter failures that fell back to unformatted text",
		},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundchat_citation_cache_lookups_total",
			Help: "Processed-result cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	processDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groundchat_citation_process_duration_seconds",
			Help:    "Time spent resolving citations for one answer",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	retrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundchat_retrieval_duration_seconds",
			Help:    "Evidence retrieval latency per pool",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pool", "status"},
	)

	askRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundchat_ask_requests_total",
			Help: "Ask requests by status",
		},
		[]string{"status"},
	)
)

// RecordCitations records the diagnostics and source counts of one processed answer.
func RecordCitations(r citation.Result, d time.Duration) {
	diag := r.Diagnostics
	resolved := diag.Markers - diag.Partial - diag.Removed
	if resolved > 0 {
		citationMarkers.WithLabelValues("resolved").Add(float64(resolved))
	}
	addOutcome("partial", diag.Partial)
	addOutcome("removed", diag.Removed)
	addOutcome("malformed", len(diag.Malformed))
	addOutcome("rescued", diag.Rescued)
	addOutcome("lost", diag.Lost)

	if n := len(diag.Dropped); n > 0 {
		citationDroppedRefs.Add(float64(n))
	}
	if diag.FormatError != "" {
		formatterErrors.Inc()
	}
	citationSources.WithLabelValues(string(citation.PoolKB)).Add(float64(len(r.KBSources)))
	citationSources.WithLabelValues(string(citation.PoolWeb)).Add(float64(len(r.WebSources)))
	processDuration.Observe(d.Seconds())
}

func addOutcome(outcome string, n int) {
	if n > 0 {
		citationMarkers.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordCacheLookup records a cache hit or miss on the memory or store tier.
func RecordCacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(tier, result).Inc()
}

// RecordRetrieval records the latency of one pool retrieval.
func RecordRetrieval(pool citation.Pool, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	retrievalDuration.WithLabelValues(string(pool), status).Observe(d.Seconds())
}

// RecordAsk records the outcome of one ask request.
func RecordAsk(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	askRequests.WithLabelValues(status).Inc()
}
