// Package metrics provides Prometheus metrics for watchfloor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watchfloor"

var (
	// RefreshTotal counts fetch cycles by trigger ("manual", "auto") and
	// outcome ("ok", "partial", "error").
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Total number of article refresh cycles",
		},
		[]string{"trigger", "outcome"},
	)

	// RefreshDuration measures fetch cycle duration.
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of article refresh cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// EnrichTotal counts enrichment requests by kind and outcome
	// ("started", "cached", "inflight", "done", "failed", "unconfigured").
	EnrichTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_requests_total",
			Help:      "Total number of enrichment requests",
		},
		[]string{"kind", "outcome"},
	)

	// EventsDropped counts event log lines lost to a full queue or a
	// failed write.
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Event log lines dropped",
		},
	)

	// ArticlesStored tracks the size of the canonical article collection.
	ArticlesStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "articles_stored",
			Help:      "Number of articles in the canonical store",
		},
	)

	// ArticlesVisible tracks the size of the last computed feed view.
	ArticlesVisible = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "articles_visible",
			Help:      "Number of articles passing the current filter",
		},
	)
)

// RecordRefresh records one fetch cycle.
func RecordRefresh(trigger, outcome string, seconds float64) {
	RefreshTotal.WithLabelValues(trigger, outcome).Inc()
	RefreshDuration.Observe(seconds)
}

// RecordEnrich records one enrichment request outcome.
func RecordEnrich(kind, outcome string) {
	EnrichTotal.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
