// Package metrics exposes heimdall's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Refresh cycle metrics
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "heimdall_refresh_duration_seconds",
			Help:    "Duration of topology refresh cycles",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_refresh_total",
			Help: "Total number of refresh cycles by outcome",
		},
		[]string{"outcome"}, // changed, unchanged, discarded, canceled
	)

	SourceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_source_errors_total",
			Help: "Total number of failed source calls by source and capability",
		},
		[]string{"source", "capability"},
	)

	TopologyEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "heimdall_topology_entities",
			Help: "Number of entities in the current topology by kind",
		},
		[]string{"kind"},
	)

	// Backend cache metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_cache_requests_total",
			Help: "Total number of cached list requests by cache and result",
		},
		[]string{"cache", "result"}, // hit, miss, shared
	)

	// Control actions
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_actions_total",
			Help: "Total number of host control actions by action and status",
		},
		[]string{"action", "status"},
	)

	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_events_dropped_total",
			Help: "Total number of engine events skipped for a full subscriber by event type",
		},
		[]string{"type"},
	)

	EventClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heimdall_event_clients",
			Help: "Number of connected event stream clients",
		},
	)
)

// RecordCache counts one cache lookup
func RecordCache(cache, result string) {
	CacheRequestsTotal.WithLabelValues(cache, result).Inc()
}

// RecordSourceError counts one failed source call
func RecordSourceError(source, capability string) {
	SourceErrorsTotal.WithLabelValues(source, capability).Inc()
}

// RecordAction counts one completed control action
func RecordAction(action, status string) {
	ActionsTotal.WithLabelValues(action, status).Inc()
}

// RecordDroppedEvent counts one event a subscriber did not receive
func RecordDroppedEvent(eventType string) {
	EventsDroppedTotal.WithLabelValues(eventType).Inc()
}

// RecordRefresh observes one refresh cycle
func RecordRefresh(outcome string, seconds float64) {
	RefreshTotal.WithLabelValues(outcome).Inc()
	RefreshDuration.Observe(seconds)
}

// SetTopologySize publishes the entity counts of the current topology
func SetTopologySize(hosts, networks, links int) {
	TopologyEntities.WithLabelValues("hosts").Set(float64(hosts))
	TopologyEntities.WithLabelValues("networks").Set(float64(networks))
	TopologyEntities.WithLabelValues("links").Set(float64(links))
}
