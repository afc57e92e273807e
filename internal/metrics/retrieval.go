package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	DocumentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "courtside",
			Name:      "documents",
			Help:      "Number of documents in the review store",
		},
	)

	DocumentsAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "courtside",
			Name:      "documents_added_total",
			Help:      "Total number of documents added",
		},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "courtside",
			Name:      "search_duration_seconds",
			Help:      "Similarity search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"filtered"},
	)

	RoutingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtside",
			Name:      "routing_decisions_total",
			Help:      "Query routing decisions by strategy",
		},
		[]string{"strategy"},
	)

	PersistenceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtside",
			Name:      "persistence_failures_total",
			Help:      "Snapshot load and save failures, and interrupted saves recovered by trimming",
		},
		[]string{"op"}, // "load" / "save" / "trim"
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers Prometheus retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(DocumentsTotal)
	prometheus.MustRegister(DocumentsAddedTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(RoutingDecisionsTotal)
	prometheus.MustRegister(PersistenceFailuresTotal)
	retrievalMetricsRegistered = true
}
