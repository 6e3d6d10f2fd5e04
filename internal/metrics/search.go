package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cwf",
			Name:      "search_requests_total",
			Help:      "Search pipeline runs by outcome and error code",
		},
		[]string{"outcome", "code"}, // outcome: "ok" / "error" / "canceled"; code empty on success
	)

	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cwf",
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of each search pipeline stage in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"stage"},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cwf",
			Name:      "search_results_count",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	NegationExclusionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cwf",
			Name:      "search_negation_exclusions_total",
			Help:      "Candidates removed by the negation filter",
		},
		[]string{"strategy"},
	)

	NegationFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cwf",
			Name:      "search_negation_fallbacks_total",
			Help:      "Negated terms checked lexically after a term embedding failed",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchStageDuration)
	prometheus.MustRegister(SearchResultsCount)
	prometheus.MustRegister(NegationExclusionsTotal)
	prometheus.MustRegister(NegationFallbacksTotal)
	searchMetricsRegistered = true
}
