package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the API.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec   // labels: route, status
	HTTPDuration *prometheus.HistogramVec // labels: route

	// Search pipeline metrics.
	SearchRequests     *prometheus.CounterVec // labels: outcome={success,degraded}
	FranchisesFiltered prometheus.Counter
	ShopsReturned      prometheus.Histogram
	GeocodeAPIDuration *prometheus.HistogramVec // labels: operation={forward,poi,retrieve}

	// AI completion metrics.
	AIRequests *prometheus.CounterVec // labels: outcome={success,rate_limited,error}
	AIRetries  prometheus.Counter
	CacheOps   *prometheus.CounterVec // labels: op={get,set}, result={hit,miss,ok,error}
}

// NewMetrics creates and registers all API metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.SearchRequests,
		m.FranchisesFiltered,
		m.ShopsReturned,
		m.GeocodeAPIDuration,
		m.AIRequests,
		m.AIRetries,
		m.CacheOps,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewfinder",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brewfinder",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewfinder",
			Name:      "search_requests_total",
			Help:      "Nearby-search executions by outcome.",
		}, []string{"outcome"}),
		FranchisesFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brewfinder",
			Name:      "franchises_filtered_total",
			Help:      "Places discarded by the franchise matcher.",
		}),
		ShopsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "brewfinder",
			Name:      "shops_returned",
			Help:      "Shops returned per nearby search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 30, 50},
		}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brewfinder",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewfinder",
			Name:      "ai_requests_total",
			Help:      "Generative-text provider calls by outcome.",
		}, []string{"outcome"}),
		AIRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brewfinder",
			Name:      "ai_retries_total",
			Help:      "Rate-limit retries against the generative-text provider.",
		}),
		CacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewfinder",
			Name:      "cache_ops_total",
			Help:      "Cache operations by op and result.",
		}, []string{"op", "result"}),
	}
}
