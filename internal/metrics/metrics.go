package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "discovery",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	CatalogRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "catalog_requests_total",
		Help:      "Total requests to the media catalog by endpoint and result status.",
	}, []string{"endpoint", "status"})

	CatalogRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "discovery",
		Name:      "catalog_request_duration_seconds",
		Help:      "Media catalog request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	LLMRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "llm_requests_total",
		Help:      "Total intent parsing calls by outcome.",
	}, []string{"status"})

	LLMRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "discovery",
		Name:      "llm_request_duration_seconds",
		Help:      "Text generation call duration in seconds.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
	})

	QuotaUsed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "discovery",
		Name:      "quota_used",
		Help:      "Text generation calls consumed in the current quota window.",
	})

	QuotaRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "quota_rejected_total",
		Help:      "Total requests rejected because the daily quota was exhausted.",
	})

	ResolverLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "resolver_lookups_total",
		Help:      "Entity lookups that reached the catalog, by kind and outcome.",
	}, []string{"kind", "result"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "resolver_cache_hits_total",
		Help:      "Total number of entity resolver cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "resolver_cache_misses_total",
		Help:      "Total number of entity resolver cache misses.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CatalogRequestsTotal,
		CatalogRequestDuration,
		LLMRequestsTotal,
		LLMRequestDuration,
		QuotaUsed,
		QuotaRejectedTotal,
		ResolverLookupsTotal,
		CacheHitsTotal,
		CacheMissesTotal,
	)
}
