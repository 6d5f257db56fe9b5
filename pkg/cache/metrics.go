package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks export cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "export_cache_hits_total",
			Help: "Total number of export cache hits",
		},
	)

	// CacheMisses tracks export cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "export_cache_misses_total",
			Help: "Total number of export cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_cache_errors_total",
			Help: "Total number of export cache operation errors",
		},
		[]string{"operation"}, // "generation", "get", "set", "invalidate"
	)

	// CacheInvalidations tracks generation bumps
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "export_cache_invalidations_total",
			Help: "Total number of export cache invalidations",
		},
	)
)
