// Package metrics exposes the Prometheus registry used by the exporter.
// Metrics are declared with promauto next to the code that updates them
// (client, ratelimit, batch, export, cache, webhook); this package documents
// them and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all exporter metrics are attached to.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer backing Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Remote API (pkg/client):
//   - shop_requests_total{operation, status} (Counter)
//   - shop_request_duration_seconds{operation} (Histogram)
//   - shop_errors_total{class} (Counter): network, server, rate_limit, client, query, decode
//   - shop_retries_total{error_class} (Counter)
//   - shop_retry_exhausted_total{error_class} (Counter)
//
// Throttle (pkg/ratelimit):
//   - shop_throttle_available_points (Gauge)
//   - shop_throttle_waits_total (Counter)
//
// Pipeline (pkg/batch, pkg/export):
//   - export_batches_total{outcome} (Counter): ok, failed
//   - export_batch_duration_seconds (Histogram)
//   - export_runs_total{outcome} (Counter): ok, partial, failed, cached
//   - export_run_duration_seconds (Histogram)
//   - export_orders_total (Counter)
//   - export_skipped_orders_total (Counter)
//
// Cache (pkg/cache):
//   - export_cache_hits_total, export_cache_misses_total (Counter)
//   - export_cache_errors_total{operation} (Counter): generation, get, set, invalidate
//   - export_cache_invalidations_total (Counter)
//
// Webhooks (pkg/webhook):
//   - webhook_requests_total{topic, outcome} (Counter): rejected, ignored, invalidated, failed;
//     topic is an orders/* topic, "other" or "unverified"
//
// Example Prometheus Queries:
//
//   # Share of batches skipped
//   sum(rate(export_batches_total{outcome="failed"}[1h])) / sum(rate(export_batches_total[1h]))
//
//   # Exports served from cache
//   sum(rate(export_runs_total{outcome="cached"}[1h]))
//
//   # Throttle headroom
//   shop_throttle_available_points < 100
