// Package metrics documents the Prometheus metrics exposed by the
// collector. Metrics are defined in their owning packages (client, cache)
// via promauto against the default registry; nothing needs explicit wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the collector.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - gbiz_requests_total{endpoint, status} (Counter): requests by endpoint and HTTP status
//   - gbiz_request_duration_seconds{endpoint} (Histogram): request duration by endpoint
//   - gbiz_errors_total{class} (Counter): errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - gbiz_retries_total{error_class} (Counter): retry attempts by error class
//   - gbiz_retry_backoff_seconds{error_class} (Histogram): backoff duration by error class
//   - gbiz_retry_exhausted_total{error_class} (Counter): requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - gbiz_cache_hits_total{layer="redis"} (Counter): detail cache hits
//   - gbiz_cache_misses_total (Counter): detail cache misses
//   - gbiz_cache_size_bytes{layer="redis"} (Gauge): bytes written to the cache
//   - gbiz_cache_errors_total{operation} (Counter): cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(gbiz_cache_hits_total[5m])) /
//   (sum(rate(gbiz_cache_hits_total[5m])) + sum(rate(gbiz_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(gbiz_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(gbiz_request_duration_seconds_bucket[5m]))
