// Package metrics documents the Prometheus metrics exported by the PxWeb
// client. All metrics are defined in their respective packages (client,
// cache, pacing) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the PxWeb client.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Pacing Metrics (pkg/pacing):
//   - px_pacing_acquires_total (Counter): Requests released through the gate
//   - px_pacing_wait_seconds (Histogram): Time waiting for slot and headroom
//   - px_pacing_in_flight (Gauge): Requests currently holding a slot
//
// Cache Metrics (pkg/cache):
//   - px_cache_hits_total{layer="redis"} (Counter): Metadata cache hits
//   - px_cache_misses_total (Counter): Metadata cache misses
//   - px_cache_size_bytes{layer="redis"} (Gauge): Cache size in bytes
//   - px_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - px_requests_total{endpoint, status} (Counter): Requests by endpoint and status
//   - px_request_duration_seconds{endpoint} (Histogram): Request duration
//   - px_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - px_fetch_requests (Histogram): Sub-requests needed per table fetch
//
// Retry Metrics (pkg/client):
//   - px_retries_total{error_class} (Counter): Retry attempts by error class
//   - px_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - px_retry_exhausted_total{error_class} (Counter): Exhausted retry budgets
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(px_cache_hits_total[5m])) /
//   (sum(rate(px_cache_hits_total[5m])) + sum(rate(px_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(px_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(px_request_duration_seconds_bucket[5m]))
//
//   # Average sub-requests per fetch
//   rate(px_fetch_requests_sum[15m]) / rate(px_fetch_requests_count[15m])
