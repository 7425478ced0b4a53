// Package metrics provides the Prometheus registry shared by unitools packages.
// Metrics are defined next to the code that updates them (qps, dispatch,
// fetch, store) and registered via promauto.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by unitools.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// QPS Metrics (pkg/qps):
//   - unitools_qps_ticks_total{outcome} (Counter): Attempts recorded by QPS counters
//   - unitools_qps_throttle_waits_total (Counter): Waits caused by an exceeded QPS limit
//   - unitools_qps_store_errors_total{operation} (Counter): Redis errors in shared counters
//
// Dispatch Metrics (pkg/dispatch):
//   - unitools_dispatch_tasks_total{outcome} (Counter): Dispatched tasks by outcome
//   - unitools_dispatch_task_duration_seconds (Histogram): Worker function duration
//   - unitools_dispatch_workers_active (Gauge): Running dispatch workers
//   - unitools_dispatch_callback_errors_total (Counter): Callback panics
//
// Fetch Metrics (pkg/fetch):
//   - unitools_fetch_requests_total{status} (Counter): HTTP requests by status
//   - unitools_fetch_request_duration_seconds (Histogram): HTTP request duration
//   - unitools_fetch_retries_total{error_class} (Counter): Retry attempts
//   - unitools_fetch_retry_exhausted_total{error_class} (Counter): Exhausted retries
//
// Store Metrics (pkg/store):
//   - unitools_store_operations_total{operation, result} (Counter): Result store operations
//
// Example Prometheus Queries:
//
//   # Task failure ratio
//   sum(rate(unitools_dispatch_tasks_total{outcome="fail"}[5m])) /
//   sum(rate(unitools_dispatch_tasks_total[5m]))
//
//   # Throttle pressure
//   rate(unitools_qps_throttle_waits_total[1m])
//
//   # P95 task latency
//   histogram_quantile(0.95, rate(unitools_dispatch_task_duration_seconds_bucket[5m]))
