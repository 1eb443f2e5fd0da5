// Package metrics provides Prometheus instrumentation for the Flixsy server.
//
// The server registers its metrics here then calls metrics.Handler() to
// expose them at GET /metrics (Prometheus scrape endpoint).
//
// Standard metrics exposed automatically by prometheus/client_golang:
//   - go_goroutines, go_gc_duration_seconds, etc. (Go runtime)
//   - process_cpu_seconds_total, process_open_fds, etc. (process)
//
// Flixsy-specific metrics registered here:
//
//	flixsy_http_requests_total          — counter: HTTP requests by service/method/path/status
//	flixsy_http_request_duration_secs   — histogram: HTTP latency by service/method/path
//	flixsy_entitlement_ops_total        — counter: entitlement operations by op/result
//	flixsy_billing_events_total         — counter: billing events by type
//	flixsy_credit_conflicts_total       — counter: compare-and-decrement conflicts
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ── Counters ──────────────────────────────────────────────────────────────────

// HTTPRequests counts HTTP requests by service, method, path, and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flixsy_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"service", "method", "path", "status"})

// EntitlementOps counts entitlement operations by op (check, consume, verify,
// seed) and result (ok, denied, error).
var EntitlementOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flixsy_entitlement_ops_total",
	Help: "Entitlement operations by op and result.",
}, []string{"op", "result"})

// BillingEvents counts billing lifecycle events (checkout_created,
// payment_verified, payment_unpaid, premium_granted).
var BillingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flixsy_billing_events_total",
	Help: "Billing lifecycle events.",
}, []string{"event"})

// CreditConflicts counts compare-and-decrement conflicts (two consume
// requests racing on the same ledger row).
var CreditConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "flixsy_credit_conflicts_total",
	Help: "Ledger compare-and-decrement conflicts (retried internally).",
})

// ── Histograms ────────────────────────────────────────────────────────────────

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "flixsy_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
}, []string{"service", "method", "path"})

// Handler returns the Prometheus scrape handler for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments an http.Handler with request count and latency
// metrics, labeled with the given service name. The path label uses the
// registered route pattern, not the raw URL, to keep cardinality bounded.
func Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if pattern := r.Pattern; pattern != "" {
			path = pattern
		}
		HTTPRequests.WithLabelValues(service, r.Method, path, strconv.Itoa(rec.status)).Inc()
		HTTPDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}
