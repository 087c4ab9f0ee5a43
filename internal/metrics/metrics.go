package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts by channel and outcome.",
		},
		[]string{"channel", "reason"},
	)

	sessionValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_session_validations_total",
			Help: "Session validations by result.",
		},
		[]string{"result"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		loginsTotal,
		sessionValidations,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// ObserveLogin counts a login attempt
func ObserveLogin(channel, reason string) {
	loginsTotal.WithLabelValues(channel, reason).Inc()
}

// ObserveValidation counts a session validation ("valid", "missing", "expired", "revoked", "error")
func ObserveValidation(result string) {
	sessionValidations.WithLabelValues(result).Inc()
}

// Handler exposes the portal registry
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Instrument records request count and latency. route should be the registered pattern, not
// the raw path, to keep label cardinality bounded.
func Instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Inc()
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
