// Package metrics provides Prometheus instrumentation for the user panel.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GatewayRequests counts backend calls by endpoint and outcome kind.
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_gateway_requests_total",
		Help: "Backend calls made by the gateway",
	}, []string{"endpoint", "outcome"})

	// GatewayLatency tracks backend call duration.
	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_gateway_request_duration_seconds",
		Help:    "Backend call duration in seconds",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"endpoint", "outcome"})

	// PollTicks counts scheduler job runs by job name and result.
	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_poll_ticks_total",
		Help: "Polling job executions",
	}, []string{"job", "result"})

	// ActivePollJobs tracks the number of running polling jobs.
	ActivePollJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_active_poll_jobs",
		Help: "Number of currently scheduled polling jobs",
	})

	// FallbackActivations counts market loads served from the static list.
	FallbackActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_fallback_activations_total",
		Help: "Market loads that fell back to static coin data",
	}, []string{"reason"})

	// StaleResponses counts completions discarded by the sequence guard.
	StaleResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_stale_responses_total",
		Help: "Backend responses discarded because a newer request was issued",
	}, []string{"resource"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveGateway records one backend call.
func ObserveGateway(endpoint, outcome string, d time.Duration) {
	GatewayRequests.WithLabelValues(endpoint, outcome).Inc()
	GatewayLatency.WithLabelValues(endpoint, outcome).Observe(d.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Label by route pattern to keep cardinality bounded.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
