// ABOUTME: Prometheus metrics for tool calls, policy service calls and HTTP traffic.
// ABOUTME: Implements the packs.Recorder and policy.Observer hooks.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "food"

var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds the collectors registered for one gateway.
type Metrics struct {
	// Tool dispatch
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec

	// Policy service
	PolicyCalls    *prometheus.CounterVec
	PolicyDuration *prometheus.HistogramVec
	BreakerOpen    *prometheus.GaugeVec

	// HTTP surface
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// MCP sessions currently open
	MCPSessions prometheus.Gauge

	reg *prometheus.Registry
}

// New registers the collectors on reg. A nil reg gets a private registry so
// callers that don't expose metrics need no special casing.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),

		ToolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool handler latency.",
			Buckets:   latencyBuckets,
		}, []string{"tool"}),

		PolicyCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_calls_total",
			Help:      "Policy service calls by operation and outcome.",
		}, []string{"op", "outcome"}),

		PolicyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "policy_call_duration_seconds",
			Help:      "Policy service latency including retries.",
			Buckets:   latencyBuckets,
		}, []string{"op"}),

		BreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "Circuit breaker state (0=closed, 1=open).",
		}, []string{"name"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   latencyBuckets,
		}, []string{"route"}),

		MCPSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mcp_sessions",
			Help:      "Open MCP HTTP sessions.",
		}),

		reg: reg,
	}
}

// TrackRecentRequests exports the size of the policy client's duplicate
// suppression set. Call it at most once per Metrics.
func (m *Metrics) TrackRecentRequests(size func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "policy_recent_requests",
		Help:      "Request keys held to suppress duplicate submissions.",
	}, func() float64 { return float64(size()) })
}

// ObserveToolCall implements packs.Recorder.
func (m *Metrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	if outcome != "not_found" {
		m.ToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
	}
}

// ObservePolicyCall implements policy.Observer.
func (m *Metrics) ObservePolicyCall(op, outcome string, elapsed time.Duration) {
	m.PolicyCalls.WithLabelValues(op, outcome).Inc()
	m.PolicyDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetBreakerState implements policy.Observer.
func (m *Metrics) SetBreakerState(name string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerOpen.WithLabelValues(name).Set(v)
}

// SessionOpened and SessionClosed track MCP sessions.
func (m *Metrics) SessionOpened() { m.MCPSessions.Inc() }

func (m *Metrics) SessionClosed() { m.MCPSessions.Dec() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware records per-route HTTP metrics. Routes are labelled by their chi
// pattern so path parameters don't explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
