// ABOUTME: Prometheus metrics for the HTTP API, authentication and chat relay
// ABOUTME: Owns a private registry exposed at /metrics

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trowel"

// Signup and login outcomes.
const (
	ResultCreated  = "created"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultError    = "error"
)

// Metrics holds every collector the server reports.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	signups         *prometheus.CounterVec
	logins          *prometheus.CounterVec
	authFailures    *prometheus.CounterVec
	chatActive      prometheus.Gauge
	chatConnections prometheus.Counter
	chatBroadcasts  prometheus.Counter
	chatDeliveries  prometheus.Counter
	chatDropped     prometheus.Counter
}

// New creates Metrics on a fresh registry that also carries the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		signups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "signups_total",
			Help:      "Signup attempts by result",
		}, []string{"result"}),

		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),

		authFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "rejected_requests_total",
			Help:      "Requests rejected by the session guard, by reason",
		}, []string{"reason"}),

		chatActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "connections_active",
			Help:      "Currently open chat connections",
		}),

		chatConnections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "connections_total",
			Help:      "Chat connections accepted",
		}),

		chatBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "broadcasts_total",
			Help:      "Frames broadcast to the chat",
		}),

		chatDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "deliveries_total",
			Help:      "Frames enqueued to individual connections",
		}),

		chatDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "dropped_frames_total",
			Help:      "Frames dropped because a connection's queue was full",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency. Routes are labelled by
// their chi pattern so path parameters don't explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Signup counts a signup attempt with the given result.
func (m *Metrics) Signup(result string) { m.signups.WithLabelValues(result).Inc() }

// Login counts a login attempt with the given result.
func (m *Metrics) Login(result string) { m.logins.WithLabelValues(result).Inc() }

// AuthFailure counts a request rejected by the session guard.
func (m *Metrics) AuthFailure(reason string) { m.authFailures.WithLabelValues(reason).Inc() }

// ConnectionOpened tracks a new chat connection.
func (m *Metrics) ConnectionOpened() {
	m.chatActive.Inc()
	m.chatConnections.Inc()
}

// ConnectionClosed tracks a chat connection leaving.
func (m *Metrics) ConnectionClosed() { m.chatActive.Dec() }

// FrameBroadcast tracks one broadcast and how many queues accepted it.
func (m *Metrics) FrameBroadcast(recipients int) {
	m.chatBroadcasts.Inc()
	m.chatDeliveries.Add(float64(recipients))
}

// FrameDropped tracks a frame a slow connection missed.
func (m *Metrics) FrameDropped() { m.chatDropped.Inc() }
