// Package observability collects Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry and the instruments used across the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	wsConnected      prometheus.Gauge
	eventsPublished  *prometheus.CounterVec
	inventoryUpdates *prometheus.CounterVec
}

// NewMetrics initialises the registry and base instruments.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifelink_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lifelink_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	wsConnected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifelink_ws_connected",
		Help: "Currently connected realtime clients.",
	})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifelink_events_published_total",
		Help: "Realtime events published by event name.",
	}, []string{"event"})
	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifelink_inventory_updates_total",
		Help: "Inventory deltas applied by action.",
	}, []string{"action"})
	registry.MustRegister(requests, duration, wsConnected, events, updates)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		wsConnected:      wsConnected,
		eventsPublished:  events,
		inventoryUpdates: updates,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// SetConnectedClients updates the realtime connection gauge.
func (m *Metrics) SetConnectedClients(n int) {
	if m == nil {
		return
	}
	m.wsConnected.Set(float64(n))
}

// CountEvent increments the published-event counter.
func (m *Metrics) CountEvent(event string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(event).Inc()
}

// CountInventoryUpdate increments the applied-delta counter.
func (m *Metrics) CountInventoryUpdate(action string) {
	if m == nil {
		return
	}
	m.inventoryUpdates.WithLabelValues(action).Inc()
}

// Registerer exposes the registry for custom instrument registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
