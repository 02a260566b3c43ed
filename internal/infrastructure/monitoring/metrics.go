package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

const namespace = "builderbridge"

// Metrics holds all Prometheus metrics. Each instance owns its registry, so
// several can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	Handshakes     prometheus.Counter
	SessionsReady  prometheus.Counter

	// Message metrics
	MessagesReceived  *prometheus.CounterVec
	MessagesMalformed prometheus.Counter
	CapabilityCalls   *prometheus.CounterVec
	CapabilityReplies *prometheus.CounterVec

	// Save metrics
	SavesRequested prometheus.Counter
	SavesCompleted prometheus.Counter

	// Provider metrics
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	mu       sync.RWMutex
	snapshot Snapshot
}

// Snapshot holds current values for the JSON health endpoint.
type Snapshot struct {
	TotalRequests     int64 `json:"total_requests"`
	TotalErrors       int64 `json:"total_errors"`
	ActiveSessions    int64 `json:"active_sessions"`
	ActiveConnections int64 `json:"active_connections"`
	MalformedMessages int64 `json:"malformed_messages"`
	SavesCompleted    int64 `json:"saves_completed"`
}

// NewMetrics creates a metrics collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "path"}),

		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live builder sessions",
		}),
		SessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of builder sessions created",
		}),
		Handshakes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Total number of completed init handshakes",
		}),
		SessionsReady: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ready_total",
			Help:      "Total number of sessions that reached the ready state",
		}),

		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Builder messages accepted by a session",
		}, []string{"kind"}),
		MessagesMalformed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_malformed_total",
			Help:      "Host-bound messages that could not be decoded",
		}),
		CapabilityCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_requests_total",
			Help:      "Capability requests received from the builder",
		}, []string{"kind"}),
		CapabilityReplies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_responses_total",
			Help:      "Capability requests by outcome",
		}, []string{"kind", "outcome"}),

		SavesRequested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_requested_total",
			Help:      "Save requests sent to the builder",
		}),
		SavesCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_completed_total",
			Help:      "Builder documents received and shaped",
		}),

		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Capability provider calls",
		}, []string{"provider", "method", "status"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Capability provider call duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"provider", "method"}),

		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Number of connected builder sockets",
		}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Builder socket frames",
		}, []string{"direction"}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Server uptime in seconds",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	return m
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Uptime returns how long the metrics have been collected.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns the current JSON view.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, statusLabel(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status >= 400 {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordProviderCall records one capability provider call.
func (m *Metrics) RecordProviderCall(provider, method, status string, duration time.Duration) {
	m.ProviderCalls.WithLabelValues(provider, method, status).Inc()
	m.ProviderDuration.WithLabelValues(provider, method).Observe(duration.Seconds())
}

// SessionOpened counts a newly created session.
func (m *Metrics) SessionOpened() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

// SessionClosed counts a destroyed session.
func (m *Metrics) SessionClosed() {
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// IncWSConnections increments builder socket connections.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements builder socket connections.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// RecordWSMessage records a socket frame; direction is "in" or "out".
func (m *Metrics) RecordWSMessage(direction string) {
	m.WSMessages.WithLabelValues(direction).Inc()
}

// The methods below make Metrics a session observer.

func (m *Metrics) MessageReceived(kind protocol.Kind) {
	m.MessagesReceived.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) MalformedMessage() {
	m.MessagesMalformed.Inc()
	m.mu.Lock()
	m.snapshot.MalformedMessages++
	m.mu.Unlock()
}

func (m *Metrics) HandshakeCompleted() { m.Handshakes.Inc() }

func (m *Metrics) SessionReady() { m.SessionsReady.Inc() }

func (m *Metrics) SaveRequested() { m.SavesRequested.Inc() }

func (m *Metrics) SaveCompleted() {
	m.SavesCompleted.Inc()
	m.mu.Lock()
	m.snapshot.SavesCompleted++
	m.mu.Unlock()
}

func (m *Metrics) RequestReceived(kind protocol.Kind) {
	m.CapabilityCalls.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ResponseSent(kind protocol.Kind, outcome string) {
	m.CapabilityReplies.WithLabelValues(string(kind), outcome).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
