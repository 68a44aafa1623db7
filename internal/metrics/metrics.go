package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	registry *prometheus.Registry

	MessagesTotal    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	ProviderErrors   *prometheus.CounterVec
	SessionsCreated  prometheus.Counter
	ChatsCleared     prometheus.Counter
	RateLimited      prometheus.Counter
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qaderichat_messages_total",
				Help: "Messages persisted, by role",
			},
			[]string{"role"},
		),
		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qaderichat_provider_request_duration_seconds",
				Help:    "Duration of vendor API calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"provider", "status"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qaderichat_provider_errors_total",
				Help: "Failed vendor API calls, by error kind",
			},
			[]string{"provider", "kind"},
		),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qaderichat_sessions_created_total",
			Help: "Anonymous browser identities issued",
		}),
		ChatsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qaderichat_chats_cleared_total",
			Help: "Clear-chat requests served",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qaderichat_rate_limited_total",
			Help: "Send-message requests rejected by the rate limiter",
		}),
	}

	registry.MustRegister(
		m.MessagesTotal,
		m.ProviderDuration,
		m.ProviderErrors,
		m.SessionsCreated,
		m.ChatsCleared,
		m.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveProvider records the outcome of one vendor call. kind is empty on success.
func (m *Metrics) ObserveProvider(provider, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if kind != "" {
		status = "error"
		m.ProviderErrors.WithLabelValues(provider, kind).Inc()
	}
	m.ProviderDuration.WithLabelValues(provider, status).Observe(elapsed.Seconds())
}

// MessageStored counts a persisted message.
func (m *Metrics) MessageStored(role string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(role).Inc()
}

// SessionIssued counts a new anonymous browser identity.
func (m *Metrics) SessionIssued() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// ChatCleared counts a served clear request.
func (m *Metrics) ChatCleared() {
	if m == nil {
		return
	}
	m.ChatsCleared.Inc()
}

// RateLimitHit counts a rejected send.
func (m *Metrics) RateLimitHit() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
