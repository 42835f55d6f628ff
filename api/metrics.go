package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linesmerrill/disaster-intake-api/models"
)

// Metrics holds the service's prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	ReportsCreated  *prometheus.CounterVec
	ChannelSteps    *prometheus.CounterVec
	Confirmations   *prometheus.CounterVec
	Escalations     prometheus.Counter
	RateLimited     *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ReportsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reports_created_total",
			Help: "Emergency reports stored, by intake channel and category.",
		}, []string{"channel", "category"}),
		ChannelSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_steps_total",
			Help: "Webhook steps handled, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confirmations_total",
			Help: "Confirmation delivery attempts, by kind and result.",
		}, []string{"kind", "result"}),
		Escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalations_total",
			Help: "Stale reports escalated to the duty desk.",
		}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_rate_limited_total",
			Help: "Webhook requests rejected by the per-number rate limit.",
		}, []string{"channel"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route template.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ReportsCreated,
		m.ChannelSteps,
		m.Confirmations,
		m.Escalations,
		m.RateLimited,
		m.RequestDuration,
	)
	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ReportCreated counts a stored report
func (m *Metrics) ReportCreated(r *models.EmergencyReport) {
	m.ReportsCreated.WithLabelValues(string(r.Channel), string(r.Category)).Inc()
}

// ChannelStep counts one handled webhook step
func (m *Metrics) ChannelStep(channel models.Channel, outcome string) {
	m.ChannelSteps.WithLabelValues(string(channel), outcome).Inc()
}

// ObserveConfirmation counts a confirmation delivery attempt
func (m *Metrics) ObserveConfirmation(kind models.ConfirmationKind, result string) {
	m.Confirmations.WithLabelValues(string(kind), result).Inc()
}
