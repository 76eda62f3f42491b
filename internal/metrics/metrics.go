// Package metrics defines the service's Prometheus collectors. Collectors
// are registered on an injected registry so tests stay isolated.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Model labels.
const (
	ModelDelay = "delay"
	ModelPrice = "price"
)

// Prediction outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	predictions       *prometheus.CounterVec
	predictionLatency *prometheus.HistogramVec
	unknownCategories *prometheus.CounterVec
	authEvents        *prometheus.CounterVec
	modelsLoaded      *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. A nil reg gets a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "flightapi_http_requests_total", Help: "HTTP requests"},
			[]string{"method", "path", "status"},
		),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "flightapi_predictions_total", Help: "Predictions by model and outcome"},
			[]string{"model", "outcome"},
		),
		predictionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flightapi_prediction_duration_seconds",
				Help:    "Feature building plus inference latency",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"model"},
		),
		unknownCategories: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "flightapi_unknown_categories_total", Help: "Categorical values encoded with the fallback code"},
			[]string{"model", "feature"},
		),
		authEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "flightapi_auth_events_total", Help: "Audit events by kind"},
			[]string{"event"},
		),
		modelsLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "flightapi_model_loaded", Help: "1 when the model family is serving"},
			[]string{"model"},
		),
	}

	reg.MustRegister(m.httpRequests, m.predictions, m.predictionLatency,
		m.unknownCategories, m.authEvents, m.modelsLoaded)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, path string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObservePrediction(model, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(model, outcome).Inc()
	if outcome == OutcomeOK {
		m.predictionLatency.WithLabelValues(model).Observe(took.Seconds())
	}
}

func (m *Metrics) UnknownCategory(model, feature string) {
	if m == nil {
		return
	}
	m.unknownCategories.WithLabelValues(model, feature).Inc()
}

func (m *Metrics) AuthEvent(event string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) SetModelLoaded(model string, loaded bool) {
	if m == nil {
		return
	}
	v := 0.0
	if loaded {
		v = 1
	}
	m.modelsLoaded.WithLabelValues(model).Set(v)
}
