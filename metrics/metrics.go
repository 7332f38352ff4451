// Package metrics exposes registry metrics in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/be-registry/interfaces"
)

// Result label values of registry_operations_total.
const (
	ResultOK                = "ok"
	ResultNotFound          = "not_found"
	ResultInvalidInput      = "invalid_input"
	ResultForbidden         = "forbidden"
	ResultInvalidTransition = "invalid_transition"
	ResultError             = "error"
)

// Metrics holds the registry collectors on a private Prometheus registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	entities   *prometheus.GaugeVec
}

// NewMetrics creates the registry collectors together with the Go runtime
// and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "registry",
			Name:      "operations_total",
			Help:      "Registry operations by outcome.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "registry",
			Name:      "operation_duration_seconds",
			Help:      "Registry operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "registry",
			Name:      "entities",
			Help:      "Stored business entities by state.",
		}, []string{"state"}),
	}

	m.registry.MustRegister(
		m.operations,
		m.duration,
		m.entities,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation records the outcome and latency of one operation.
func (m *Metrics) ObserveOperation(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, ResultLabel(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetEntityCounts updates the entity gauges.
func (m *Metrics) SetEntityCounts(live, tombstoned int) {
	if m == nil {
		return
	}
	m.entities.WithLabelValues("live").Set(float64(live))
	m.entities.WithLabelValues("tombstoned").Set(float64(tombstoned))
}

// Gatherer returns the registry the collectors are registered with.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the collected metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ResultLabel maps an operation error onto a result label value.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, interfaces.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, interfaces.ErrInvalidInput):
		return ResultInvalidInput
	case errors.Is(err, interfaces.ErrForbidden):
		return ResultForbidden
	case errors.Is(err, interfaces.ErrInvalidTransition):
		return ResultInvalidTransition
	default:
		return ResultError
	}
}

// MetricsServer serves /metrics on a dedicated listener.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for m listening on addr.
func New(m *Metrics, addr string) (*MetricsServer, error) {
	if m == nil {
		return nil, errors.New("metrics are required")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
