package embedder

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/shopai-go/internal/rag"
)

// Metrics holds the Prometheus collectors recorded around embedding calls.
type Metrics struct {
	// requestsTotal counts embed calls by backend, model and status.
	requestsTotal *prometheus.CounterVec

	// durationSeconds records embed call latency.
	durationSeconds *prometheus.HistogramVec

	// textsTotal counts texts sent for embedding.
	textsTotal *prometheus.CounterVec
}

// NewMetrics registers the embedding metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopai",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Total number of embedding requests, partitioned by backend, model and status.",
		}, []string{"backend", "model", "status"}),

		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shopai",
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Embedding request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"backend", "model"}),

		textsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopai",
			Subsystem: "embedding",
			Name:      "texts_total",
			Help:      "Total number of texts sent for embedding.",
		}, []string{"backend", "model"}),
	}
}

// Instrumented wraps a rag.Embedder and records Metrics for every call.
type Instrumented struct {
	// next is the wrapped embedder.
	next rag.Embedder
	// backend and model label every observation.
	backend, model string
	// m holds the collectors.
	m *Metrics
}

// Instrument wraps next so each Embed call is counted and timed.
func Instrument(next rag.Embedder, s Settings, m *Metrics) *Instrumented {
	return &Instrumented{next: next, backend: s.Backend, model: s.Model, m: m}
}

// Embed delegates to the wrapped embedder.
func (e *Instrumented) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	out, err := e.next.Embed(ctx, texts)

	status := "success"
	if err != nil {
		status = "error"
	}
	e.m.requestsTotal.WithLabelValues(e.backend, e.model, status).Inc()
	e.m.durationSeconds.WithLabelValues(e.backend, e.model).Observe(time.Since(start).Seconds())
	e.m.textsTotal.WithLabelValues(e.backend, e.model).Add(float64(len(texts)))
	return out, err
}

// Ping forwards to the wrapped embedder when it supports health checks.
func (e *Instrumented) Ping(ctx context.Context) error {
	if p, ok := e.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
