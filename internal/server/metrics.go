package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "shopai"
	// labelHandler partitions HTTP metrics by route name, not raw path.
	labelHandler = "handler"
)

// serverMetrics are the collectors owned by one Server. Tests pass their own
// registry so counters start at zero.
type serverMetrics struct {
	// Question level, partitioned by outcome: ok, timeout or error.
	chatRequestsTotal   *prometheus.CounterVec
	chatDurationSeconds *prometheus.HistogramVec
	chatUnansweredTotal prometheus.Counter
	chatActiveStreams   prometheus.Gauge

	// Route level, for every instrumented route.
	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	f := promauto.With(reg)
	return &serverMetrics{
		chatRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "requests_total",
			Help: "Questions handled by POST /api/chat, by outcome.",
		}, []string{"outcome"}),
		chatDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "chat", Name: "duration_seconds",
			Help: "Time from receiving a question to the end of its reply stream, by outcome.",
			// Local models answer in seconds to minutes.
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),
		chatUnansweredTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "unanswered_total",
			Help: "Questions answered with the not-available reply because no catalog entries were retrieved.",
		}),
		chatActiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "chat", Name: "active_streams",
			Help: "Reply streams currently open.",
		}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", labelHandler, "code"}),
		httpDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument counts and times every request to next under the route name
// handler. Status codes come from the requestLogger's responseWriter when
// present.
func (s *Server) instrument(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw, ok := w.(*responseWriter)
		if !ok {
			rw = &responseWriter{ResponseWriter: w, status: http.StatusOK}
		}

		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
	})
}
