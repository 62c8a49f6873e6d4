package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/shopai-go/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds a single /api/chat question including retrieval
	// and generation. Defaults to 5 minutes if zero.
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Catalog describes the indexed catalog reported by GET /api/ready.
	// The zero value skips the catalog file and collection checks.
	Catalog CatalogInfo
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained questions per second allowed per shopper on
	// POST /api/chat. A shopper is the session a request continues, or the
	// client address for a first question. Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the per-shopper burst. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Server is the HTTP server that exposes shopping sessions over REST/SSE.
type Server struct {
	// sessions hands out the per-client conversation for each request.
	sessions *session.Manager
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the shopper's question.
	Message string `json:"message"`
	// SessionID selects an existing conversation. Empty starts a new one
	// whose id is returned in the first SSE event.
	SessionID string `json:"sessionId,omitempty"`
}

// historyResponse is the JSON response for GET /api/history.
type historyResponse struct {
	// SessionID is the conversation the turns belong to.
	SessionID string `json:"sessionId"`
	// Turns is the conversation so far, oldest first.
	Turns []historyTurn `json:"turns"`
}

// historyTurn is one entry of historyResponse. Assistant turns list the
// catalog entries the reply was grounded on, parsed back into their labelled
// fields (product, brand, category, price, rating, description).
type historyTurn struct {
	session.Turn
	Sources []map[string]string `json:"sources,omitempty"`
}
