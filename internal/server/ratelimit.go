package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/shopai-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained questions per second allowed per
	// shopper when no explicit limit is configured.
	defaultRateLimit = 10
	// defaultRateBurst is the per-shopper burst when none is configured.
	defaultRateBurst = 20
	// limiterIdleTTL is how long an unused bucket is kept before eviction.
	limiterIdleTTL = 5 * time.Minute
)

// bucket is one shopper's token bucket.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles questions per shopper. A shopper is identified by
// keyFunc: the conversation they continue, or their address for a first
// question. Idle buckets are evicted once a minute.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
	keyFunc func(*http.Request) string
	log     *slog.Logger
}

// newRateLimiter starts a limiter keyed by keyFunc (clientKey when nil).
// The returned function stops its eviction goroutine.
func newRateLimiter(rps float64, burst int, keyFunc func(*http.Request) string, log *slog.Logger) (*rateLimiter, func()) {
	if keyFunc == nil {
		keyFunc = clientKey
	}
	rl := &rateLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFunc: keyFunc,
		log:     log,
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				rl.evict(now.Add(-limiterIdleTTL))
			}
		}
	}()
	return rl, func() { close(stop) }
}

// allow takes one token from key's bucket.
func (rl *rateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()
	return b.limiter.AllowN(now, 1)
}

// evict drops buckets not used since cutoff.
func (rl *rateLimiter) evict(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// size returns the number of live buckets.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// middleware rejects requests over the limit with 429 and Retry-After.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.keyFunc(r)
		if !rl.allow(key, time.Now()) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("key", key),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// chatRateKey keys a chat request by the conversation it continues, so
// shoppers behind one address do not share a budget. Ids the session
// manager does not know fall back to the client address; otherwise a
// client could mint a fresh bucket per request.
func (s *Server) chatRateKey(r *http.Request) string {
	if id := peekSessionID(r); id != "" {
		if _, ok := s.sessions.Lookup(id); ok {
			return "session:" + id
		}
	}
	return clientKey(r)
}

// peekSessionID reads the sessionId field of a JSON chat body and restores
// the body for the handler. Bodies over maxChatBody are left for the
// handler to reject.
func peekSessionID(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxChatBody+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if err != nil || len(head) > maxChatBody {
		return ""
	}
	var req chatRequest
	if json.Unmarshal(head, &req) != nil {
		return ""
	}
	return strings.TrimSpace(req.SessionID)
}

// clientKey keys a request by its remote address.
func clientKey(r *http.Request) string {
	return "ip:" + clientIP(r)
}

// clientIP strips the port from RemoteAddr. X-Forwarded-For is ignored
// since the server binds to localhost by default.
func clientIP(r *http.Request) string {
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
