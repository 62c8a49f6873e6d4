package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/shopai-go/internal/logging"
)

// authMiddleware guards the shopper routes (/api/chat, /api/history) with
// "Authorization: Bearer <apiKey>". An empty apiKey disables the check;
// New warns about that once at start-up. Token values are never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		switch {
		case token == "":
			deny(w, r, "missing bearer token", "")
		case subtle.ConstantTimeCompare([]byte(token), want) != 1:
			deny(w, r, "invalid bearer token", "invalid_token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// deny writes a 401 with a Bearer challenge. oauthErr, when set, is the
// RFC 6750 error code added to the challenge.
func deny(w http.ResponseWriter, r *http.Request, reason, oauthErr string) {
	logging.FromContext(r.Context()).Warn("auth: request rejected",
		slog.String("reason", reason),
		slog.String("path", r.URL.Path),
	)
	challenge := `Bearer realm="shopai"`
	if oauthErr != "" {
		challenge += ` error="` + oauthErr + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header, matching the scheme case-insensitively, or "" when absent.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
