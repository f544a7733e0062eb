// Package auth provides API key and JWT session authentication for the HTTP API.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader is the request header carrying the API key.
const APIKeyHeader = "X-Api-Key"

// APIKeyMiddleware validates the static API key on every request. Paths in
// skipPaths (health probes) pass through unauthenticated. An empty expected
// key disables authentication entirely, which is the local-development mode.
type APIKeyMiddleware struct {
	apiKey    string
	skipPaths map[string]bool
}

// NewAPIKeyMiddleware creates the middleware. Extra paths to exempt can be
// added with Skip.
func NewAPIKeyMiddleware(apiKey string) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		apiKey: apiKey,
		skipPaths: map[string]bool{
			"/healthz": true,
			"/readyz":  true,
		},
	}
}

// Skip exempts additional paths from authentication.
func (m *APIKeyMiddleware) Skip(paths ...string) *APIKeyMiddleware {
	for _, p := range paths {
		m.skipPaths[p] = true
	}
	return m
}

// Handler wraps an http.Handler with API key validation.
func (m *APIKeyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.apiKey == "" || m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
		if key == "" {
			// Accept "Authorization: Bearer <key>" as an alternative.
			if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				key = strings.TrimSpace(after)
			}
		}

		if key == "" {
			http.Error(w, "missing API key", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) != 1 {
			http.Error(w, "invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
