package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// KeyCheck reports whether token is an accepted API key.
type KeyCheck func(token string) bool

// StaticKey accepts tokens equal to key. An empty key returns nil, which
// disables authentication.
func StaticKey(key string) KeyCheck {
	if key == "" {
		return nil
	}
	return func(token string) bool {
		return subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1
	}
}

// HashedKey accepts tokens matching a bcrypt hash, so the plaintext key never
// sits in config. Accepted tokens are remembered by SHA-256 digest to keep
// bcrypt off the hot path. An empty hash returns nil.
func HashedKey(hash string) KeyCheck {
	if hash == "" {
		return nil
	}
	var verified sync.Map
	return func(token string) bool {
		sum := sha256.Sum256([]byte(token))
		if _, ok := verified.Load(sum); ok {
			return true
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			return false
		}
		verified.Store(sum, struct{}{})
		return true
	}
}

// Auth requires a Bearer token or X-API-Key header accepted by check. A nil
// check disables authentication. Paths in public bypass it.
func Auth(check KeyCheck, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if check == nil || open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}

			if !check(token) {
				writeUnauthorized(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}

	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
