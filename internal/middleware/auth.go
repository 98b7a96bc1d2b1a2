package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
}

// Auth returns middleware that validates externally issued bearer tokens
// against a configured set of SHA-256 digests. Tokens never appear in
// config or logs, only their hashes.
func Auth(tokenHashes []string, enabled bool) func(http.Handler) http.Handler {
	hashes := make(map[string]bool, len(tokenHashes))
	for _, h := range tokenHashes {
		hashes[strings.ToLower(h)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			// WebSocket clients cannot set headers; they pass ?token= instead.
			token := ""
			if r.URL.Path == "/ws" {
				token = r.URL.Query().Get("token")
			} else {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					unauthorized(w, "authorization required")
					return
				}
				token = strings.TrimPrefix(authHeader, "Bearer ")
				if token == authHeader {
					unauthorized(w, "invalid authorization header")
					return
				}
			}

			if !validToken(hashes, token) {
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validToken(hashes map[string]bool, token string) bool {
	if token == "" {
		return false
	}
	sum := sha256.Sum256([]byte(token))
	digest := hex.EncodeToString(sum[:])

	// Constant-time scan over all configured hashes.
	valid := false
	for h := range hashes {
		if subtle.ConstantTimeCompare([]byte(digest), []byte(h)) == 1 {
			valid = true
		}
	}
	return valid
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
