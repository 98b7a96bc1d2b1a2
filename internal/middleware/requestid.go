// Package middleware provides HTTP middleware for the chat API.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/redmag-edu/mentoria/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID, minting a UUID when
// the header is absent. The ID lands in the request context and on the
// response so logs and clients can correlate.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}
