package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
)

func hashOf(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	handler := Auth(nil, false)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthValidToken(t *testing.T) {
	handler := Auth([]string{hashOf("secreto")}, true)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", http.NoBody)
	req.Header.Set("Authorization", "Bearer secreto")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth([]string{hashOf("secreto")}, true)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", http.NoBody)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	handler := Auth([]string{hashOf("secreto")}, true)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthHealthExempt(t *testing.T) {
	handler := Auth([]string{hashOf("secreto")}, true)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthWebSocketQueryToken(t *testing.T) {
	handler := Auth([]string{hashOf("secreto")}, true)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/ws?token=secreto", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
