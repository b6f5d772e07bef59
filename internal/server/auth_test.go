package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler responds 200 so middleware behavior is observable.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func Test_AuthMiddleware_DisabledWhenNoKey(t *testing.T) {
	t.Parallel()
	h := authMiddleware("", okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get-collections", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("want pass-through with empty key, got %d", rec.Code)
	}
}

func Test_AuthMiddleware_MissingToken(t *testing.T) {
	t.Parallel()
	h := authMiddleware("secret", okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get-collections", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("want 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("want WWW-Authenticate challenge")
	}
}

func Test_AuthMiddleware_InvalidToken(t *testing.T) {
	t.Parallel()
	h := authMiddleware("secret", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/get-collections", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("want 401, got %d", rec.Code)
	}
}

func Test_AuthMiddleware_ValidToken(t *testing.T) {
	t.Parallel()
	h := authMiddleware("secret", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/get-collections", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("want 200, got %d", rec.Code)
	}
}

func Test_AuthMiddleware_ExemptPaths(t *testing.T) {
	t.Parallel()
	h := authMiddleware("secret", okHandler)

	for _, path := range []string{"/api/health", "/api/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s must be reachable without credentials, got %d", path, rec.Code)
		}
	}
}

func Test_BearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"absent", "", ""},
		{"well formed", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer abc123", "abc123"},
		{"wrong scheme", "Basic abc123", ""},
		{"no token", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(req); got != tt.want {
				t.Errorf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
