package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func Test_RateLimiter_AllowsWithinBurst(t *testing.T) {
	t.Parallel()
	rl, stop := newRateLimiter(1, 3, slog.Default())
	defer stop()

	h := rl.middleware(okHandler)
	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, "/query", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d within burst rejected: %d", i, rec.Code)
		}
	}
}

func Test_RateLimiter_RejectsBeyondBurst(t *testing.T) {
	t.Parallel()
	rl, stop := newRateLimiter(0.001, 1, slog.Default())
	defer stop()

	h := rl.middleware(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	req.RemoteAddr = "192.0.2.1:1000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request rejected: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("want 429 beyond burst, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("want Retry-After header on 429")
	}
}

func Test_RateLimiter_PerIPIsolation(t *testing.T) {
	t.Parallel()
	rl, stop := newRateLimiter(0.001, 1, slog.Default())
	defer stop()

	h := rl.middleware(okHandler)

	req1 := httptest.NewRequest(http.MethodGet, "/query", nil)
	req1.RemoteAddr = "192.0.2.1:1000"
	h.ServeHTTP(httptest.NewRecorder(), req1)

	// A different IP has its own bucket.
	req2 := httptest.NewRequest(http.MethodGet, "/query", nil)
	req2.RemoteAddr = "192.0.2.2:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req2)
	if rec.Code != http.StatusOK {
		t.Errorf("second IP must not share the first IP's bucket, got %d", rec.Code)
	}
}

func Test_RateLimiter_EvictsStaleEntries(t *testing.T) {
	t.Parallel()
	rl, stop := newRateLimiter(1, 1, slog.Default())
	defer stop()

	rl.getLimiter("192.0.2.1")
	rl.mu.Lock()
	rl.limiters["192.0.2.1"].lastSeen = time.Now().Add(-10 * time.Minute)
	rl.mu.Unlock()

	rl.evict()

	rl.mu.Lock()
	_, ok := rl.limiters["192.0.2.1"]
	rl.mu.Unlock()
	if ok {
		t.Error("stale entry not evicted")
	}
}

func Test_ClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[::1]:1234", "[::1]"},
		{"noport", "noport"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.addr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
