package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTimingMiddlewareSetsHeader(t *testing.T) {
	h := TimingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Process-Time") == "" {
		t.Error("X-Process-Time header missing")
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	// 4 requests per minute gives a burst of 2; the third immediate request
	// from the same IP must be rejected.
	h := RateLimitMiddleware(4, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := do("10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("burst exceeded: status = %d, want 429", code)
	}

	// A different IP has its own bucket.
	if code := do("10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("other IP: status = %d, want 200", code)
	}
}
