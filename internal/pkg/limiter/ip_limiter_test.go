package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestMiddlewareLimitsPerIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, rate.Limit(0.001), 2)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("10.0.0.1:1000"); code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, code)
		}
	}

	if code := do("10.0.0.1:1001"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}

	if code := do("10.0.0.2:1000"); code != http.StatusNoContent {
		t.Fatalf("expected other IP to pass, got %d", code)
	}
}

func TestPruneDropsRefilledLimiters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, rate.Limit(1), 1)
	l.GetLimiter("10.0.0.1").Allow()
	l.GetLimiter("10.0.0.2")

	if removed := l.prune(time.Now()); removed != 1 {
		t.Fatalf("expected only the untouched limiter to be pruned, removed %d", removed)
	}

	if removed := l.prune(time.Now().Add(2 * time.Second)); removed != 1 {
		t.Fatalf("expected refilled limiter to be pruned, removed %d", removed)
	}

	if l.Len() != 0 {
		t.Fatalf("expected no tracked IPs, got %d", l.Len())
	}
}
