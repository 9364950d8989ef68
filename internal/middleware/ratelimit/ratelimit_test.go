package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute})
	t.Cleanup(rl.Stop)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestAllowWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 2)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatalf("third request in window should be rejected")
	}
	if !rl.Allow("b") {
		t.Fatalf("other clients have their own budget")
	}
	if rl.Hits() != 1 {
		t.Fatalf("expected 1 hit, got %d", rl.Hits())
	}

	*clock = clock.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatalf("new window should reset the budget")
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, clock := newTestLimiter(t, 5)
	rl.Allow("a")
	*clock = clock.Add(11 * time.Minute)
	rl.Allow("b")

	if n := rl.cleanupStaleEntries(); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("expected 1 active client, got %d", rl.ActiveClients())
	}
}

func TestMiddlewareOnlyLimitsWrites(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	cases := []struct {
		method string
		want   int
	}{
		{http.MethodPost, http.StatusNoContent},
		{http.MethodPost, http.StatusTooManyRequests},
		{http.MethodGet, http.StatusNoContent},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, "/api/withdrawals", nil))
		if rec.Code != tc.want {
			t.Fatalf("%s: status %d, want %d", tc.method, rec.Code, tc.want)
		}
	}
}
