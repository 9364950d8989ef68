package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	"ahorro/internal/log"
)

func TestHandlerLogsCompletion(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(log.New(log.Config{Output: &buf, Component: log.ComponentHTTP}), func(*http.Request) string { return "1.2.3.4" })

	var seenID string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestID(r.Context())
		log.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/cashout", nil))

	if !strings.HasPrefix(seenID, "req_") {
		t.Fatalf("expected generated request id, got %q", seenID)
	}
	out := buf.String()
	for _, want := range []string{"request_id=" + seenID, "status_code=418", "client_ip=1.2.3.4", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %q", out, want)
		}
	}
	if m.Stats().TotalRequests != 1 {
		t.Fatalf("expected 1 request counted")
	}
}

func TestHandlerKeepsChiRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	var seenID string
	h := chimw.RequestID(m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestID(r.Context())
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seenID != "abc" {
		t.Fatalf("expected chi request id, got %q", seenID)
	}
}
