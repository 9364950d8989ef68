package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(nil)
	cases := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.5:4000", "", "", "203.0.113.5"},
		{"untrusted peer ignores header", "203.0.113.5:4000", "1.2.3.4", "", "203.0.113.5"},
		{"trusted proxy forwards", "10.0.0.2:80", "198.51.100.7, 10.0.0.1", "", "198.51.100.7"},
		{"trusted proxy real ip", "127.0.0.1:80", "", "198.51.100.9", "198.51.100.9"},
		{"garbage header", "10.0.0.2:80", "not-an-ip", "", "10.0.0.2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				r.Header.Set("X-Real-IP", tc.xri)
			}
			if got := d.ExtractClientIP(r); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReason(t *testing.T) {
	d := NewDetector(nil)
	probe := httptest.NewRequest(http.MethodGet, "/.env", nil)
	if d.Reason(probe) != "pattern" {
		t.Fatalf("expected pattern for /.env")
	}
	scan := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	scan.Header.Set("User-Agent", "sqlmap/1.7")
	if d.Reason(scan) != "user_agent" {
		t.Fatalf("expected user_agent")
	}
	ok := httptest.NewRequest(http.MethodPost, "/api/slots/10/toggle", nil)
	ok.Header.Set("User-Agent", "curl/8.0")
	if d.Reason(ok) != "" {
		t.Fatalf("plain API call should not be flagged")
	}
}

func TestMiddlewareRejectsTrace(t *testing.T) {
	d := NewDetector(nil)
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("TRACE", "/", nil))
	if rec.Code != http.StatusMethodNotAllowed || d.SuspiciousCount() != 1 {
		t.Fatalf("status=%d count=%d", rec.Code, d.SuspiciousCount())
	}
}

func TestHeaders(t *testing.T) {
	h := Headers(DefaultHeadersConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Errorf("HSTS must only be sent over TLS")
	}
}
