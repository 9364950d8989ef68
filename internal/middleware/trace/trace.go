package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"ahorro/internal/log"
)

// Middleware attaches a request-scoped logger and logs every request.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger
	total     atomic.Int64
	lastMs    atomic.Int64
}

func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentHTTP)
	}
	return &Middleware{extractIP: extractIP, logger: logger}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		requestID := RequestID(r.Context())
		if requestID == "" {
			requestID = GenerateRequestID()
			r = r.WithContext(context.WithValue(r.Context(), chimw.RequestIDKey, requestID))
		}

		logger := m.logger.With(log.FieldRequestID, requestID)
		ctx := log.NewContext(r.Context(), logger)
		r = r.WithContext(ctx)

		logger.DebugContext(ctx, "HTTP request started",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			"content_length", r.ContentLength)

		m.total.Add(1)
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		durationMs := time.Since(start).Milliseconds()
		m.lastMs.Store(durationMs)
		log.LogHTTPEnd(ctx, r, status, durationMs, clientIP)
	})
}

// RequestID returns the id assigned by chi's RequestID middleware or by
// this package.
func RequestID(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

type Stats struct {
	TotalRequests  int64
	LastDurationMs int64
}

func (m *Middleware) Stats() Stats {
	return Stats{TotalRequests: m.total.Load(), LastDurationMs: m.lastMs.Load()}
}
