// Package http exposes the savings session as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ahorro/internal/log"
	"ahorro/internal/middleware/ratelimit"
	"ahorro/internal/middleware/security"
	"ahorro/internal/middleware/trace"
	"ahorro/internal/services"
)

type Options struct {
	Logger            *log.Logger
	RequestsPerMinute int
	// Ready reports whether the backing store is reachable.
	Ready func(context.Context) error
	Now   func() time.Time
}

type Server struct {
	http.Server
	svc      *services.SavingsService
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger
	ready    func(context.Context) error
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires middleware and routes around svc.
func NewServer(addr string, svc *services.SavingsService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentHTTP)
	}
	s := &Server{
		svc:      svc,
		logger:   logger,
		ready:    opts.Ready,
		now:      opts.Now,
		detector: security.NewDetector(logger.WithComponent(log.ComponentSecurity)),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
			Logger:            logger.WithComponent(log.ComponentRateLimit),
		}),
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.tracer.Handler)
	r.Use(chimw.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, writeRateLimited))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleState)
		r.Post("/session/start", s.handleStart)
		r.Post("/session/theme/toggle", s.handleToggleTheme)
		r.Post("/session/logout", s.handleLogout)
		r.Put("/profile", s.handleUpdateProfile)

		r.Get("/challenges", s.handleListChallenges)
		r.Post("/challenges/select", s.handleSelectChallenge)
		r.Post("/challenges/custom", s.handleCreateChallenge)

		r.Post("/slots/{value}/toggle", s.handleToggleSlot)
		r.Post("/withdrawals", s.handleWithdraw)
		r.Post("/cashout", s.handleCashOut)
		r.Get("/report", s.handleReport)

		r.Get("/advice", s.handleTranscript)
		r.Post("/advice", s.handleAdvise)

		r.Get("/backup", s.handleExportBackup)
		r.Post("/backup", s.handleImportBackup)
		r.Get("/backup/csv", s.handleExportCSV)
		r.Post("/backup/csv", s.handleImportCSV)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Code: CodeNotFound, Message: "route not found", RequestID: trace.RequestID(r.Context())})
	})
	return r
}

// Shutdown stops the rate limiter and drains the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
