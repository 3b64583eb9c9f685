// Package web provides the HTTP and WebSocket surface of the check-in board.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/checkin/internal/auth"
	"github.com/JonMunkholm/checkin/internal/config"
	"github.com/JonMunkholm/checkin/internal/core"
	"github.com/JonMunkholm/checkin/internal/i18n"
	"github.com/JonMunkholm/checkin/internal/web/middleware"
)

// Server is the HTTP server for the check-in board.
type Server struct {
	cfg     *config.Config
	service *core.Service
	auth    *auth.Manager
	msgs    *i18n.Translator
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// NewServer creates a Server serving the full API.
func NewServer(cfg *config.Config, service *core.Service, authn *auth.Manager, msgs *i18n.Translator) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		auth:    authn,
		msgs:    msgs,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// NewSetupServer creates a Server for setup-required mode: every route
// answers 503 with the setup notice.
func NewSetupServer(cfg *config.Config, msgs *i18n.Translator) *Server {
	s := &Server{
		cfg:    cfg,
		msgs:   msgs,
		router: chi.NewRouter(),
	}
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
	s.router.HandleFunc("/*", s.handleSetupRequired)
	s.router.NotFound(s.handleSetupRequired)
	s.router.MethodNotAllowed(s.handleSetupRequired)
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	requireSession := middleware.RequireSession(s.auth, s.respondError)

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(s.newRateLimiter(s.cfg.Rate.SignInLimit, time.Minute).middleware)
				}
				r.Post("/auth/sign-in", s.handleSignIn)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireSession)

				r.Post("/auth/sign-out", s.handleSignOut)
				r.Get("/auth/session", s.handleSession)

				r.Get("/participants", s.handleListParticipants)
				r.Post("/participants", s.handleAddParticipant)
				r.Post("/participants/{id}/check-in", s.handleCheckIn)

				r.Post("/import", s.handleImport)
				r.Post("/import/preview", s.handlePreview)
				r.Get("/import/sample", s.handleSample)
			})
		})

		// Live connections outlive the request timeout.
		r.With(requireSession).Get("/live", s.handleLive)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server. Hijacked live connections are not
// tracked by net/http; they end when the change hub is closed.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
