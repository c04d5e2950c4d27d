// Package server exposes the reporting operations over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/stratdash/meta-insights/pkg/logging"
	"github.com/stratdash/meta-insights/pkg/report"
)

// Config holds HTTP server configuration.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP front for one assembler session.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	cfg       Config
	assembler *report.Assembler
	logger    zerolog.Logger
}

// New creates the HTTP server and registers all routes.
func New(cfg Config, assembler *report.Assembler) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		assembler: assembler,
		logger:    logging.NewLogger("server"),
	}

	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/accounts", s.handleAdAccounts)
		r.Get("/accounts/{id}/insights", s.handleAccountInsights)
		r.Get("/accounts/{id}/campaigns", s.handleCampaigns)
		r.Get("/accounts/{id}/breakdown/demographics", s.handleDemographicBreakdown)
		r.Get("/accounts/{id}/breakdown/placements", s.handlePlacementBreakdown)
		r.Get("/campaigns/{id}/adsets", s.handleAdSets)
		r.Get("/adsets/{id}/ads", s.handleAds)
		r.Get("/pages", s.handlePages)
		r.Get("/pages/{id}/insights", s.handlePageInsights)
		r.Get("/pages/{id}/posts", s.handlePagePosts)
		r.Get("/instagram/{id}/insights", s.handleInstagramInsights)
		r.Get("/instagram/{id}/media", s.handleInstagramMedia)
		r.Get("/overview", s.handleOverview)
	})
}

// requestLogger logs one line per request in the component logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}

// Start blocks serving HTTP until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
