// Package server exposes the HTTP API: starting runs, browsing the archive,
// chart data and health.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/results"
	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/services"
)

// Config holds server configuration.
type Config struct {
	Log        zerolog.Logger
	Port       int
	DevMode    bool
	RunService *services.RunService
	RunRepo    *results.RunRepository
}

// Server is the HTTP server.
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	runService  *services.RunService
	runRepo     *results.RunRepository
	startupTime time.Time
}

// New creates the HTTP server and wires its routes.
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		runService:  cfg.RunService,
		runRepo:     cfg.RunRepo,
		startupTime: time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
		// Runs can take a while on long histories; the write timeout has to
		// cover a full synchronous study.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(5 * time.Minute))

	allowedOrigins := []string{"http://localhost:*"}
	if devMode {
		allowedOrigins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/backtest/run", s.handleRunBacktest)
		r.Get("/backtest/ws", s.handleRunBacktestWS)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Delete("/{id}", s.handleDeleteRun)
			r.Get("/{id}/chart", s.handleRunChart)
		})
	})
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
