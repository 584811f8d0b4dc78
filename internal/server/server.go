package server

import (
	"context"
	"fmt"
	"jeop3/internal/config"
	"jeop3/internal/logger"
	"jeop3/internal/persistence"
	"jeop3/internal/session"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	db         persistence.Database
	sessions   *session.Manager
	config     config.Server
	log        *slog.Logger
}

// New creates a new HTTP server instance
func New(db persistence.Database, sessions *session.Manager, cfg config.Server) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		db:       db,
		sessions: sessions,
		config:   cfg,
		log:      logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.Duration(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: config.Duration(cfg.WriteTimeout, 180*time.Second),
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	// generation runs several model calls, so the budget follows the write timeout
	s.router.Use(middleware.Timeout(config.Duration(s.config.WriteTimeout, 180*time.Second)))
	s.router.Use(securityHeaders)

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Use(noCache)
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Put("/settings", s.handleUpdateSettings)

				r.Post("/sources", s.handleAddSource)
				r.Delete("/sources/{sourceID}", s.handleRemoveSource)
				r.Get("/estimate", s.handleEstimate)

				r.Post("/generate", s.handleGenerate)
				r.Post("/retry", s.handleRetry)

				r.Get("/draft", s.handleGetDraft)
				r.Get("/quality", s.handleDraftQuality)
				r.Get("/preview", s.handlePreview)

				r.Post("/categories/{cat}/regenerate", s.handleRegenerateCategory)
				r.Post("/categories/{cat}/title/rewrite", s.handleRewriteCategoryTitle)
				r.Put("/categories/{cat}/title", s.handleEditCategoryTitle)
				r.Post("/categories/{cat}/clues/{clue}/regenerate", s.handleRegenerateClue)
				r.Post("/categories/{cat}/clues/{clue}/rewrite", s.handleRewriteClueText)
				r.Put("/categories/{cat}/clues/{clue}", s.handleEditClue)
				r.Put("/teams/{index}", s.handleEditTeamName)
				r.Put("/titles/{index}", s.handleEditTitleOption)

				r.Put("/discard", s.handleSetDiscarded)
				r.Post("/discard/{itemID}", s.handleToggleDiscard)
				r.Post("/finalize", s.handleFinalize)
			})
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/", s.handleListGames)
			r.Get("/{gameID}", s.handleGetGame)
			r.Get("/{gameID}/export", s.handleExportGame)
			r.Get("/{gameID}/quality", s.handleGameQuality)
			r.Post("/{gameID}/edit", s.handleEditGame)
			r.With(s.requireAdminAPI).Delete("/{gameID}", s.handleDeleteGame)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server and cancels every open session
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	s.sessions.Close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
