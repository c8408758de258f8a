// Package web provides the HTTP server and JSON handlers for the datasheet
// API. It is glue only: request decoding, core calls, error mapping.
package web

import (
	"context"
	"net/http"

	"github.com/datasheet-app/datasheet/internal/config"
	"github.com/datasheet-app/datasheet/internal/core"
	ownmw "github.com/datasheet-app/datasheet/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the datasheet API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server wired to the core service.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Use(ownmw.UserAuth)

		r.Post("/uploads", s.handleUpload)
		r.Get("/uploads", s.handleListUploads)
		r.Get("/uploads/{uploadID}", s.handleGetUpload)
		r.Delete("/uploads/{uploadID}", s.handleDeleteUpload)
		r.Get("/uploads/{uploadID}/rows", s.handleUploadData)

		r.Get("/data", s.handleUserData)
		r.Get("/columns", s.handleColumnInfo)
		r.Get("/stats", s.handleStats)

		r.Get("/calculated-columns", s.handleListCalculatedColumns)
		r.Post("/calculated-columns", s.handleCreateCalculatedColumn)
		r.Put("/calculated-columns/{columnID}", s.handleUpdateCalculatedColumn)
		r.Delete("/calculated-columns/{columnID}", s.handleDeleteCalculatedColumn)
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start begins serving HTTP requests. Blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }
