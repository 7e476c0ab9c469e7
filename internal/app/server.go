package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/api/handlers"
)

// Server is the read-only status endpoint of a running pipeline.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(addr string, origins []string, status *handlers.StatusHandler, search *handlers.SearchHandler, log *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", status.Health)
	r.Route("/api", func(api chi.Router) {
		api.Get("/status", status.Status)
		api.Get("/index/sources", status.Sources)
		api.Get("/index/search", search.Search)
	})

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second},
		log:        log.With(zap.String("component", "status-server")),
	}
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() {
	s.log.Info("status server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("status server stopped", zap.Error(err))
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down status server")
	return s.httpServer.Shutdown(ctx)
}
