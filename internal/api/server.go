package api

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogchi "github.com/samber/slog-chi"

	"github.com/dgnsrekt/voiceclone-go/internal/clone"
	"github.com/dgnsrekt/voiceclone-go/internal/config"
	"github.com/dgnsrekt/voiceclone-go/internal/storage"
)

//go:embed static
var staticFiles embed.FS

// Cloner runs the clone pipeline. *clone.Service implements it.
type Cloner interface {
	Clone(ctx context.Context, req clone.Request) (*clone.Result, error)
}

// Server handles HTTP API requests.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	cloner   Cloner
	layout   *storage.Layout
	gatherer prometheus.Gatherer
	server   *http.Server
	newID    func() string
}

// New creates a new API server. A nil gatherer serves the default
// Prometheus registry on /metrics.
func New(cfg *config.Config, logger *slog.Logger, cloner Cloner, layout *storage.Layout, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		cloner:   cloner,
		layout:   layout,
		gatherer: gatherer,
		newID:    uuid.NewString,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(slogchi.New(s.logger))
	router.Use(s.recordMetrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	router.Use(middleware.Recoverer)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	router.Get("/", s.handleIndex)
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	router.Get("/healthz", s.handleHealthz)

	if s.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	} else {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.With(s.withAuth).Post("/generate", s.handleGenerate)
	router.Get("/outputs/{filename}", s.handleOutput)

	return router
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
