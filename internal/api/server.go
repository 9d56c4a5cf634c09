// Package api provides the HTTP API server and handlers for the zotairo backend.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/ratelimit"
)

// StoreHealth is the part of the relational store the health check reads.
type StoreHealth interface {
	Ping(ctx context.Context) error
	Counts(ctx context.Context) (domain.Counts, error)
}

// IndexHealth is the part of the search index the health check reads.
type IndexHealth interface {
	DocumentCount() (uint64, error)
}

// Options carries what the server needs besides services.
type Options struct {
	Store         StoreHealth
	Index         IndexHealth // may be nil
	WebDAVEnabled bool
	StaticDir     string                      // optional frontend build served at /
	QALimiter     *ratelimit.KeyedRateLimiter // nil disables QA limiting
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	opts     Options
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, opts Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services: services,
		opts:     opts,
		router:   router,
		logger:   logger,
	}
	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Zotairo API", Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack. The browser frontend may be
// served from another origin during development, so CORS is open.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(s.qaRateLimit)
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerConfigRoutes()
	s.registerLibraryRoutes()
	s.registerItemRoutes()
	s.registerMirrorRoutes()
	s.registerAttachmentRoutes()
	s.registerMarkdownRoutes()
	s.registerQARoutes()
	s.registerAnnotationRoutes()
	s.registerStaticRoutes()
}
