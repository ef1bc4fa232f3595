// Package api provides the HTTP API server and handlers for EcoCampus.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ecocampus/ecocampus-server/internal/ratelimit"
	"github.com/ecocampus/ecocampus-server/internal/sse"
)

// Options configures the HTTP surface.
type Options struct {
	Title          string
	Version        string
	AllowedOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services     *Services
	health       Health
	streams      *sse.Manager
	loginLimiter *ratelimit.KeyedRateLimiter
	router       *chi.Mux
	api          huma.API
	logger       *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, health Health, streams *sse.Manager, loginLimiter *ratelimit.KeyedRateLimiter, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		services:     services,
		health:       health,
		streams:      streams,
		loginLimiter: loginLimiter,
		router:       chi.NewRouter(),
		logger:       logger,
	}

	s.setupMiddleware(opts)
	s.setupAPI(opts)
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, e.g. for the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(middleware.Compress(5))
	s.router.Use(RateLimitMiddleware(s.loginLimiter, s.logger, pathLogin, pathSignup))
	s.router.Use(authMiddleware(s.services.Session))
}

func (s *Server) setupAPI(opts Options) {
	title := opts.Title
	if title == "" {
		title = "EcoCampus API"
	}
	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}

	humaConfig := huma.DefaultConfig(title, version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerPageRoutes()
	s.registerCheckinRoutes()
	s.registerQuizRoutes()
	s.registerChallengeRoutes()
	s.registerEventRoutes()
	s.registerRewardRoutes()
	s.registerLeaderboardRoutes()
	s.registerSportsRoutes()
	s.registerMovieRoutes()
	s.registerProfileRoutes()
	s.registerChatRoutes()

	// Browser push stream (chi direct, not huma).
	if s.streams != nil {
		s.router.Get("/api/v1/events/stream", sse.NewHandler(s.streams, sseSession, s.logger).ServeHTTP)
	}
}

// bearer marks an operation as requiring a session.
var bearer = []map[string][]string{{"bearer": {}}}
