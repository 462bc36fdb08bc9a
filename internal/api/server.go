// Package api provides the HTTP server for audiobooks, their source documents
// and processing jobs.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/readalong/internal/library"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/pdfservice"
	"github.com/listenupapp/readalong/internal/ratelimit"
	"github.com/listenupapp/readalong/internal/search"
	"github.com/listenupapp/readalong/internal/sse"
	"github.com/listenupapp/readalong/internal/store/sqlite"
)

// Services are the components behind the handlers. PDF, Search and SSE may be
// nil; their endpoints then report the feature as unavailable.
type Services struct {
	Library        *library.Library
	PDF            *pdfservice.Service
	Jobs           *sqlite.Store
	Search         *search.SearchIndex
	SSE            *sse.Manager
	ProcessLimiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, version string, log *slog.Logger) *Server {
	log = logger.OrDiscard(log)

	router := chi.NewRouter()
	s := &Server{
		services: services,
		router:   router,
		logger:   log,
	}
	s.setupMiddleware()

	config := huma.DefaultConfig("Readalong API", version)
	config.Info.Description = "Audiobooks generated from PDF documents, with read-along support."
	s.api = humachi.New(router, config)
	RegisterErrorHandler()

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Accept-Ranges", "Content-Length", "Content-Range", "Content-Disposition"},
		MaxAge:         300,
	}))
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerLibraryRoutes()
	s.registerProcessingRoutes()
	s.registerCitationRoutes()
	s.registerSearchRoutes()

	// Byte streams bypass huma so http.ServeContent can answer range requests.
	s.router.Get("/api/audio/{filename}", s.handleStreamAudio)
	s.router.Get("/api/audiobook/{id}/play/{chunk}", s.handleStreamChunk)
	s.router.Get("/api/pdf/{filename}", s.handleStreamPDF)

	if s.services.SSE != nil {
		s.router.Method(http.MethodGet, "/api/events", sse.NewHandler(s.services.SSE, s.logger))
	}
}
