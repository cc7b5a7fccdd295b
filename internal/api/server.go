// Package api provides the HTTP API server and handlers for the narration server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/readalong/narration-server/internal/http/response"
	"github.com/readalong/narration-server/internal/media/audio"
	"github.com/readalong/narration-server/internal/narration"
	"github.com/readalong/narration-server/internal/playback"
	"github.com/readalong/narration-server/internal/progress"
	"github.com/readalong/narration-server/internal/store"
	"github.com/readalong/narration-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       *store.Store
	narration   *narration.Service
	coordinator *playback.Coordinator
	progress    *progress.Cache
	blobs       *audio.Storage
	validator   *validation.Validator
	router      *chi.Mux
	logger      *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	st *store.Store,
	narrationService *narration.Service,
	coordinator *playback.Coordinator,
	progressCache *progress.Cache,
	blobs *audio.Storage,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:       st,
		narration:   narrationService,
		coordinator: coordinator,
		progress:    progressCache,
		blobs:       blobs,
		validator:   validation.New(),
		router:      chi.NewRouter(),
		logger:      logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack. Reader clients are
// browser-based, so CORS is wide open for GET/playback endpoints.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Range"},
		ExposedHeaders: []string{"Content-Length", "Content-Range", "Accept-Ranges"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		// Books and their canonical token streams.
		r.Route("/books", func(r chi.Router) {
			r.Post("/", s.handleCreateBook)
			r.Get("/", s.handleListBooks)
			r.Get("/{id}", s.handleGetBook)
			r.Delete("/{id}", s.handleDeleteBook)

			r.Put("/{id}/tokens", s.handleUploadTokens)
			r.Get("/{id}/tokens", s.handleGetTokens)

			// Narration runs.
			r.Post("/{id}/narration", s.handleStartNarration)
			r.Get("/{id}/narration/runs", s.handleListRuns)

			// Per-voice shard partitions.
			r.Get("/{id}/voices", s.handleListVoices)
			r.Route("/{id}/voices/{voiceID}", func(r chi.Router) {
				r.Delete("/", s.handlePurgeVoice)
				r.Get("/shards", s.handleListShards)
				r.Get("/shards/{chunk}", s.handleGetShard)
				r.Get("/shards/{chunk}/audio", s.handleStreamShardAudio)
				r.Get("/shards/{chunk}/next", s.handleNextShard)
				r.Get("/position", s.handleSelectShard)
			})
		})

		// Run records by ID.
		r.Get("/runs/{runID}", s.handleGetRun)

		// Server-side reading progress.
		r.Route("/profiles/{profileID}/progress", func(r chi.Router) {
			r.Get("/", s.handleListProgress)
			r.Get("/{bookID}", s.handleGetProgress)
			r.Put("/{bookID}", s.handleSaveProgress)
			r.Delete("/{bookID}", s.handleDeleteProgress)
		})

		// Device-local resume positions, backed by the best-effort cache
		// rather than the durable store.
		r.Route("/device/progress", func(r chi.Router) {
			r.Get("/{bookID}", s.handleGetLocalProgress)
			r.Put("/{bookID}", s.handleSaveLocalProgress)
			r.Delete("/{bookID}", s.handleClearLocalProgress)
		})
	})
}

// handleHealthCheck returns server health status.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"status": "healthy",
	}, s.logger)
}
