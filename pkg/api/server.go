package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-outline/pkg/config"
	"github.com/Sriram-PR/doc-outline/pkg/process"
	"github.com/Sriram-PR/doc-outline/pkg/refresh"
	"github.com/Sriram-PR/doc-outline/pkg/render"
	"github.com/Sriram-PR/doc-outline/pkg/storage"
)

// SourceRefresher refreshes a single configured source
type SourceRefresher interface {
	RefreshSource(ctx context.Context, sourceKey string) refresh.SourceResult
}

// Server is the HTTP API for outline extraction and stored outlines.
type Server struct {
	router    chi.Router
	renderer  *render.Renderer
	store     storage.DocumentStore
	refresher SourceRefresher
	chunking  process.ChunkerConfig
	cfg       config.APIConfig
	log       *logrus.Entry
}

// NewServer creates and configures the HTTP server. store and refresher may be
// nil, in which case only the stateless endpoints are useful.
func NewServer(appCfg *config.AppConfig, store storage.DocumentStore, refresher SourceRefresher, log *logrus.Entry) *Server {
	s := &Server{
		renderer:  render.NewRenderer(log),
		store:     store,
		refresher: refresher,
		chunking: process.ChunkerConfig{
			MaxChunkSize: appCfg.Chunking.MaxChunkSize,
			ChunkOverlap: appCfg.Chunking.ChunkOverlap,
		},
		cfg: appCfg.API,
		log: log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey))
		}
		r.Use(BodyLimit(s.cfg.MaxBodyBytes))

		r.Post("/api/sections", s.handleSections)
		r.Post("/api/render", s.handleRender)
		r.Post("/api/chunks", s.handleChunks)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{key}", s.handleGetDocument)
		r.Post("/api/documents/{key}/refresh", s.handleRefreshDocument)
		r.Delete("/api/documents/{key}", s.handleDeleteDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.store != nil {
		resp["documents"] = s.store.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
