package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Sriram-PR/doc-outline/pkg/models"
	"github.com/Sriram-PR/doc-outline/pkg/refresh"
	"github.com/Sriram-PR/doc-outline/pkg/toc"
	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

type documentResponse struct {
	Document *models.DocumentEntry `json:"document"`
	Outline  string                `json:"outline"`
}

// handleListDocuments lists every stored outline.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "document store not configured", http.StatusServiceUnavailable)
		return
	}
	entries, err := s.store.ListDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	docs := make([]models.DocumentSummary, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

// handleGetDocument returns one stored outline with its markdown navigator.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "document store not configured", http.StatusServiceUnavailable)
		return
	}
	key := chi.URLParam(r, "key")

	status, entry, err := s.store.GetDocument(key)
	if err != nil {
		jsonError(w, "failed to read document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if status == models.DocumentStatusNotFound || entry == nil {
		jsonError(w, "document not found: "+key, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: entry, Outline: toc.RenderMarkdownList(entry.Sections)})
}

// handleRefreshDocument refreshes one configured source synchronously.
func (s *Server) handleRefreshDocument(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		jsonError(w, "refresh not configured", http.StatusServiceUnavailable)
		return
	}
	key := chi.URLParam(r, "key")

	result := s.refresher.RefreshSource(r.Context(), key)
	code := http.StatusOK
	switch {
	case errors.Is(result.Err, utils.ErrSourceNotFound):
		code = http.StatusNotFound
	case result.Outcome == refresh.OutcomeFailed:
		code = http.StatusBadGateway
	}

	resp := map[string]any{"result": result}
	if result.Err != nil {
		resp["error"] = result.Err.Error()
	}
	writeJSON(w, code, resp)
}

// handleDeleteDocument removes a stored outline.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "document store not configured", http.StatusServiceUnavailable)
		return
	}
	key := chi.URLParam(r, "key")

	if err := s.store.DeleteDocument(key); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
