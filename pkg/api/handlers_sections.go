package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/Sriram-PR/doc-outline/pkg/process"
	"github.com/Sriram-PR/doc-outline/pkg/render"
	"github.com/Sriram-PR/doc-outline/pkg/toc"
)

type markdownRequest struct {
	Markdown string `json:"markdown"`
}

type sectionsResponse struct {
	Sections   []toc.Section      `json:"sections"`
	Count      int                `json:"count"`
	Mismatches []process.Mismatch `json:"mismatches,omitempty"`
}

type renderResponse struct {
	HTML      string        `json:"html"`
	Navigator string        `json:"navigator"`
	Outline   string        `json:"outline"`
	Sections  []toc.Section `json:"sections"`
}

type chunksResponse struct {
	Chunks []process.Chunk `json:"chunks"`
	Count  int             `json:"count"`
}

// handleSections returns the outline of the posted markdown.
// ?check=true adds headings a CommonMark parser disagrees on.
func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	markdown, ok := readMarkdown(w, r)
	if !ok {
		return
	}

	sections := toc.ExtractSections(markdown)
	resp := sectionsResponse{Sections: sections, Count: len(sections)}
	if r.URL.Query().Get("check") == "true" {
		resp.Mismatches = process.CrossCheck(markdown)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRender returns anchored HTML plus navigators for the posted markdown.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	markdown, ok := readMarkdown(w, r)
	if !ok {
		return
	}

	doc, err := s.renderer.Render(markdown)
	if err != nil {
		jsonError(w, "render failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	nav, err := render.RenderNavigator(doc.Sections)
	if err != nil {
		jsonError(w, "navigator failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, renderResponse{
		HTML:      doc.HTML,
		Navigator: nav,
		Outline:   toc.RenderMarkdownList(doc.Sections),
		Sections:  doc.Sections,
	})
}

// handleChunks splits the posted markdown into section-anchored chunks.
func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	markdown, ok := readMarkdown(w, r)
	if !ok {
		return
	}

	chunks, err := process.ChunkMarkdown(markdown, s.chunking)
	if err != nil {
		jsonError(w, "chunking failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if chunks == nil {
		chunks = []process.Chunk{}
	}
	writeJSON(w, http.StatusOK, chunksResponse{Chunks: chunks, Count: len(chunks)})
}

// readMarkdown accepts either a JSON {"markdown": ...} body or raw markdown.
// On failure it writes the error response and returns false.
func readMarkdown(w http.ResponseWriter, r *http.Request) (string, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var req markdownRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBodyError(w, err, "invalid JSON body")
			return "", false
		}
		return req.Markdown, true
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBodyError(w, err, "failed to read body")
		return "", false
	}
	return string(body), true
}

func writeBodyError(w http.ResponseWriter, err error, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	jsonError(w, msg+": "+err.Error(), http.StatusBadRequest)
}
