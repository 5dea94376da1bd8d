package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/doc-outline/pkg/config"
	"github.com/Sriram-PR/doc-outline/pkg/models"
	"github.com/Sriram-PR/doc-outline/pkg/refresh"
	"github.com/Sriram-PR/doc-outline/pkg/storage"
	"github.com/Sriram-PR/doc-outline/pkg/toc"
	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

const report = "# Results\n## Revenue\nUp.\n# Results\n"

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testConfig(apiKey string) *config.AppConfig {
	cfg := &config.AppConfig{API: config.APIConfig{APIKey: apiKey, MaxBodyBytes: 1024}}
	cfg.Chunking = config.ChunkingConfig{MaxChunkSize: 512, ChunkOverlap: 50}
	return cfg
}

type fakeRefresher struct {
	results map[string]refresh.SourceResult
}

func (f *fakeRefresher) RefreshSource(_ context.Context, key string) refresh.SourceResult {
	if r, ok := f.results[key]; ok {
		return r
	}
	err := fmt.Errorf("%w: '%s'", utils.ErrSourceNotFound, key)
	return refresh.SourceResult{SourceKey: key, Outcome: refresh.OutcomeFailed, Err: err, ErrorType: utils.CategorizeError(err)}
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewInMemoryStore(testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func do(t *testing.T, srv http.Handler, method, path, contentType, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv := NewServer(testConfig("secret"), newTestStore(t), nil, testLogger())

	rec := do(t, srv, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["documents"])
}

func TestSections_RawAndJSON(t *testing.T) {
	srv := NewServer(testConfig(""), nil, nil, testLogger())

	for _, tc := range []struct {
		name, contentType, body string
	}{
		{"raw", "text/markdown", report},
		{"json", "application/json; charset=utf-8", `{"markdown":"# Results\n## Revenue\nUp.\n# Results\n"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/sections", tc.contentType, tc.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp sectionsResponse
			decode(t, rec, &resp)
			assert.Equal(t, 3, resp.Count)
			assert.Equal(t, toc.ExtractSections(report), resp.Sections)
			assert.Empty(t, resp.Mismatches)
		})
	}
}

func TestSections_Check(t *testing.T) {
	srv := NewServer(testConfig(""), nil, nil, testLogger())
	md := "# Setup\n```sh\n# not a heading\n```\n"

	rec := do(t, srv, http.MethodPost, "/api/sections?check=true", "text/markdown", md)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sectionsResponse
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Mismatches, 1)
	assert.Equal(t, "not a heading", resp.Mismatches[0].Title)
	assert.Equal(t, "pattern", resp.Mismatches[0].Scanner)
}

func TestSections_BadJSON(t *testing.T) {
	srv := NewServer(testConfig(""), nil, nil, testLogger())
	rec := do(t, srv, http.MethodPost, "/api/sections", "application/json", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSections_BodyTooLarge(t *testing.T) {
	srv := NewServer(testConfig(""), nil, nil, testLogger())
	rec := do(t, srv, http.MethodPost, "/api/sections", "text/markdown", strings.Repeat("# a\n", 500))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAuth(t *testing.T) {
	srv := NewServer(testConfig("secret"), nil, nil, testLogger())

	rec := do(t, srv, http.MethodPost, "/api/sections", "text/markdown", report)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/sections", "text/markdown", report, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/sections", "text/markdown", report, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRender(t *testing.T) {
	srv := NewServer(testConfig(""), nil, nil, testLogger())

	rec := do(t, srv, http.MethodPost, "/api/render", "text/markdown", report)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp renderResponse
	decode(t, rec, &resp)
	assert.Contains(t, resp.HTML, `id="results-1"`)
	assert.Contains(t, resp.Navigator, `href="#revenue"`)
	assert.Contains(t, resp.Outline, "(#results-1)")
	assert.Len(t, resp.Sections, 3)
}

func TestChunks(t *testing.T) {
	srv := NewServer(testConfig(""), nil, nil, testLogger())

	rec := do(t, srv, http.MethodPost, "/api/chunks", "text/markdown", report)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chunksResponse
	decode(t, rec, &resp)
	require.Equal(t, len(resp.Chunks), resp.Count)
	require.NotZero(t, resp.Count)

	var anchors []string
	for _, c := range resp.Chunks {
		anchors = append(anchors, c.AnchorID)
	}
	assert.Contains(t, anchors, "revenue")
}

func TestDocuments(t *testing.T) {
	store := newTestStore(t)
	sections := toc.ExtractSections(report)
	require.NoError(t, store.SaveDocument(&models.DocumentEntry{
		SourceKey:   "acme",
		URL:         "https://acme.example.com/q4.md",
		Title:       "Results",
		ContentHash: utils.CalculateStringSHA256(report),
		Sections:    sections,
		Status:      models.DocumentStatusSuccess,
		FetchedAt:   time.Now(),
		LastAttempt: time.Now(),
	}))
	srv := NewServer(testConfig(""), store, nil, testLogger())

	rec := do(t, srv, http.MethodGet, "/api/documents", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Documents []models.DocumentSummary `json:"documents"`
		Count     int                      `json:"count"`
	}
	decode(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "acme", list.Documents[0].SourceKey)
	assert.Equal(t, 3, list.Documents[0].SectionCount)

	rec = do(t, srv, http.MethodGet, "/api/documents/acme", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got documentResponse
	decode(t, rec, &got)
	assert.Equal(t, sections, got.Document.Sections)
	assert.Equal(t, toc.RenderMarkdownList(sections), got.Outline)

	rec = do(t, srv, http.MethodGet, "/api/documents/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/documents/acme", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/documents/acme", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocuments_NoStore(t *testing.T) {
	srv := NewServer(testConfig(""), nil, nil, testLogger())
	rec := do(t, srv, http.MethodGet, "/api/documents", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/documents/acme/refresh", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefreshDocument(t *testing.T) {
	refresher := &fakeRefresher{results: map[string]refresh.SourceResult{
		"acme": {SourceKey: "acme", Outcome: refresh.OutcomeUpdated, Sections: 3},
		"down": {SourceKey: "down", Outcome: refresh.OutcomeFailed, ErrorType: "HTTP_5xx", Err: utils.ErrServerHTTPError},
	}}
	srv := NewServer(testConfig(""), nil, refresher, testLogger())

	rec := do(t, srv, http.MethodPost, "/api/documents/acme/refresh", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ok struct {
		Result refresh.SourceResult `json:"result"`
	}
	decode(t, rec, &ok)
	assert.Equal(t, refresh.OutcomeUpdated, ok.Result.Outcome)
	assert.Equal(t, 3, ok.Result.Sections)

	rec = do(t, srv, http.MethodPost, "/api/documents/down/refresh", "", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "HTTP_5xx")

	rec = do(t, srv, http.MethodPost, "/api/documents/nope/refresh", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
