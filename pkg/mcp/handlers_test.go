package mcp

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/doc-outline/pkg/config"
	"github.com/Sriram-PR/doc-outline/pkg/models"
	"github.com/Sriram-PR/doc-outline/pkg/refresh"
	"github.com/Sriram-PR/doc-outline/pkg/storage"
	"github.com/Sriram-PR/doc-outline/pkg/toc"
)

const report = "# Results\n## Revenue\n# Results\n"

// blockingRefresher stores report for any key once release is closed.
type blockingRefresher struct {
	store   storage.DocumentStore
	release chan struct{}
}

func (b *blockingRefresher) RefreshSource(ctx context.Context, key string) refresh.SourceResult {
	select {
	case <-b.release:
	case <-ctx.Done():
		return refresh.SourceResult{SourceKey: key, Outcome: refresh.OutcomeFailed, Err: ctx.Err()}
	}
	sections := toc.ExtractSections(report)
	_ = b.store.SaveDocument(&models.DocumentEntry{
		SourceKey:   key,
		URL:         "https://" + key + ".example.com/q4.md",
		Title:       "Results",
		ContentHash: "abc",
		Sections:    sections,
		Status:      models.DocumentStatusSuccess,
		FetchedAt:   time.Now(),
		LastAttempt: time.Now(),
	})
	return refresh.SourceResult{SourceKey: key, Outcome: refresh.OutcomeUpdated, Sections: len(sections)}
}

func newTestServer(t *testing.T) (*Server, *blockingRefresher) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store, err := storage.NewInMemoryStore(logrus.NewEntry(log))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	refresher := &blockingRefresher{store: store, release: make(chan struct{})}
	appCfg := &config.AppConfig{Sources: map[string]config.SourceConfig{
		"acme":   {URL: "https://acme.example.com/q4.md", Format: config.FormatMarkdown, Title: "ACME Q4"},
		"globex": {URL: "https://globex.example.com/q4.html", Format: config.FormatHTML},
	}}

	s, err := NewServer(&ServerConfig{
		AppConfig:  appCfg,
		ConfigPath: "config.yaml",
		Transport:  "stdio",
		Store:      store,
		Refresher:  refresher,
		Logger:     log,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, refresher
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(&ServerConfig{})
	assert.Error(t, err)

	_, err = NewServer(&ServerConfig{AppConfig: &config.AppConfig{}})
	assert.Error(t, err)
}

func TestHandleExtractSections(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleExtractSections(ctx, call(map[string]any{"markdown": report}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.EqualValues(t, 3, out["count"])
	sections := out["sections"].([]any)
	assert.Equal(t, "results-1", sections[2].(map[string]any)["id"])
	assert.NotContains(t, out, "mismatches")

	res, err = s.handleExtractSections(ctx, call(map[string]any{
		"markdown": "```\n# shell comment\n```\n",
		"check":    true,
	}))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Len(t, out["mismatches"], 1)

	res, err = s.handleExtractSections(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleRenderOutline(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleRenderOutline(ctx, call(map[string]any{"markdown": report}))
	require.NoError(t, err)
	assert.Equal(t, "- [Results](#results)\n  - [Revenue](#revenue)\n- [Results](#results-1)\n", resultText(t, res))

	res, err = s.handleRenderOutline(ctx, call(map[string]any{"markdown": report, "format": "html"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `href="#results-1"`)

	res, err = s.handleRenderOutline(ctx, call(map[string]any{"markdown": report, "format": "pdf"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRefreshJobLifecycle(t *testing.T) {
	s, refresher := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetOutline(ctx, call(map[string]any{"source_key": "acme"}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "no outline before first refresh")

	res, err = s.handleRefreshSource(ctx, call(map[string]any{"source_key": "acme"}))
	require.NoError(t, err)
	started := resultJSON(t, res)
	assert.Equal(t, "started", started["status"])
	jobID := started["job_id"].(string)

	res, err = s.handleRefreshSource(ctx, call(map[string]any{"source_key": "acme"}))
	require.NoError(t, err)
	again := resultJSON(t, res)
	assert.Equal(t, "already_running", again["status"])
	assert.Equal(t, jobID, again["job_id"])

	res, err = s.handleListSources(ctx, call(nil))
	require.NoError(t, err)
	listed := resultJSON(t, res)
	assert.EqualValues(t, 2, listed["total_sources"])
	first := listed["sources"].([]any)[0].(map[string]any)
	assert.Equal(t, "acme", first["key"])
	assert.Equal(t, jobID, first["job_id"])

	close(refresher.release)
	require.Eventually(t, func() bool {
		job, ok := s.jobManager.GetJob(jobID)
		return ok && job.Status == JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	res, err = s.handleGetJobStatus(ctx, call(map[string]any{"job_id": jobID}))
	require.NoError(t, err)
	status := resultJSON(t, res)
	assert.Equal(t, "completed", status["status"])
	assert.Equal(t, "updated", status["outcome"])
	assert.EqualValues(t, 3, status["sections"])

	res, err = s.handleGetOutline(ctx, call(map[string]any{"source_key": "acme", "format": "markdown"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "- [Results](#results-1)")

	res, err = s.handleGetOutline(ctx, call(map[string]any{"source_key": "acme"}))
	require.NoError(t, err)
	outline := resultJSON(t, res)
	assert.Equal(t, "success", outline["status"])
	assert.Len(t, outline["sections"], 3)
}

func TestHandleRefreshSource_UnknownSource(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleRefreshSource(context.Background(), call(map[string]any{"source_key": "initech"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "acme")
}

func TestHandleGetJobStatus_Missing(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleGetJobStatus(context.Background(), call(map[string]any{"job_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestShutdown_CancelsRunningJobs(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleRefreshSource(context.Background(), call(map[string]any{"source_key": "globex"}))
	require.NoError(t, err)
	jobID := resultJSON(t, res)["job_id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	job, ok := s.jobManager.GetJob(jobID)
	require.True(t, ok)
	assert.Equal(t, JobStatusCancelled, job.Status)
}

func TestCancelAndListJobs(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleRefreshSource(ctx, call(map[string]any{"source_key": "acme"}))
	require.NoError(t, err)
	jobID := resultJSON(t, res)["job_id"].(string)

	res, err = s.handleListJobs(ctx, call(map[string]any{"active_only": true}))
	require.NoError(t, err)
	active := resultJSON(t, res)
	assert.EqualValues(t, 1, active["count"])

	res, err = s.handleCancelJob(ctx, call(map[string]any{"job_id": jobID}))
	require.NoError(t, err)
	cancelled := resultJSON(t, res)
	assert.Equal(t, "cancelled", cancelled["status"])
	assert.Contains(t, cancelled, "completed_at")

	res, err = s.handleCancelJob(ctx, call(map[string]any{"job_id": jobID}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "cancelling a finished job fails")

	res, err = s.handleCancelJob(ctx, call(map[string]any{"job_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleListJobs(ctx, call(map[string]any{"active_only": true}))
	require.NoError(t, err)
	assert.EqualValues(t, 0, resultJSON(t, res)["count"])

	res, err = s.handleListJobs(ctx, call(nil))
	require.NoError(t, err)
	all := resultJSON(t, res)
	require.EqualValues(t, 1, all["count"])
	listed := all["jobs"].([]any)[0].(map[string]any)
	assert.Equal(t, jobID, listed["job_id"])
	assert.Equal(t, "cancelled", listed["status"])

	res, err = s.handleRefreshSource(ctx, call(map[string]any{"source_key": "acme"}))
	require.NoError(t, err)
	restarted := resultJSON(t, res)
	assert.Equal(t, "started", restarted["status"])
	assert.NotEqual(t, jobID, restarted["job_id"])
}
