package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-outline/pkg/models"
	"github.com/Sriram-PR/doc-outline/pkg/process"
	"github.com/Sriram-PR/doc-outline/pkg/refresh"
	"github.com/Sriram-PR/doc-outline/pkg/render"
	"github.com/Sriram-PR/doc-outline/pkg/toc"
)

// handleExtractSections handles the extract_sections tool
func (s *Server) handleExtractSections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markdown, err := request.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError("markdown parameter is required"), nil
	}

	sections := toc.ExtractSections(markdown)
	result := map[string]interface{}{
		"sections": sections,
		"count":    len(sections),
	}
	if request.GetBool("check", false) {
		result["mismatches"] = process.CrossCheck(markdown)
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleRenderOutline handles the render_outline tool
func (s *Server) handleRenderOutline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markdown, err := request.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError("markdown parameter is required"), nil
	}

	sections := toc.ExtractSections(markdown)
	switch format := request.GetString("format", "markdown"); format {
	case "markdown":
		return mcp.NewToolResultText(toc.RenderMarkdownList(sections)), nil
	case "html":
		nav, err := render.RenderNavigator(sections)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to render navigator: %v", err)), nil
		}
		return mcp.NewToolResultText(nav), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format '%s' (supported: markdown, html)", format)), nil
	}
}

// handleListSources handles the list_sources tool
func (s *Server) handleListSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := refresh.GetAllSourceKeys(s.cfg.AppConfig)
	sources := make([]map[string]interface{}, 0, len(keys))

	for _, key := range keys {
		srcCfg := s.cfg.AppConfig.Sources[key]
		info := map[string]interface{}{
			"key":    key,
			"url":    srcCfg.URL,
			"format": srcCfg.Format,
		}
		if srcCfg.Title != "" {
			info["title"] = srcCfg.Title
		}

		status, entry, err := s.cfg.Store.GetDocument(key)
		switch {
		case err != nil:
			info["status"] = status.String()
		case entry != nil:
			summary := entry.Summary()
			info["status"] = summary.Status.String()
			info["sections"] = summary.SectionCount
			info["last_attempt"] = summary.LastAttempt.Format(time.RFC3339)
			if summary.ErrorType != "" {
				info["error_type"] = summary.ErrorType
			}
		default:
			info["status"] = models.DocumentStatusNotFound.String()
		}

		if job, ok := s.jobManager.ActiveJob(key); ok {
			info["job_id"] = job.ID
			info["job_status"] = job.Status
		}
		sources = append(sources, info)
	}

	result := map[string]interface{}{
		"sources":       sources,
		"config_path":   s.cfg.ConfigPath,
		"total_sources": len(sources),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleRefreshSource handles the refresh_source tool
func (s *Server) handleRefreshSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceKey := request.GetString("source_key", "")
	if sourceKey == "" {
		return mcp.NewToolResultError("source_key parameter is required"), nil
	}
	if err := refresh.ValidateSourceKeys(s.cfg.AppConfig, []string{sourceKey}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	job, created := s.jobManager.CreateJob(sourceKey)
	if !created {
		result := map[string]interface{}{
			"status":     "already_running",
			"message":    "A refresh is already in progress for this source",
			"job_id":     job.ID,
			"source_key": sourceKey,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	s.wg.Add(1)
	go s.runRefreshJob(job.ID, sourceKey)

	result := map[string]interface{}{
		"status":     "started",
		"message":    "Refresh started",
		"job_id":     job.ID,
		"source_key": sourceKey,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	return mcp.NewToolResultText(formatJSON(jobInfo(job))), nil
}

// handleListJobs handles the list_jobs tool
func (s *Server) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activeOnly := request.GetBool("active_only", false)

	jobs := make([]map[string]interface{}, 0)
	for _, job := range s.jobManager.ListJobs() {
		if activeOnly && !job.Status.active() {
			continue
		}
		jobs = append(jobs, jobInfo(job))
	}

	result := map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}
	if !s.jobManager.CancelJob(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' already %s", jobID, job.Status)), nil
	}

	s.log.WithFields(logrus.Fields{"source": job.SourceKey, "job_id": jobID}).Info("Refresh job cancelled")
	job, _ = s.jobManager.GetJob(jobID)
	return mcp.NewToolResultText(formatJSON(jobInfo(job))), nil
}

// jobInfo is the JSON view of a job shared by the job tools
func jobInfo(job Job) map[string]interface{} {
	result := map[string]interface{}{
		"job_id":     job.ID,
		"source_key": job.SourceKey,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.Outcome != "" {
		result["outcome"] = job.Outcome
		result["sections"] = job.Sections
	}
	if job.ErrorType != "" {
		result["error_type"] = job.ErrorType
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return result
}

// handleGetOutline handles the get_outline tool
func (s *Server) handleGetOutline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceKey := request.GetString("source_key", "")
	if sourceKey == "" {
		return mcp.NewToolResultError("source_key parameter is required"), nil
	}

	status, entry, err := s.cfg.Store.GetDocument(sourceKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read outline: %v", err)), nil
	}
	if status == models.DocumentStatusNotFound || entry == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no stored outline for '%s'; run refresh_source first", sourceKey)), nil
	}

	switch format := request.GetString("format", "json"); format {
	case "markdown":
		return mcp.NewToolResultText(toc.RenderMarkdownList(entry.Sections)), nil
	case "json":
		result := map[string]interface{}{
			"source_key":   entry.SourceKey,
			"title":        entry.Title,
			"url":          entry.URL,
			"status":       entry.Status.String(),
			"content_hash": entry.ContentHash,
			"sections":     entry.Sections,
			"stats":        toc.Stats(entry.Sections),
		}
		if !entry.FetchedAt.IsZero() {
			result["fetched_at"] = entry.FetchedAt.Format(time.RFC3339)
		}
		if entry.ErrorType != "" {
			result["error_type"] = entry.ErrorType
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format '%s' (supported: json, markdown)", format)), nil
	}
}

// runRefreshJob refreshes a source in the background and records the result
func (s *Server) runRefreshJob(jobID, sourceKey string) {
	defer s.wg.Done()

	jobCtx := s.jobManager.Start(jobID)
	result := s.cfg.Refresher.RefreshSource(jobCtx, sourceKey)
	s.jobManager.Finish(jobID, result)

	s.log.WithFields(logrus.Fields{
		"source":  sourceKey,
		"job_id":  jobID,
		"outcome": result.Outcome,
	}).Info("Refresh job finished")
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
