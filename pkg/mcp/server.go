package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-outline/pkg/config"
	"github.com/Sriram-PR/doc-outline/pkg/refresh"
	"github.com/Sriram-PR/doc-outline/pkg/storage"
)

const (
	serverName    = "doc-outline"
	serverVersion = "1.0.0"
)

// SourceRefresher refreshes a single configured source
type SourceRefresher interface {
	RefreshSource(ctx context.Context, sourceKey string) refresh.SourceResult
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Store      storage.DocumentStore
	Refresher  SourceRefresher
	Logger     *logrus.Logger
}

// Server exposes outline extraction and stored outlines as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
	wg         sync.WaitGroup
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Store == nil || cfg.Refresher == nil {
		return nil, fmt.Errorf("Store and Refresher are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	tools := []server.ServerTool{
		{
			Tool: mcp.NewTool("extract_sections",
				mcp.WithDescription("Extract the heading outline of a markdown document: anchor id, title, level and sequence key per heading"),
				mcp.WithString("markdown",
					mcp.Required(),
					mcp.Description("Markdown text"),
				),
				mcp.WithBoolean("check",
					mcp.Description("Also report headings a CommonMark parser disagrees on (e.g. '#' lines inside code fences)"),
				),
			),
			Handler: s.handleExtractSections,
		},
		{
			Tool: mcp.NewTool("render_outline",
				mcp.WithDescription("Render an 'On this page' navigator for a markdown document"),
				mcp.WithString("markdown",
					mcp.Required(),
					mcp.Description("Markdown text"),
				),
				mcp.WithString("format",
					mcp.Description("Navigator format"),
					mcp.Enum("markdown", "html"),
				),
			),
			Handler: s.handleRenderOutline,
		},
		{
			Tool: mcp.NewTool("list_sources",
				mcp.WithDescription("List configured document sources with their stored outline status"),
			),
			Handler: s.handleListSources,
		},
		{
			Tool: mcp.NewTool("refresh_source",
				mcp.WithDescription("Start a background refresh of a configured source. Returns immediately with a job ID."),
				mcp.WithString("source_key",
					mcp.Required(),
					mcp.Description("Source key from the config file"),
				),
			),
			Handler: s.handleRefreshSource,
		},
		{
			Tool: mcp.NewTool("get_job_status",
				mcp.WithDescription("Get the status of a refresh job"),
				mcp.WithString("job_id",
					mcp.Required(),
					mcp.Description("The job ID returned by refresh_source"),
				),
			),
			Handler: s.handleGetJobStatus,
		},
		{
			Tool: mcp.NewTool("list_jobs",
				mcp.WithDescription("List refresh jobs started by this server, oldest first"),
				mcp.WithBoolean("active_only",
					mcp.Description("Only return pending and running jobs"),
				),
			),
			Handler: s.handleListJobs,
		},
		{
			Tool: mcp.NewTool("cancel_job",
				mcp.WithDescription("Cancel a pending or running refresh job. The stored outline is left as it was."),
				mcp.WithString("job_id",
					mcp.Required(),
					mcp.Description("The job ID returned by refresh_source"),
				),
			),
			Handler: s.handleCancelJob,
		},
		{
			Tool: mcp.NewTool("get_outline",
				mcp.WithDescription("Get the stored outline of a source"),
				mcp.WithString("source_key",
					mcp.Required(),
					mcp.Description("Source key from the config file"),
				),
				mcp.WithString("format",
					mcp.Description("Output format"),
					mcp.Enum("json", "markdown"),
				),
			),
			Handler: s.handleGetOutline,
		},
	}
	s.mcpServer.AddTools(tools...)
	s.log.Infof("Registered %d MCP tools", len(tools))
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs and waits for them to return
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
