package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sriram-PR/doc-outline/pkg/mcp"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: doc-outline mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  doc-outline mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  doc-outline mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  extract_sections  Outline a markdown document
  render_outline    Render an "On this page" navigator
  list_sources      List configured sources and stored outline status
  refresh_source    Start a background refresh of a source
  get_job_status    Check a refresh job
  list_jobs         List refresh jobs
  cancel_job        Cancel a pending or running refresh job
  get_outline       Get a stored outline
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doMcpServer(*configFile, *transport, *port, *logLevel, os.Stderr))
}

// doMcpServer is the testable implementation of the MCP server.
// MCP uses stdout for the protocol, so logs go to stderr.
func doMcpServer(configPath, transport string, port int, logLevel string, stderr io.Writer) int {
	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(stderr, "Error: unknown transport: %s (supported: stdio, sse)\n", transport)
		return 1
	}
	log := setupLogger(logLevel, stderr)

	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if len(appCfg.Sources) > 0 {
		if _, err := resolveSourceKeys(appCfg, nil, true, log); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	svc, err := openServices(context.Background(), appCfg, false, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	server, err := mcp.NewServer(&mcp.ServerConfig{
		AppConfig:  appCfg,
		ConfigPath: configPath,
		Transport:  transport,
		Port:       port,
		Store:      svc.store,
		Refresher:  svc.orchestrator,
		Logger:     log,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)
	runErr := server.Run()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("MCP shutdown: %v", err)
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", runErr)
		return 1
	}
	return 0
}
