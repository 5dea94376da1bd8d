package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/doc-outline/pkg/config"
	applog "github.com/Sriram-PR/doc-outline/pkg/log"
	"github.com/Sriram-PR/doc-outline/pkg/refresh"
	"github.com/Sriram-PR/doc-outline/pkg/source"
	"github.com/Sriram-PR/doc-outline/pkg/storage"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		runExtract(os.Args[2:])
	case "render":
		runRender(os.Args[2:])
	case "refresh":
		runRefresh(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-sources":
		runListSources(os.Args[2:])
	case "version":
		fmt.Printf("doc-outline %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `doc-outline - Markdown heading outlines and "On this page" navigators

Usage:
  doc-outline <command> [options]

Commands:
  extract       Print the section outline of a markdown file
  render        Render a markdown file to HTML with a navigator
  refresh       Fetch configured sources and store their outlines
  watch         Refresh sources on a schedule
  serve         Start the HTTP JSON API
  mcp-server    Start MCP server for AI tool integration
  validate      Validate configuration file
  list-sources  List configured source keys
  version       Show version info

Run 'doc-outline <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// setupLogger creates the process logger writing to out.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log, err := applog.New(out, logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	}
	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) (*config.AppConfig, error) {
	log.Debugf("Loading configuration from %s", configFile)
	appCfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}

	appWarnings, _ := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	return appCfg, nil
}

// resolveSourceKeys validates the requested keys, or returns every
// configured key when all is set. Each selected SourceConfig is validated and
// written back normalized.
func resolveSourceKeys(appCfg *config.AppConfig, keys []string, all bool, log *logrus.Logger) ([]string, error) {
	if all {
		keys = refresh.GetAllSourceKeys(appCfg)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no sources selected")
	}
	if err := refresh.ValidateSourceKeys(appCfg, keys); err != nil {
		return nil, err
	}

	for _, key := range keys {
		srcCfg := appCfg.Sources[key]
		srcWarnings, err := srcCfg.Validate()
		if err != nil {
			return nil, fmt.Errorf("source '%s' configuration error: %w", key, err)
		}
		for _, w := range srcWarnings {
			log.Warnf("[%s] %s", key, w)
		}
		appCfg.Sources[key] = srcCfg
	}
	return keys, nil
}

// splitKeys parses the -source / -sources flag pair.
func splitKeys(single, list string) []string {
	var keys []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			keys = append(keys, s)
		}
	}
	if single != "" {
		keys = append(keys, single)
	}
	return keys
}

// addSourceFlags registers the source selection flags shared by refresh and watch.
func addSourceFlags(fs *flag.FlagSet) (single, list *string, all *bool) {
	single = fs.String("source", "", "Source key from config (single source)")
	list = fs.String("sources", "", "Comma-separated source keys")
	all = fs.Bool("all-sources", false, "Use all configured sources")
	return single, list, all
}

// services bundles the components behind refresh, watch, serve and mcp-server.
type services struct {
	store        storage.Store
	orchestrator *refresh.Orchestrator
	stopGC       context.CancelFunc
}

// openServices opens the outline store and wires the loader and orchestrator.
// The store's GC loop runs until ctx is done or Close is called.
func openServices(ctx context.Context, appCfg *config.AppConfig, force bool, log *logrus.Logger) (*services, error) {
	store, err := storage.NewBadgerStore(appCfg.StateDir, log.WithField("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("open outline store: %w", err)
	}
	gcCtx, stopGC := context.WithCancel(ctx)
	go store.RunGC(gcCtx, appCfg.DBGCInterval)

	httpClient := source.NewClient(appCfg.HTTPClientSettings, log.WithField("component", "http"))
	loader := source.NewLoader(appCfg, httpClient, log.WithField("component", "source"))
	orch := refresh.NewOrchestrator(appCfg, loader, store, force, log.WithField("component", "refresh"))

	return &services{store: store, orchestrator: orch, stopGC: stopGC}, nil
}

func (s *services) Close() error {
	s.stopGC()
	return s.store.Close()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
