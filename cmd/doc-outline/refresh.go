package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-outline/pkg/models"
	"github.com/Sriram-PR/doc-outline/pkg/refresh"
	"github.com/Sriram-PR/doc-outline/pkg/storage"
	"github.com/Sriram-PR/doc-outline/pkg/toc"
	"github.com/Sriram-PR/doc-outline/pkg/utils"
	"github.com/Sriram-PR/doc-outline/pkg/watch"
)

// runRefresh handles the refresh subcommand
func runRefresh(args []string) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	single, list, all := addSourceFlags(fs)
	force := fs.Bool("force", false, "Store outlines even when content is unchanged")
	write := fs.Bool("write", false, "Write each stored outline to output_dir as markdown")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: doc-outline refresh [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  doc-outline refresh -source acme_10k\n")
		fmt.Fprintf(os.Stderr, "  doc-outline refresh --all-sources -write\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	code := doRefresh(ctx, *configFile, splitKeys(*single, *list), *all, *force, *write, *logLevel, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// doRefresh refreshes the selected sources once and prints a result table.
// Returns exit code (0 = all sources refreshed, 1 = error or any failure).
func doRefresh(ctx context.Context, configPath string, keys []string, all, force, write bool, logLevel string, stdout, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)

	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	keys, err = resolveSourceKeys(appCfg, keys, all, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	svc, err := openServices(ctx, appCfg, force, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	results := svc.orchestrator.Run(ctx, keys)
	printResults(stdout, results)

	if write {
		if err := writeOutlines(svc.store, appCfg.OutputDir, results, log); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("Refresh cancelled.")
		return 1
	}
	if refresh.Failed(results) {
		return 1
	}
	return 0
}

func printResults(w io.Writer, results []refresh.SourceResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tOUTCOME\tSECTIONS\tERROR")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.SourceKey, r.Outcome, r.Sections, r.ErrorType)
	}
	_ = tw.Flush()
}

// writeOutlines writes "<source>.outline.md" for every source with a stored
// successful outline.
func writeOutlines(store storage.DocumentStore, outputDir string, results []refresh.SourceResult, log *logrus.Logger) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: create output dir '%s': %w", utils.ErrFilesystem, outputDir, err)
	}

	for _, r := range results {
		status, entry, err := store.GetDocument(r.SourceKey)
		if err != nil {
			return err
		}
		if status != models.DocumentStatusSuccess || entry == nil {
			continue
		}

		var content string
		if entry.Title != "" {
			content = fmt.Sprintf("# %s\n\n", entry.Title)
		}
		content += toc.RenderMarkdownList(entry.Sections)

		path := filepath.Join(outputDir, utils.SanitizeFilename(r.SourceKey)+".outline.md")
		if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
			return fmt.Errorf("%w: write '%s': %w", utils.ErrFilesystem, path, err)
		}
		// atomic.WriteFile creates new files 0600
		if err := os.Chmod(path, 0o644); err != nil {
			return fmt.Errorf("%w: chmod '%s': %w", utils.ErrFilesystem, path, err)
		}
		log.WithField("source", r.SourceKey).Infof("Wrote outline to %s", path)
	}
	return nil
}

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	single, list, all := addSourceFlags(fs)
	interval := fs.String("interval", "24h", "Refresh interval (e.g., 30m, 1h, 24h, 7d)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: doc-outline watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  doc-outline watch -source acme_10k -interval 6h\n")
		fmt.Fprintf(os.Stderr, "  doc-outline watch --all-sources -interval 1d\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	code := doWatch(ctx, *configFile, splitKeys(*single, *list), *all, *interval, *logLevel, os.Stderr)
	stop()
	os.Exit(code)
}

// doWatch runs the scheduler until ctx is done.
func doWatch(ctx context.Context, configPath string, keys []string, all bool, intervalStr, logLevel string, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)

	interval, err := watch.ParseInterval(intervalStr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid interval: %v\n", err)
		return 1
	}

	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	keys, err = resolveSourceKeys(appCfg, keys, all, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	svc, err := openServices(ctx, appCfg, false, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	scheduler := watch.NewScheduler(svc.orchestrator, appCfg.StateDir, keys, interval, log.WithField("component", "watch"))
	if err := scheduler.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Watch scheduler error: %v\n", err)
		return 1
	}

	log.Info("Watch mode stopped")
	return 0
}
