package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Sriram-PR/doc-outline/pkg/api"
	"github.com/Sriram-PR/doc-outline/pkg/process"
)

// runServe handles the serve subcommand
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	addr := fs.String("addr", "", "Listen address (overrides api.listen_addr)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: doc-outline serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	code := doServe(ctx, *configFile, *addr, *logLevel, os.Stderr)
	stop()
	os.Exit(code)
}

// doServe runs the HTTP API until ctx is done.
func doServe(ctx context.Context, configPath, addr, logLevel string, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)

	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if addr != "" {
		appCfg.API.ListenAddr = addr
	}
	if len(appCfg.Sources) > 0 {
		if _, err := resolveSourceKeys(appCfg, nil, true, log); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if err := process.InitTokenizer(appCfg.TokenizerEncoding); err != nil {
		log.Warnf("Tokenizer unavailable, chunk sizes fall back to characters: %v", err)
	}

	svc, err := openServices(ctx, appCfg, false, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	if appCfg.API.APIKey == "" {
		log.Warn("api.api_key is empty, the API is unauthenticated")
	}

	srv := &http.Server{
		Addr:              appCfg.API.ListenAddr,
		Handler:           api.NewServer(appCfg, svc.store, svc.orchestrator, log.WithField("component", "api")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP API listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return 1
		}
	case <-ctx.Done():
		log.Info("Shutting down HTTP API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Graceful shutdown failed: %v", err)
			return 1
		}
	}
	return 0
}
