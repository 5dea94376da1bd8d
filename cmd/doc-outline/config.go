package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Sriram-PR/doc-outline/pkg/refresh"
)

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	sourceKey := fs.String("source", "", "Source key to validate (optional, validates all if empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: doc-outline validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, *sourceKey, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, sourceKey string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, _ := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}

	keys := refresh.GetAllSourceKeys(appCfg)
	if sourceKey != "" {
		if _, ok := appCfg.Sources[sourceKey]; !ok {
			fmt.Fprintf(stderr, "Error: source '%s' not found in config\n", sourceKey)
			return 1
		}
		keys = []string{sourceKey}
	}

	hasError := false
	for _, key := range keys {
		srcCfg := appCfg.Sources[key]
		srcWarnings, err := srcCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			hasError = true
			continue
		}
		for _, w := range srcWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
		}
		fmt.Fprintf(stdout, "OK: [%s]\n", key)
	}
	if hasError {
		return 1
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListSources handles the list-sources subcommand
func runListSources(args []string) {
	fs := flag.NewFlagSet("list-sources", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: doc-outline list-sources [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListSources(*configFile, os.Stdout, os.Stderr))
}

// doListSources lists sources and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doListSources(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Sources in %s:\n\n", configPath)
	for _, key := range refresh.GetAllSourceKeys(appCfg) {
		src := appCfg.Sources[key]
		fmt.Fprintf(stdout, "  %s\n", key)
		fmt.Fprintf(stdout, "    URL: %s\n", src.URL)
		if src.Title != "" {
			fmt.Fprintf(stdout, "    Title: %s\n", src.Title)
		}
		if src.Format != "" {
			fmt.Fprintf(stdout, "    Format: %s\n", src.Format)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}
