package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"html"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/doc-outline/pkg/process"
	"github.com/Sriram-PR/doc-outline/pkg/render"
	"github.com/Sriram-PR/doc-outline/pkg/toc"
)

// runExtract handles the extract subcommand
func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	format := fs.String("format", "json", "Output format (json, yaml, markdown)")
	check := fs.Bool("check", false, "Report headings a CommonMark parser disagrees on")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: doc-outline extract [options] [file]\n\nReads stdin when file is omitted or '-'.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doExtract(fs.Arg(0), *format, *check, os.Stdin, os.Stdout, os.Stderr))
}

// doExtract prints the outline of a markdown file.
// Returns exit code (0 = success, 1 = error).
func doExtract(path, format string, check bool, stdin io.Reader, stdout, stderr io.Writer) int {
	markdown, err := readInput(path, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	sections := toc.ExtractSections(markdown)

	switch format {
	case "json":
		b, err := json.MarshalIndent(sections, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, string(b))
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(sections); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		_ = enc.Close()
	case "markdown", "md":
		fmt.Fprint(stdout, toc.RenderMarkdownList(sections))
	default:
		fmt.Fprintf(stderr, "Error: unknown format '%s' (supported: json, yaml, markdown)\n", format)
		return 1
	}

	if check {
		for _, m := range process.CrossCheck(markdown) {
			fmt.Fprintf(stderr, "WARN: %s\n", m)
		}
	}
	return 0
}

// runRender handles the render subcommand
func runRender(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	title := fs.String("title", "", "Page title (defaults to the first top-level heading)")
	logLevel := fs.String("loglevel", "warn", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: doc-outline render [options] [file]\n\nReads stdin when file is omitted or '-'.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doRender(fs.Arg(0), *title, *logLevel, os.Stdin, os.Stdout, os.Stderr))
}

// doRender writes a standalone HTML page: navigator followed by the anchored body.
func doRender(path, title, logLevel string, stdin io.Reader, stdout, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)

	markdown, err := readInput(path, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	doc, err := render.NewRenderer(log.WithField("component", "render")).Render(markdown)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	nav, err := render.RenderNavigator(doc.Sections)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if title == "" {
		title = pageTitle(doc.Sections)
	}

	fmt.Fprintf(stdout, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))
	fmt.Fprint(stdout, nav)
	fmt.Fprintf(stdout, "<main>\n%s</main>\n</body>\n</html>\n", doc.HTML)
	return 0
}

// pageTitle picks the first section at the shallowest level present.
func pageTitle(sections []toc.Section) string {
	top := toc.MinLevel(sections)
	for _, sec := range sections {
		if sec.Level == top {
			return sec.Title
		}
	}
	return "Document"
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}
