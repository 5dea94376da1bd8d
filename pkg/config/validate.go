package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// MaxConcurrentFetches
	if c.MaxConcurrentFetches <= 0 {
		warnings = append(warnings, "max_concurrent_fetches should be > 0, defaulting to 4")
		c.MaxConcurrentFetches = 4
	}

	if c.MaxFetchesPerHost <= 0 {
		c.MaxFetchesPerHost = 2
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './outline_state'")
		c.StateDir = "./outline_state"
	}

	// OutputDir
	if c.OutputDir == "" {
		c.OutputDir = "./outlines"
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// MaxDocumentBytes
	if c.MaxDocumentBytes < 0 {
		warnings = append(warnings, "max_document_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxDocumentBytes = 0
	}
	if c.MaxDocumentBytes == 0 {
		c.MaxDocumentBytes = 50 * 1024 * 1024 // 50 MB
	}

	if c.DBGCInterval <= 0 {
		c.DBGCInterval = 10 * time.Minute
	}

	if c.TokenizerEncoding == "" {
		c.TokenizerEncoding = "cl100k_base"
	}

	// Chunking
	if c.Chunking.MaxChunkSize <= 0 {
		c.Chunking.MaxChunkSize = 512
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.MaxChunkSize {
		warnings = append(warnings, fmt.Sprintf(
			"chunking.chunk_overlap (%d) must be in [0, max_chunk_size), defaulting to 50",
			c.Chunking.ChunkOverlap))
		c.Chunking.ChunkOverlap = 50
		if c.Chunking.ChunkOverlap >= c.Chunking.MaxChunkSize {
			c.Chunking.ChunkOverlap = 0
		}
	}

	c.validateAPISettings()
	c.validateHTTPClientSettings()

	return warnings, nil // AppConfig validation never fails fatally
}

// validateAPISettings applies defaults to the HTTP API settings.
func (c *AppConfig) validateAPISettings() {
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8090"
	}
	if c.API.MaxBodyBytes <= 0 {
		c.API.MaxBodyBytes = 10 * 1024 * 1024 // 10 MB
	}
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SourceConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place (format normalization).
func (c *SourceConfig) Validate() (warnings []string, err error) {
	// Required: URL
	if c.URL == "" {
		return nil, fmt.Errorf("%w: source has no url", utils.ErrConfigValidation)
	}
	parsed, parseErr := url.Parse(c.URL)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: invalid url '%s': %v", utils.ErrConfigValidation, c.URL, parseErr)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: url '%s' must be http or https", utils.ErrConfigValidation, c.URL)
	}

	// Format normalization
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	switch c.Format {
	case "", "md":
		c.Format = FormatMarkdown
	case FormatMarkdown, FormatHTML:
	default:
		return nil, fmt.Errorf("%w: unknown format '%s' (supported: markdown, html)", utils.ErrConfigValidation, c.Format)
	}

	if c.Format == FormatMarkdown && c.ContentSelector != "" {
		warnings = append(warnings, "content_selector is ignored for markdown sources")
	}

	// MaxDocumentBytes (pointer)
	if c.MaxDocumentBytes != nil && *c.MaxDocumentBytes < 0 {
		warnings = append(warnings, "Source max_document_bytes cannot be negative, setting to 0 (unlimited override)")
		zero := int64(0)
		c.MaxDocumentBytes = &zero
	}

	return warnings, nil
}
