package config

import "time"

// Document formats a source can be served in
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// SourceConfig holds configuration for a single upstream document
type SourceConfig struct {
	URL              string            `yaml:"url"`
	Title            string            `yaml:"title,omitempty"`            // Display title; falls back to <title> for HTML sources
	Format           string            `yaml:"format,omitempty"`           // "markdown" (default) or "html"
	ContentSelector  string            `yaml:"content_selector,omitempty"` // CSS selector for HTML sources
	Headers          map[string]string `yaml:"headers,omitempty"`          // Extra request headers (e.g. Accept)
	UserAgent        string            `yaml:"user_agent,omitempty"`
	DelayPerHost     time.Duration     `yaml:"delay_per_host,omitempty"`
	RespectRobots    *bool             `yaml:"respect_robots,omitempty"`
	MaxDocumentBytes *int64            `yaml:"max_document_bytes,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DefaultUserAgent     string                  `yaml:"default_user_agent"`
	DefaultDelayPerHost  time.Duration           `yaml:"default_delay_per_host"`
	MaxConcurrentFetches int                     `yaml:"max_concurrent_fetches"`
	MaxFetchesPerHost    int                     `yaml:"max_fetches_per_host,omitempty"`
	StateDir             string                  `yaml:"state_dir"`
	OutputDir            string                  `yaml:"output_dir,omitempty"` // Where `refresh -write` puts navigator files
	MaxRetries           int                     `yaml:"max_retries,omitempty"`
	InitialRetryDelay    time.Duration           `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay        time.Duration           `yaml:"max_retry_delay,omitempty"`
	RespectRobots        bool                    `yaml:"respect_robots,omitempty"`
	MaxDocumentBytes     int64                   `yaml:"max_document_bytes,omitempty"`
	DBGCInterval         time.Duration           `yaml:"db_gc_interval,omitempty"`
	TokenizerEncoding    string                  `yaml:"tokenizer_encoding,omitempty"`
	Chunking             ChunkingConfig          `yaml:"chunking,omitempty"`
	HTTPClientSettings   HTTPClientConfig        `yaml:"http_client_settings,omitempty"`
	API                  APIConfig               `yaml:"api,omitempty"`
	Sources              map[string]SourceConfig `yaml:"sources"`
}

// ChunkingConfig controls section-aware chunking for chat-with-document
type ChunkingConfig struct {
	MaxChunkSize int `yaml:"max_chunk_size,omitempty"` // Tokens
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"`  // Tokens
}

// APIConfig holds settings for the HTTP JSON API
type APIConfig struct {
	ListenAddr   string `yaml:"listen_addr,omitempty"`
	APIKey       string `yaml:"api_key,omitempty"` // Empty disables bearer auth
	MaxBodyBytes int64  `yaml:"max_body_bytes,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// GetEffectiveUserAgent determines the User-Agent for a source
func GetEffectiveUserAgent(srcCfg SourceConfig, appCfg AppConfig) string {
	if srcCfg.UserAgent != "" {
		return srcCfg.UserAgent
	}
	if appCfg.DefaultUserAgent != "" {
		return appCfg.DefaultUserAgent
	}
	return "doc-outline/1.0"
}

// GetEffectiveDelayPerHost determines the politeness delay for a source
func GetEffectiveDelayPerHost(srcCfg SourceConfig, appCfg AppConfig) time.Duration {
	if srcCfg.DelayPerHost > 0 {
		return srcCfg.DelayPerHost
	}
	return appCfg.DefaultDelayPerHost
}

// GetEffectiveRespectRobots determines whether robots.txt is consulted for a source
func GetEffectiveRespectRobots(srcCfg SourceConfig, appCfg AppConfig) bool {
	if srcCfg.RespectRobots != nil {
		return *srcCfg.RespectRobots
	}
	return appCfg.RespectRobots
}

// GetEffectiveMaxDocumentBytes determines the response size cap for a source.
// Zero means unlimited.
func GetEffectiveMaxDocumentBytes(srcCfg SourceConfig, appCfg AppConfig) int64 {
	if srcCfg.MaxDocumentBytes != nil {
		return *srcCfg.MaxDocumentBytes
	}
	return appCfg.MaxDocumentBytes
}

// GetEffectiveContentSelector returns the CSS selector used for HTML sources
func GetEffectiveContentSelector(srcCfg SourceConfig) string {
	if srcCfg.ContentSelector != "" {
		return srcCfg.ContentSelector
	}
	return "body"
}
