// Package config provides YAML-based configuration for docuchat.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DOCUCHAT_CONFIG environment variable
//  3. ~/.docuchat/config.yaml
//  4. ./docuchat.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Crawler configures website ingestion.
	Crawler CrawlerConfig `yaml:"crawler"`

	// Chunker configures text splitting.
	Chunker ChunkerConfig `yaml:"chunker"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Journal configures the ingestion journal.
	Journal JournalConfig `yaml:"journal"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, ark, gemini.
	Provider string `yaml:"provider"`

	// Name is the model name or deployment ID.
	Name string `yaml:"name"`

	// BaseURL overrides the provider's API endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKey is the provider credential. Prefer the provider's env var.
	APIKey string `yaml:"api_key"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`

	// Azure holds Azure OpenAI-specific settings.
	Azure AzureConfig `yaml:"azure"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var DOCUCHAT_API_KEY.
	APIKey string `yaml:"api_key"`
	// RateLimit is the per-IP sustained request rate (requests/second).
	RateLimit int `yaml:"rate_limit"`
	// RateBurst is the per-IP instantaneous burst size.
	RateBurst int `yaml:"rate_burst"`
}

// CrawlerConfig holds website ingestion settings.
type CrawlerConfig struct {
	// MaxDepth is the crawl recursion depth (1 = root page only).
	MaxDepth int `yaml:"max_depth"`
	// FetchTimeoutSeconds bounds each page fetch.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`
	// WrapWidth is the word-wrap column applied to converted page text.
	WrapWidth int `yaml:"wrap_width"`
	// UserAgent is the HTTP User-Agent sent while crawling.
	UserAgent string `yaml:"user_agent"`
}

// ChunkerConfig holds text splitting settings.
type ChunkerConfig struct {
	// TextSize is the chunk size for direct text submissions.
	TextSize int `yaml:"text_size"`
	// TextOverlap is the overlap for direct text submissions.
	TextOverlap int `yaml:"text_overlap"`
	// WebSize is the chunk size for crawled page text.
	WebSize int `yaml:"web_size"`
	// WebOverlap is the overlap for crawled page text.
	WebOverlap int `yaml:"web_overlap"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// JournalConfig holds ingestion journal settings.
type JournalConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_NAME", func(c *Config) string { return c.Model.Name }},
	{"MODEL_BASE_URL", func(c *Config) string { return c.Model.BaseURL }},
	{"MODEL_API_KEY", func(c *Config) string { return c.Model.APIKey }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"DOCUCHAT_HOST", func(c *Config) string { return c.Server.Host }},
	{"DOCUCHAT_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"DOCUCHAT_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"DOCUCHAT_RATE_LIMIT", func(c *Config) string { return intStr(c.Server.RateLimit) }},
	{"DOCUCHAT_RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"CRAWLER_MAX_DEPTH", func(c *Config) string { return intStr(c.Crawler.MaxDepth) }},
	{"CRAWLER_FETCH_TIMEOUT", func(c *Config) string { return intStr(c.Crawler.FetchTimeoutSeconds) }},
	{"CRAWLER_WRAP_WIDTH", func(c *Config) string { return intStr(c.Crawler.WrapWidth) }},
	{"CRAWLER_USER_AGENT", func(c *Config) string { return c.Crawler.UserAgent }},
	{"CHUNK_TEXT_SIZE", func(c *Config) string { return intStr(c.Chunker.TextSize) }},
	{"CHUNK_TEXT_OVERLAP", func(c *Config) string { return intStr(c.Chunker.TextOverlap) }},
	{"CHUNK_WEB_SIZE", func(c *Config) string { return intStr(c.Chunker.WebSize) }},
	{"CHUNK_WEB_OVERLAP", func(c *Config) string { return intStr(c.Chunker.WebOverlap) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"DOCUCHAT_JOURNAL_DB", func(c *Config) string { return c.Journal.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("DOCUCHAT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".docuchat", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("docuchat.yaml"); err == nil {
		return "docuchat.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
