package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration structure
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Claude      ClaudeConfig      `toml:"claude"`
	LLM         LLMConfig         `toml:"llm"`
	Quotas      QuotaConfig       `toml:"quotas"`
	Ingest      IngestConfig      `toml:"ingest"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Chat        ChatConfig        `toml:"chat"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// GeminiConfig contains Google Gemini API configuration.
// Gemini always serves embeddings; it also serves chat when llm.provider = "gemini".
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`           // Chat model (default: "gemini-2.5-flash")
	EmbeddingModel string  `toml:"embedding_model"` // Embedding model (default: "gemini-embedding-001")
	Temperature    float32 `toml:"temperature"`
	Timeout        string  `toml:"timeout"` // e.g. "30s"
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"` // default: "claude-sonnet-4-20250514"
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"` // e.g. "30s"
}

// LLMConfig selects the chat provider and the shared retry policy
type LLMConfig struct {
	Provider   string `toml:"provider" validate:"oneof=gemini claude"` // chat provider
	MaxRetries int    `toml:"max_retries" validate:"gte=0"`            // automatic retries for provider calls (0 = none)
	EmbedRPS   int    `toml:"embed_rps" validate:"gte=0"`              // embedding requests per second (0 = unlimited)
}

// QuotaConfig holds the hard ceilings enforced by the core
type QuotaConfig struct {
	MaxDocumentsPerOwner  int `toml:"max_documents_per_owner" validate:"gt=0"`
	MaxChatMessagesPerDoc int `toml:"max_chat_messages_per_doc" validate:"gt=0"`
}

// IngestConfig controls chunking and admission
type IngestConfig struct {
	ChunkSize        int `toml:"chunk_size" validate:"gt=0"`
	ChunkOverlap     int `toml:"chunk_overlap" validate:"gte=0"`
	MinContentLength int `toml:"min_content_length" validate:"gte=0"`
}

type RetrievalConfig struct {
	TopK int `toml:"top_k" validate:"gt=0"`
}

type ChatConfig struct {
	HistoryWindow   int `toml:"history_window" validate:"gt=0"`
	SummaryMaxChars int `toml:"summary_max_chars" validate:"gt=0"`
}

// MaintenanceConfig controls the stale-processing reaper
type MaintenanceConfig struct {
	Enabled        bool   `toml:"enabled"`
	Schedule       string `toml:"schedule"`        // cron format, e.g. "*/5 * * * *"
	StaleThreshold string `toml:"stale_threshold"` // e.g. "15m" - processing docs older than this are failed
}

// NewDefaultConfig returns the baseline configuration before file/env overrides
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/lectio",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "gemini-embedding-001",
			Temperature:    0.3,
			Timeout:        "30s",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.3,
			MaxTokens:   4096,
			Timeout:     "30s",
		},
		LLM: LLMConfig{
			Provider:   "gemini",
			MaxRetries: 0,
			EmbedRPS:   5,
		},
		Quotas: QuotaConfig{
			MaxDocumentsPerOwner:  3,
			MaxChatMessagesPerDoc: 30,
		},
		Ingest: IngestConfig{
			ChunkSize:        1000,
			ChunkOverlap:     200,
			MinContentLength: 50,
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		Chat: ChatConfig{
			HistoryWindow:   10,
			SummaryMaxChars: 15000,
		},
		Maintenance: MaintenanceConfig{
			Enabled:        true,
			Schedule:       "*/5 * * * *",
			StaleThreshold: "15m",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks structural constraints plus the cross-field rules the
// validator tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("invalid configuration: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}

	if _, err := time.ParseDuration(c.Gemini.Timeout); err != nil {
		return fmt.Errorf("invalid gemini.timeout %q: %w", c.Gemini.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Claude.Timeout); err != nil {
		return fmt.Errorf("invalid claude.timeout %q: %w", c.Claude.Timeout, err)
	}
	if c.Maintenance.StaleThreshold != "" {
		if _, err := time.ParseDuration(c.Maintenance.StaleThreshold); err != nil {
			return fmt.Errorf("invalid maintenance.stale_threshold %q: %w", c.Maintenance.StaleThreshold, err)
		}
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LECTIO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("LECTIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("LECTIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("LECTIO_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if level := os.Getenv("LECTIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("LECTIO_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("LECTIO_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}

	if provider := os.Getenv("LECTIO_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
}
