package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for ragchat.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig selects the knowledge store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "bolt", "file", "memory"
	Path    string `yaml:"path"`    // bolt database file, relative to the data dir
	Dir     string `yaml:"dir"`     // directory of JSON records, relative to the data dir
}

// IndexConfig holds indexing configuration.
type IndexConfig struct {
	ChunkTokens int      `yaml:"chunk_tokens"`
	Tokenizer   string   `yaml:"tokenizer"`   // tiktoken encoding name or "words"
	Concurrency int      `yaml:"concurrency"` // parallel embedding calls per document
	Includes    []string `yaml:"includes"`
	Excludes    []string `yaml:"excludes"`
}

// RetrieveConfig holds search configuration.
type RetrieveConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // results must score strictly above this
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider        string  `yaml:"provider"` // "ollama", "hash"
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	RateLimit       float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst           int     `yaml:"burst"`
	Dimension       int     `yaml:"dimension"` // only used by the hash provider
	CacheSize       int     `yaml:"cache_size"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json", "console"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "bolt",
			Path:    "knowledge.db",
			Dir:     "knowledge",
		},
		Index: IndexConfig{
			ChunkTokens: 500,
			Tokenizer:   "cl100k_base",
			Concurrency: 1,
			Includes:    []string{"**/*.txt", "**/*.docx", "**/*.doc"},
			Excludes:    []string{"**/.git/**", "**/node_modules/**", "**/.ragchat/**"},
		},
		Retrieve: RetrieveConfig{
			TopK:                3,
			SimilarityThreshold: 0.3,
		},
		Embedding: EmbeddingConfig{
			Provider:        "ollama",
			Model:           "mistral",
			BaseURL:         "http://localhost:11434",
			TimeoutSeconds:  60,
			Dimension:       256,
			CacheSize:       256,
			CacheTTLSeconds: 300,
		},
		Server: ServerConfig{
			Host:           "localhost",
			Port:           5000,
			MaxUploadBytes: 20 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragchat.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragchat.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(DataDir(dir), "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// ApplyEnv overrides configuration from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("RAGCHAT_EMBEDDING_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("RAGCHAT_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("RAGCHAT_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("RAGCHAT_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("RAGCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RAGCHAT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

var knownTokenizers = map[string]bool{
	"words":       true,
	"cl100k_base": true,
	"p50k_base":   true,
	"p50k_edit":   true,
	"r50k_base":   true,
}

// Validate rejects configurations the rest of the system cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "bolt", "file", "memory":
	default:
		return fmt.Errorf("unsupported store backend: %q", c.Store.Backend)
	}
	switch c.Embedding.Provider {
	case "ollama", "hash":
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.Embedding.Provider)
	}
	if !knownTokenizers[c.Index.Tokenizer] {
		return fmt.Errorf("unsupported tokenizer: %q", c.Index.Tokenizer)
	}
	if c.Index.ChunkTokens <= 0 {
		return fmt.Errorf("index.chunk_tokens must be positive, got %d", c.Index.ChunkTokens)
	}
	if c.Index.Concurrency < 0 {
		return fmt.Errorf("index.concurrency must not be negative, got %d", c.Index.Concurrency)
	}
	if c.Retrieve.TopK < 0 {
		return fmt.Errorf("retrieve.top_k must not be negative, got %d", c.Retrieve.TopK)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EmbeddingTimeout returns the embedding request timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSeconds) * time.Second
}

// CacheTTL returns the query embedding cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Embedding.CacheTTLSeconds) * time.Second
}

// DataDir returns the directory holding the knowledge store under dir.
func DataDir(dir string) string {
	return filepath.Join(dir, ".ragchat")
}

// StorePath returns the bolt database path for the data dir.
func (c *Config) StorePath(dataDir string) string {
	return resolve(dataDir, c.Store.Path)
}

// StoreDir returns the JSON record directory for the data dir.
func (c *Config) StoreDir(dataDir string) string {
	return resolve(dataDir, c.Store.Dir)
}

// EnsureDataDir ensures the data directory exists.
func EnsureDataDir(dataDir string) error {
	return os.MkdirAll(dataDir, 0755)
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
