package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the CodeSmriti engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Walker     WalkerConfig     `yaml:"walker"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Storage    StorageConfig    `yaml:"storage"`
	Search     SearchConfig     `yaml:"search"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// WalkerConfig controls file enumeration, the skip policy and chunking.
type WalkerConfig struct {
	ParserParallelism  int      `yaml:"parser_parallelism"`
	ChunkChannelSize   int      `yaml:"chunk_channel_size"`
	MaxFileBytes       int64    `yaml:"max_file_bytes"`
	MinFileBytes       int      `yaml:"min_file_bytes"`
	FileTokenThreshold int      `yaml:"file_token_threshold"`
	MetadataLines      int      `yaml:"metadata_lines"`
	MetadataMaxBytes   int      `yaml:"metadata_max_bytes"`
	MinSymbolLines     int      `yaml:"min_symbol_lines"`
	JunkPatterns       []string `yaml:"junk_patterns"`
}

// SummarizerConfig controls the LLM client and the aggregation budgets.
type SummarizerConfig struct {
	Endpoint           string  `yaml:"endpoint"`
	Model              string  `yaml:"model"`
	MaxTokens          int     `yaml:"max_tokens"`
	Temperature        float64 `yaml:"temperature"`
	InputBudgetTokens  int     `yaml:"input_budget_tokens"`
	MaxRetries         int     `yaml:"max_retries"`
	BackoffBaseMs      int     `yaml:"backoff_base_ms"`
	BackoffCapMs       int     `yaml:"backoff_cap_ms"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs"`
}

// EmbeddingsConfig controls the embedding backend and the vector contract.
type EmbeddingsConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	Dims         int    `yaml:"dims"`
	BatchSize    int    `yaml:"batch_size"`
	MaxItemBytes int    `yaml:"max_item_bytes"`
	ChannelSize  int    `yaml:"channel_size"`
}

// StorageConfig points at the document store.
type StorageConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	UseTLS         bool   `yaml:"use_tls"`
	Collection     string `yaml:"collection"`
	BatchSize      int    `yaml:"batch_size"`
	ScrollLimit    int    `yaml:"scroll_limit"`
	ChannelSize    int    `yaml:"channel_size"`
	WriterPoolSize int    `yaml:"writer_pool_size"`
}

// SearchConfig controls the retrieval engine.
type SearchConfig struct {
	Oversample        int `yaml:"oversample"`
	PreviewChars      int `yaml:"preview_chars"`
	MinSummaryBytes   int `yaml:"min_summary_bytes"`
	QueryCacheSize    int `yaml:"query_cache_size"`
	FileFetchMaxBytes int `yaml:"file_fetch_max_bytes"`
}

// JobsConfig controls the orchestrator.
type JobsConfig struct {
	WorkersPerJob int    `yaml:"workers_per_job"`
	MaxTenantJobs int    `yaml:"max_tenant_jobs"`
	ReposRoot     string `yaml:"repos_root"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Directory string `yaml:"directory"`
}

// Load loads configuration from file or returns defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	cfg.Jobs.ReposRoot = expandPath(cfg.Jobs.ReposRoot)
	cfg.Logging.Directory = expandPath(cfg.Logging.Directory)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "codesmriti",
			Version: "0.1.0",
		},
		Walker: WalkerConfig{
			ParserParallelism:  10,
			ChunkChannelSize:   256,
			MaxFileBytes:       1 << 20, // 1 MiB
			MinFileBytes:       100,
			FileTokenThreshold: 6000,
			MetadataLines:      200,
			MetadataMaxBytes:   4096,
			MinSymbolLines:     5,
			JunkPatterns:       nil, // built-in patterns apply in addition
		},
		Summarizer: SummarizerConfig{
			Endpoint:           "http://localhost:8080/v1/chat/completions",
			Model:              "qwen2.5-coder:7b",
			MaxTokens:          512,
			Temperature:        0.1,
			InputBudgetTokens:  3000,
			MaxRetries:         3,
			BackoffBaseMs:      1000,
			BackoffCapMs:       30000,
			RequestTimeoutSecs: 120,
		},
		Embeddings: EmbeddingsConfig{
			Endpoint:     "http://localhost:11434",
			Model:        "nomic-embed-text",
			Dims:         768,
			BatchSize:    128,
			MaxItemBytes: 6144,
			ChannelSize:  256,
		},
		Storage: StorageConfig{
			Host:           "localhost",
			Port:           6334,
			UseTLS:         false,
			Collection:     "codesmriti_documents",
			BatchSize:      100,
			ScrollLimit:    65536,
			ChannelSize:    100,
			WriterPoolSize: 4,
		},
		Search: SearchConfig{
			Oversample:        2,
			PreviewChars:      200,
			MinSummaryBytes:   50,
			QueryCacheSize:    2048,
			FileFetchMaxBytes: 262144,
		},
		Jobs: JobsConfig{
			WorkersPerJob: 4,
			MaxTenantJobs: 8,
			ReposRoot:     "~/.codesmriti/repos",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Directory: "",
		},
	}
}

// Validate rejects configurations that would violate pipeline invariants.
func (c *Config) Validate() error {
	if c.Embeddings.Dims <= 0 {
		return fmt.Errorf("embeddings.dims must be positive, got %d", c.Embeddings.Dims)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Walker.ParserParallelism <= 0 {
		return fmt.Errorf("walker.parser_parallelism must be positive, got %d", c.Walker.ParserParallelism)
	}
	if c.Walker.MinSymbolLines < 1 {
		return fmt.Errorf("walker.min_symbol_lines must be at least 1, got %d", c.Walker.MinSymbolLines)
	}
	if c.Storage.BatchSize <= 0 {
		return fmt.Errorf("storage.batch_size must be positive, got %d", c.Storage.BatchSize)
	}
	if c.Search.Oversample < 1 {
		return fmt.Errorf("search.oversample must be at least 1, got %d", c.Search.Oversample)
	}
	return nil
}

func getConfigPath() string {
	if path := os.Getenv("CODESMRITI_CONFIG"); path != "" {
		return path
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	home, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(home, ".codesmriti", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv("CODESMRITI_LLM_ENDPOINT"); url != "" {
		cfg.Summarizer.Endpoint = url
	}
	if model := os.Getenv("CODESMRITI_LLM_MODEL"); model != "" {
		cfg.Summarizer.Model = model
	}
	if url := os.Getenv("CODESMRITI_EMBED_ENDPOINT"); url != "" {
		cfg.Embeddings.Endpoint = url
	}
	if model := os.Getenv("CODESMRITI_EMBED_MODEL"); model != "" {
		cfg.Embeddings.Model = model
	}
	if host := os.Getenv("CODESMRITI_STORAGE_HOST"); host != "" {
		cfg.Storage.Host = host
	}
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
