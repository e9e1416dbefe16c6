// Package config loads runtime configuration from defaults, an optional
// .env file and ENGINUITY_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/pantheonai/enginuity/internal/retrieval"
	"github.com/pantheonai/enginuity/internal/tiers"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Embedding  EmbeddingConfig
	Generation GenerationConfig
	Chunking   ChunkingConfig
	Retrieval  RetrievalConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type EmbeddingConfig struct {
	BaseURL string
	Model   string
	Dim     int
}

type GenerationConfig struct {
	BaseURL   string
	APIKey    string
	TierTable string
}

type ChunkingConfig struct {
	Size    int
	Overlap int
	// MinTokens drops segments too short to carry meaning. A policy
	// filter, not an error: filtered segments are skipped silently.
	MinTokens int
}

type RetrievalConfig struct {
	TopK   int
	Metric string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Embedding: EmbeddingConfig{
			BaseURL: "http://localhost:11434",
			Model:   "nomic-embed-text",
			Dim:     768,
		},
		Generation: GenerationConfig{
			BaseURL:   "https://api.openai.com/v1",
			TierTable: "800:gpt-35-turbo,1800:gpt-4o-mini,gpt-4o",
		},
		Chunking: ChunkingConfig{
			Size:      700,
			Overlap:   100,
			MinTokens: 5,
		},
		Retrieval: RetrievalConfig{
			TopK:   5,
			Metric: string(retrieval.MetricCosine),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".enginuity"
	}
	return filepath.Join(home, ".enginuity")
}

// Load builds the configuration. A .env file in the working directory is
// read if present; real environment variables win over it. Validation
// failures here are fatal at startup, never deferred to first use.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Generation.APIKey == "" {
		return fmt.Errorf("missing required config: generation API key. Set ENGINUITY_GENERATION_API_KEY")
	}
	if cfg.Embedding.Dim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", cfg.Embedding.Dim)
	}
	if cfg.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap < 0 || cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return fmt.Errorf("chunk overlap %d must be in [0, size)", cfg.Chunking.Overlap)
	}
	if cfg.Chunking.MinTokens < 0 {
		return fmt.Errorf("chunk min tokens must be non-negative, got %d", cfg.Chunking.MinTokens)
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", cfg.Retrieval.TopK)
	}
	if _, err := retrieval.ParseMetric(cfg.Retrieval.Metric); err != nil {
		return fmt.Errorf("retrieval metric: %w", err)
	}
	if _, err := tiers.Parse(cfg.Generation.TierTable); err != nil {
		return fmt.Errorf("tier table: %w", err)
	}
	return nil
}

// Metric returns the validated distance metric.
func (c Config) Metric() retrieval.Metric {
	m, _ := retrieval.ParseMetric(c.Retrieval.Metric)
	return m
}

// Tiers returns the validated model-tier table.
func (c Config) Tiers() *tiers.Table {
	t, _ := tiers.Parse(c.Generation.TierTable)
	return t
}
