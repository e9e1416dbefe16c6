package config

import (
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "ENGINUITY_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "ENGINUITY_SERVER_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
	},
	{
		env: "ENGINUITY_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "ENGINUITY_EMBEDDING_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Embedding.BaseURL = v.(string) },
	},
	{
		env: "ENGINUITY_EMBEDDING_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Embedding.Model = v.(string) },
	},
	{
		env: "ENGINUITY_EMBEDDING_DIM", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Embedding.Dim = v.(int) },
	},
	{
		env: "ENGINUITY_GENERATION_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Generation.BaseURL = v.(string) },
	},
	{
		env: "ENGINUITY_GENERATION_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Generation.APIKey = v.(string) },
	},
	{
		env: "ENGINUITY_GENERATION_TIERS", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Generation.TierTable = v.(string) },
	},
	{
		env: "ENGINUITY_CHUNK_SIZE", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Chunking.Size = v.(int) },
	},
	{
		env: "ENGINUITY_CHUNK_OVERLAP", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Chunking.Overlap = v.(int) },
	},
	{
		env: "ENGINUITY_CHUNK_MIN_TOKENS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Chunking.MinTokens = v.(int) },
	},
	{
		env: "ENGINUITY_RETRIEVAL_TOP_K", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
	},
	{
		env: "ENGINUITY_RETRIEVAL_METRIC", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Retrieval.Metric = v.(string) },
	},
	{
		env: "ENGINUITY_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("ignoring non-integer env var, keeping default", "var", s.env, "value", raw, "error", err)
			}
		}
	}
}
