package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Document and index locations
	DocsDir  string
	IndexDir string

	// OpenAI answering service
	OpenAIAPIKey string
	ModelName    string

	// Tree shape
	ChunkSizeWords     int
	MaxChildrenPerNode int
	MaxDepth           int

	// Caches
	NodeCacheSize  int
	QueryCacheSize int

	// Retrieval
	TopKPerLevel int
	ContextTopK  int

	// Events
	EventBufferSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8000"),

		DocsDir:  envOr("DOCS_DIR", "docs"),
		IndexDir: envOr("INDEX_DIR", "saved_index"),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		ModelName:    envOr("MODEL_NAME", "gpt-4o-mini"),

		ChunkSizeWords:     envInt("CHUNK_SIZE_WORDS", 500),
		MaxChildrenPerNode: envInt("MAX_CHILDREN_PER_NODE", 10),
		MaxDepth:           envInt("MAX_DEPTH", 6),

		NodeCacheSize:  envInt("NODE_CACHE_SIZE", 5000),
		QueryCacheSize: envInt("QUERY_CACHE_SIZE", 128),

		TopKPerLevel: envInt("TOP_K_PER_LEVEL", 2),
		ContextTopK:  envInt("CONTEXT_TOP_K", 6),

		EventBufferSize: envInt("EVENT_BUFFER_SIZE", 2000),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.ChunkSizeWords <= 0 {
		cfg.ChunkSizeWords = 500
	}
	if cfg.MaxChildrenPerNode <= 0 {
		cfg.MaxChildrenPerNode = 10
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 6
	}
	if cfg.NodeCacheSize <= 0 {
		cfg.NodeCacheSize = 5000
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = 128
	}
	if cfg.TopKPerLevel <= 0 {
		cfg.TopKPerLevel = 2
	}
	if cfg.ContextTopK <= 0 {
		cfg.ContextTopK = 6
	}
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = 2000
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	key := c.OpenAIAPIKey
	if key == "" || key == "your_openai_api_key_here" || key == "changeme" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
