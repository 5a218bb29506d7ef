package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const (
	defaultEmbeddingDimension = 1536
	defaultTopK               = 5
	defaultMaxChunkLength     = 800
	defaultIngestWorkers      = 4
	maxIngestWorkers          = 16
	defaultPendingBatch       = 20
	defaultPendingTimeout     = 600
	defaultCleanupTimeout     = 60
	defaultCacheMaxAgeDays    = 30
	defaultUploadMaxBytes     = 10 << 20
)

type Config struct {
	Port             int              `json:"port"`
	LogConfig        logger.LogConfig `json:"log_config"`
	Database         DatabaseConfig   `json:"database"`
	Embedding        ProviderConfig   `json:"embedding"`
	Generation       ProviderConfig   `json:"generation"`
	Retrieval        RetrievalConfig  `json:"retrieval"`
	Chunker          ChunkerConfig    `json:"chunker"`
	Ingest           IngestConfig     `json:"ingest"`
	EmbedCache       EmbedCacheConfig `json:"embed_cache"`
	Jobs             JobsConfig       `json:"jobs"`
	FileStore        FileStoreConfig  `json:"file_store"`
	RateLimitSeconds int              `json:"rate_limit_seconds"`
	CORSAllowlist    []string         `json:"cors_allowlist"`
	UploadMaxBytes   int64            `json:"upload_max_bytes"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// ProviderConfig selects an ai provider by name. Data carries the
// provider specific arguments (api key, base url, ...).
type ProviderConfig struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Dimension int         `json:"dimension"`
	Data      interface{} `json:"data"`
}

type RetrievalConfig struct {
	DefaultTopK int `json:"default_top_k"`
}

type ChunkerConfig struct {
	MaxChunkLength int `json:"max_chunk_length"`
}

type IngestConfig struct {
	Workers  int  `json:"workers"`
	OnCreate bool `json:"on_create"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DBEnabled     bool `json:"db_enabled"`
	MaxAgeDays    int  `json:"max_age_days"`
}

// JobsConfig schedules background work. Timeouts are in seconds; a negative
// value disables the bound.
type JobsConfig struct {
	PendingIngestSpec           string `json:"pending_ingest_spec"`
	PendingIngestBatch          int    `json:"pending_ingest_batch"`
	PendingIngestTimeoutSeconds int    `json:"pending_ingest_timeout_seconds"`
	CacheCleanupSpec            string `json:"cache_cleanup_spec"`
	CacheCleanupTimeoutSeconds  int    `json:"cache_cleanup_timeout_seconds"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	var cfg Config
	if err := decode(path, raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, raw []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var tree interface{}
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return err
		}
		data, err := json.Marshal(tree)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(raw, cfg)
	}
}

func (c *Config) normalize() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Embedding.Provider == "" || c.Embedding.Model == "" {
		return fmt.Errorf("embedding.provider and embedding.model are required")
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = defaultEmbeddingDimension
	}
	if c.Embedding.Dimension != defaultEmbeddingDimension {
		return fmt.Errorf("embedding.dimension must be %d to match the chunk schema", defaultEmbeddingDimension)
	}
	if c.Generation.Provider == "" || c.Generation.Model == "" {
		return fmt.Errorf("generation.provider and generation.model are required")
	}
	if c.Retrieval.DefaultTopK == 0 {
		c.Retrieval.DefaultTopK = defaultTopK
	}
	if c.Retrieval.DefaultTopK < 1 {
		return fmt.Errorf("retrieval.default_top_k must be >= 1")
	}
	if c.Chunker.MaxChunkLength == 0 {
		c.Chunker.MaxChunkLength = defaultMaxChunkLength
	}
	if c.Chunker.MaxChunkLength < 1 {
		c.Chunker.MaxChunkLength = 1
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = defaultIngestWorkers
	}
	if c.Ingest.Workers > maxIngestWorkers {
		c.Ingest.Workers = maxIngestWorkers
	}
	if c.EmbedCache.MaxAgeDays <= 0 {
		c.EmbedCache.MaxAgeDays = defaultCacheMaxAgeDays
	}
	if c.Jobs.PendingIngestBatch <= 0 {
		c.Jobs.PendingIngestBatch = defaultPendingBatch
	}
	if c.Jobs.PendingIngestTimeoutSeconds == 0 {
		c.Jobs.PendingIngestTimeoutSeconds = defaultPendingTimeout
	}
	if c.Jobs.CacheCleanupTimeoutSeconds == 0 {
		c.Jobs.CacheCleanupTimeoutSeconds = defaultCleanupTimeout
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	switch c.FileStore.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	if c.RateLimitSeconds < 0 {
		c.RateLimitSeconds = 0
	}
	if c.UploadMaxBytes <= 0 {
		c.UploadMaxBytes = defaultUploadMaxBytes
	}
	return nil
}
