package config

import (
	"fmt"
	"log"
	"time"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Optional static API key for the HTTP surface; empty disables auth.
	APIKey string `envconfig:"API_KEY"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	// Vector store backend: a postgres URL selects pgvector, otherwise
	// VectorDBPath selects the embedded badger index.
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	VectorDBPath string `envconfig:"VECTOR_DB_PATH" default:"data/index"`

	ChunkSize      int `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap   int `envconfig:"CHUNK_OVERLAP" default:"100"`
	TopK           int `envconfig:"TOP_K" default:"5"`
	DocumentQATopK int `envconfig:"DOCUMENT_QA_TOP_K" default:"8"`
	MinQueryLength int `envconfig:"MIN_QUERY_LENGTH" default:"3"`
	EmbedBatchSize int `envconfig:"EMBED_BATCH_SIZE" default:"16"`

	EmbedTimeout time.Duration `envconfig:"EMBED_TIMEOUT" default:"60s"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"30s"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Interval between badger value-log GC rounds when the embedded
	// backend is active.
	GCInterval time.Duration `envconfig:"GC_INTERVAL" default:"5m"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"corpusd-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CORPUSD", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate enforces the invariants the pipelines assume at construction time.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return domain.NewDomainError(domain.ErrCodeInvalidConfiguration, "chunk size must be positive")
	}
	if c.ChunkOverlap < 0 {
		return domain.NewDomainError(domain.ErrCodeInvalidConfiguration, "chunk overlap cannot be negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return domain.ErrOverlapTooLarge
	}
	if c.TopK < 1 || c.DocumentQATopK < 1 {
		return domain.NewDomainError(domain.ErrCodeInvalidConfiguration, "top_k values must be at least 1")
	}
	if c.MinQueryLength < 0 {
		return domain.NewDomainError(domain.ErrCodeInvalidConfiguration, "min query length cannot be negative")
	}
	if c.EmbedBatchSize < 1 {
		return domain.NewDomainError(domain.ErrCodeInvalidConfiguration, "embed batch size must be at least 1")
	}
	if c.EmbeddingDimensions < 1 {
		return domain.NewDomainError(domain.ErrCodeInvalidConfiguration, "embedding dimensions must be at least 1")
	}
	if c.DatabaseURL == "" && c.VectorDBPath == "" {
		return domain.ErrNoVectorBackend
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// UsesPostgres reports whether the pgvector backend is selected.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}
