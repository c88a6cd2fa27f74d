package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/corpusworks/corpusd/internal/config"
	"github.com/corpusworks/corpusd/internal/openai"
	"github.com/corpusworks/corpusd/internal/service"
	"github.com/corpusworks/corpusd/internal/vectorstore"
)

// pipeline bundles the ingest and retrieval services over a shared store and
// embedder. Every command builds one from the environment.
type pipeline struct {
	cfg       *config.Config
	store     vectorstore.VectorStore
	ingest    *service.IngestService
	retrieval *service.RetrievalService
}

func buildPipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("CORPUSD_OPENAI_API_KEY is required")
	}

	if cfg.UsesPostgres() {
		if err := vectorstore.RunMigrations(cfg.DatabaseURL, ""); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	store, err := vectorstore.Open(ctx, vectorstore.Options{
		DatabaseURL: cfg.DatabaseURL,
		Path:        cfg.VectorDBPath,
		Dimensions:  cfg.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	embedder := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})

	chunker, err := service.NewChunker(service.ChunkConfig{
		Size:    cfg.ChunkSize,
		Overlap: cfg.ChunkOverlap,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &pipeline{
		cfg:    cfg,
		store:  store,
		ingest: service.NewIngestService(chunker, embedder, store, cfg.EmbedBatchSize),
		retrieval: service.NewRetrievalService(embedder, store, service.RetrievalConfig{
			TopK:           cfg.TopK,
			DocumentQATopK: cfg.DocumentQATopK,
			MinQueryLength: cfg.MinQueryLength,
		}),
	}, nil
}

func (p *pipeline) Close() {
	if err := p.store.Close(); err != nil {
		log.Printf("failed to close vector store: %v", err)
	}
}
