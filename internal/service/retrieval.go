package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/corpusworks/corpusd/internal/domain"
)

// RetrievalConfig carries the query-time knobs, captured once at construction.
type RetrievalConfig struct {
	TopK           int
	DocumentQATopK int
	MinQueryLength int
}

// RetrievalService answers a query with the most relevant stored context.
type RetrievalService struct {
	embedder EmbeddingClient
	index    VectorIndex
	cfg      RetrievalConfig
}

func NewRetrievalService(embedder EmbeddingClient, index VectorIndex, cfg RetrievalConfig) *RetrievalService {
	if cfg.TopK < 1 {
		cfg.TopK = 5
	}
	if cfg.DocumentQATopK < 1 {
		cfg.DocumentQATopK = cfg.TopK
	}
	return &RetrievalService{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
	}
}

// Retrieve embeds the query and returns the k most relevant chunks in the
// store's relevance order. Queries shorter than the configured minimum (after
// trimming) return an empty result without touching the embedder or the
// store. k <= 0 falls back to the configured top_k.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) (domain.RetrievalResult, error) {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < s.cfg.MinQueryLength {
		return domain.RetrievalResult{}, nil
	}
	if k <= 0 {
		k = s.cfg.TopK
	}

	vector, err := s.embedder.Embed(ctx, trimmed)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("retrieve (query %s) failed at stage embed: %w", queryHash(trimmed), err)
	}

	matches, err := s.index.Query(ctx, vector, k)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("retrieve (query %s) failed at stage query: %w", queryHash(trimmed), err)
	}

	chunks := make([]domain.RetrievedChunk, len(matches))
	for i, m := range matches {
		chunks[i] = domain.RetrievedChunk{
			SourceID:   m.SourceID,
			SourceName: m.SourceName,
			ChunkIndex: m.ChunkIndex,
			Text:       m.Text,
			Score:      1 / (1 + m.Distance),
		}
	}
	return domain.RetrievalResult{Chunks: chunks}, nil
}

// RetrieveForDocumentQA retrieves with the wider document-QA top_k.
func (s *RetrievalService) RetrieveForDocumentQA(ctx context.Context, query string) (domain.RetrievalResult, error) {
	return s.Retrieve(ctx, query, s.cfg.DocumentQATopK)
}

// DocumentQATopK returns the configured document-QA k for callers that manage
// their own retrieval loop.
func (s *RetrievalService) DocumentQATopK() int {
	return s.cfg.DocumentQATopK
}

// FormatContext assembles a retrieval result into an LLM-ready context
// string: one "Source: <name>" block per chunk, separated by blank lines.
// An empty result yields an empty string.
func FormatContext(result domain.RetrievalResult) string {
	if result.Empty() {
		return ""
	}
	parts := make([]string, len(result.Chunks))
	for i, c := range result.Chunks {
		parts[i] = fmt.Sprintf("Source: %s\n%s", c.SourceName, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// queryHash identifies a query in errors and logs without exposing its text.
func queryHash(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:8])
}
