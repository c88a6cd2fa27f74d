package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/vectorstore"
)

// EmbeddingClient defines the interface for generating embeddings.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex defines the store operations the pipelines depend on.
type VectorIndex interface {
	Upsert(ctx context.Context, sourceID, sourceName string, records []domain.EmbeddingRecord) error
	DeleteSource(ctx context.Context, sourceID string) error
	Clear(ctx context.Context) error
	Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error)
	ListSources(ctx context.Context) ([]domain.Source, error)
	Count(ctx context.Context) (int, error)
}

const defaultEmbedBatchSize = 16

// IngestService turns document text into persisted embedding records and
// manages source removal. It holds no state between calls beyond its handles
// to the embedder and the vector index.
type IngestService struct {
	chunker   *Chunker
	embedder  EmbeddingClient
	index     VectorIndex
	batchSize int

	// Per-source mutual exclusion: concurrent ingests of the same source id
	// serialize so the replace-by-source invariant holds; different sources
	// proceed independently.
	locks sync.Map
}

func NewIngestService(chunker *Chunker, embedder EmbeddingClient, index VectorIndex, batchSize int) *IngestService {
	if batchSize < 1 {
		batchSize = defaultEmbedBatchSize
	}
	return &IngestService{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
	}
}

// Ingest chunks rawText, embeds the chunks in order, and atomically replaces
// any previous records for sourceID. On failure the store keeps the source's
// previous complete chunk set; the first underlying error is wrapped as
// INGEST_FAILED with the source id and failing stage.
func (s *IngestService) Ingest(ctx context.Context, sourceID, sourceName, rawText string) (*domain.Source, error) {
	if sourceID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "source id is required")
	}
	if sourceName == "" {
		sourceName = sourceID
	}

	lock := s.lockFor(sourceID)
	lock.Lock()
	defer lock.Unlock()

	chunks := s.chunker.ChunkAll(sourceID, rawText)
	if len(chunks) == 0 {
		log.Printf("ingest: source %q has no text, leaving index untouched", sourceID)
		return &domain.Source{ID: sourceID, Name: sourceName}, nil
	}

	records := make([]domain.EmbeddingRecord, len(chunks))
	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, domain.IngestError(sourceID, "embed", err)
		}

		for i := range vectors {
			records[start+i] = domain.EmbeddingRecord{
				Chunk:     chunks[start+i],
				Embedding: vectors[i],
			}
		}
	}

	if err := s.index.Upsert(ctx, sourceID, sourceName, records); err != nil {
		return nil, domain.IngestError(sourceID, "store", err)
	}

	log.Printf("ingest: indexed source %q (%d chunks)", sourceID, len(chunks))
	return &domain.Source{
		ID:         sourceID,
		Name:       sourceName,
		ChunkCount: len(chunks),
		IngestedAt: time.Now().UTC(),
	}, nil
}

// Remove deletes all records for sourceID. Unknown sources are a no-op.
func (s *IngestService) Remove(ctx context.Context, sourceID string) error {
	if sourceID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "source id is required")
	}
	return s.index.DeleteSource(ctx, sourceID)
}

// ClearAll removes every record for every source.
func (s *IngestService) ClearAll(ctx context.Context) error {
	return s.index.Clear(ctx)
}

// Sources returns the per-source metadata for the documents listing.
func (s *IngestService) Sources(ctx context.Context) ([]domain.Source, error) {
	return s.index.ListSources(ctx)
}

// HasDocuments reports whether the index holds at least one chunk.
func (s *IngestService) HasDocuments(ctx context.Context) (bool, error) {
	count, err := s.index.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *IngestService) lockFor(sourceID string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(sourceID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
