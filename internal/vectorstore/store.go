// Package vectorstore persists embedding records and answers nearest-neighbor
// queries. Two backends implement the same contract: a pgvector-backed
// postgres store (server mode) and an embedded badger store (file mode).
// Both order query results by cosine distance, ties broken by insertion order.
package vectorstore

import (
	"context"

	"github.com/corpusworks/corpusd/internal/domain"
)

// Match is one nearest-neighbor query hit. Distance is cosine distance
// (0 = identical direction); results are returned in increasing distance.
type Match struct {
	SourceID   string
	SourceName string
	ChunkIndex int
	Text       string
	Distance   float32
}

// VectorStore is the narrow capability interface the pipelines depend on.
type VectorStore interface {
	// Upsert replaces all records for sourceID with the given ones, atomically
	// with respect to concurrent queries: readers observe either the previous
	// complete set or the new complete set, never a partial insert.
	Upsert(ctx context.Context, sourceID, sourceName string, records []domain.EmbeddingRecord) error

	// DeleteSource removes every record for sourceID. Unknown ids are a no-op.
	DeleteSource(ctx context.Context, sourceID string) error

	// Clear removes all records for all sources.
	Clear(ctx context.Context) error

	// Query returns the k records nearest to vector, ordered by increasing
	// distance. k must be >= 1; fewer than k stored records returns all of
	// them without error.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// ListSources returns the derived per-source metadata (id, name, chunk
	// count, ingestion time) for the documents listing.
	ListSources(ctx context.Context) ([]domain.Source, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// DatabaseURL selects the pgvector backend when set.
	DatabaseURL string
	// Path selects the embedded badger backend when DatabaseURL is empty.
	Path string
	// Dimensions is the fixed vector width the store accepts.
	Dimensions int
}

// Open creates the configured backend.
func Open(ctx context.Context, opts Options) (VectorStore, error) {
	if opts.Dimensions < 1 {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidConfiguration, "vector dimensions must be at least 1")
	}
	if opts.DatabaseURL != "" {
		return NewPgVectorStore(ctx, opts.DatabaseURL, opts.Dimensions)
	}
	if opts.Path != "" {
		return NewBadgerStore(opts.Path, opts.Dimensions)
	}
	return nil, domain.ErrNoVectorBackend
}
