package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore persists embedding records in postgres with the pgvector
// extension. Per-source replacement runs inside one transaction so queries
// never observe a partially inserted source.
type PgVectorStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewPgVectorStore(ctx context.Context, databaseURL string, dimensions int) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to connect to postgres", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to ping postgres", err)
	}

	return &PgVectorStore{pool: pool, dimensions: dimensions}, nil
}

// NewPgVectorStoreWithPool wraps an existing pool (used by tests).
func NewPgVectorStoreWithPool(pool *pgxpool.Pool, dimensions int) *PgVectorStore {
	return &PgVectorStore{pool: pool, dimensions: dimensions}
}

func (s *PgVectorStore) Upsert(ctx context.Context, sourceID, sourceName string, records []domain.EmbeddingRecord) error {
	for _, r := range records {
		if len(r.Embedding) != s.dimensions {
			return domain.ErrDimensionMismatch
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE source_id = $1`, sourceID); err != nil {
		return storeErr("failed to delete previous chunks", err)
	}

	now := time.Now().UTC()
	for _, r := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO document_chunks
				(source_id, source_name, chunk_index, content, start_offset, end_offset, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8)`,
			sourceID,
			sourceName,
			r.Chunk.Index,
			r.Chunk.Text,
			r.Chunk.Start,
			r.Chunk.End,
			pgvector.NewVector(r.Embedding),
			now,
		)
		if err != nil {
			return storeErr("failed to insert chunk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("failed to commit upsert", err)
	}
	return nil
}

func (s *PgVectorStore) DeleteSource(ctx context.Context, sourceID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM document_chunks WHERE source_id = $1`, sourceID); err != nil {
		return storeErr("failed to delete source", err)
	}
	return nil
}

func (s *PgVectorStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM document_chunks`); err != nil {
		return storeErr("failed to clear store", err)
	}
	return nil
}

func (s *PgVectorStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k < 1 {
		return nil, domain.ErrInvalidTopK
	}
	if len(vector) != s.dimensions {
		return nil, domain.ErrDimensionMismatch
	}

	rows, err := s.pool.Query(ctx,
		`SELECT source_id, source_name, chunk_index, content, embedding <=> $1 AS distance
		 FROM document_chunks
		 ORDER BY distance ASC, seq ASC
		 LIMIT $2`,
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, storeErr("failed to query nearest chunks", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, k)
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.SourceID, &m.SourceName, &m.ChunkIndex, &m.Text, &distance); err != nil {
			return nil, storeErr("failed to scan match", err)
		}
		m.Distance = float32(distance)
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("failed to read matches", err)
	}
	return matches, nil
}

func (s *PgVectorStore) ListSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id, min(source_name), count(*), min(created_at)
		 FROM document_chunks
		 GROUP BY source_id
		 ORDER BY min(created_at), source_id`,
	)
	if err != nil {
		return nil, storeErr("failed to list sources", err)
	}
	defer rows.Close()

	sources := make([]domain.Source, 0)
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.ID, &src.Name, &src.ChunkCount, &src.IngestedAt); err != nil {
			return nil, storeErr("failed to scan source", err)
		}
		sources = append(sources, src)
	}

	return sources, rows.Err()
}

func (s *PgVectorStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks`).Scan(&count); err != nil {
		return 0, storeErr("failed to count chunks", err)
	}
	return count, nil
}

func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}

func storeErr(message string, err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, fmt.Sprintf("pgvector: %s", message), err)
}
