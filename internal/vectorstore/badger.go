package vectorstore

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/timshannon/badgerhold/v4"
)

// storedChunk is the persisted form of one embedding record. Seq is a global
// insertion counter used as the query tie-break.
type storedChunk struct {
	Key        string `badgerhold:"key"`
	Seq        uint64
	SourceID   string `badgerholdIndex:"SourceID"`
	SourceName string
	ChunkIndex int
	Text       string
	Start      int
	End        int
	Embedding  []float32
	CreatedAt  time.Time
}

// BadgerStore is the embedded file-backed vector index. Nearest-neighbor
// queries are a brute-force cosine scan, which is adequate for a personal
// knowledge base of a few thousand chunks.
type BadgerStore struct {
	store      *badgerhold.Store
	dimensions int
	seq        atomic.Uint64
}

func NewBadgerStore(path string, dimensions int) (*BadgerStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to create index directory", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to open badger index", err)
	}

	s := &BadgerStore{store: store, dimensions: dimensions}

	// Resume the insertion counter from the highest persisted Seq.
	var max uint64
	err = store.ForEach(nil, func(c *storedChunk) error {
		if c.Seq > max {
			max = c.Seq
		}
		return nil
	})
	if err != nil {
		store.Close()
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to scan badger index", err)
	}
	s.seq.Store(max)

	return s, nil
}

func (s *BadgerStore) Upsert(ctx context.Context, sourceID, sourceName string, records []domain.EmbeddingRecord) error {
	for _, r := range records {
		if len(r.Embedding) != s.dimensions {
			return domain.ErrDimensionMismatch
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	err := s.store.Badger().Update(func(txn *badger.Txn) error {
		err := s.store.TxDeleteMatching(txn, &storedChunk{}, badgerhold.Where("SourceID").Eq(sourceID))
		if err != nil && err != badgerhold.ErrNotFound {
			return err
		}
		for _, r := range records {
			sc := storedChunk{
				Key:        fmt.Sprintf("%s/%08d", sourceID, r.Chunk.Index),
				Seq:        s.seq.Add(1),
				SourceID:   sourceID,
				SourceName: sourceName,
				ChunkIndex: r.Chunk.Index,
				Text:       r.Chunk.Text,
				Start:      r.Chunk.Start,
				End:        r.Chunk.End,
				Embedding:  r.Embedding,
				CreatedAt:  now,
			}
			if err := s.store.TxInsert(txn, sc.Key, &sc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "badger: failed to replace source chunks", err)
	}
	return nil
}

func (s *BadgerStore) DeleteSource(ctx context.Context, sourceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.store.DeleteMatching(&storedChunk{}, badgerhold.Where("SourceID").Eq(sourceID))
	if err != nil && err != badgerhold.ErrNotFound {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "badger: failed to delete source", err)
	}
	return nil
}

func (s *BadgerStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.store.DeleteMatching(&storedChunk{}, nil)
	if err != nil && err != badgerhold.ErrNotFound {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "badger: failed to clear index", err)
	}
	return nil
}

func (s *BadgerStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k < 1 {
		return nil, domain.ErrInvalidTopK
	}
	if len(vector) != s.dimensions {
		return nil, domain.ErrDimensionMismatch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type scored struct {
		match Match
		seq   uint64
	}
	var results []scored
	err := s.store.ForEach(nil, func(c *storedChunk) error {
		results = append(results, scored{
			match: Match{
				SourceID:   c.SourceID,
				SourceName: c.SourceName,
				ChunkIndex: c.ChunkIndex,
				Text:       c.Text,
				Distance:   cosineDistance(vector, c.Embedding),
			},
			seq: c.Seq,
		})
		return nil
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "badger: failed to scan index", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].match.Distance != results[j].match.Distance {
			return results[i].match.Distance < results[j].match.Distance
		}
		return results[i].seq < results[j].seq
	})

	if k > len(results) {
		k = len(results)
	}
	matches := make([]Match, k)
	for i := 0; i < k; i++ {
		matches[i] = results[i].match
	}
	return matches, nil
}

func (s *BadgerStore) ListSources(ctx context.Context) ([]domain.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Source)
	order := make([]string, 0)
	err := s.store.ForEach(nil, func(c *storedChunk) error {
		src, ok := byID[c.SourceID]
		if !ok {
			src = &domain.Source{ID: c.SourceID, Name: c.SourceName, IngestedAt: c.CreatedAt}
			byID[c.SourceID] = src
			order = append(order, c.SourceID)
		}
		src.ChunkCount++
		if c.CreatedAt.Before(src.IngestedAt) {
			src.IngestedAt = c.CreatedAt
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "badger: failed to list sources", err)
	}

	sources := make([]domain.Source, 0, len(order))
	for _, id := range order {
		sources = append(sources, *byID[id])
	}
	sort.Slice(sources, func(i, j int) bool {
		if !sources[i].IngestedAt.Equal(sources[j].IngestedAt) {
			return sources[i].IngestedAt.Before(sources[j].IngestedAt)
		}
		return sources[i].ID < sources[j].ID
	})
	return sources, nil
}

func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count, err := s.store.Count(&storedChunk{}, nil)
	if err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "badger: failed to count chunks", err)
	}
	return int(count), nil
}

// RunGC runs one round of badger value-log garbage collection. Returns
// badger.ErrNoRewrite when there was nothing to reclaim.
func (s *BadgerStore) RunGC() error {
	return s.store.Badger().RunValueLogGC(0.5)
}

func (s *BadgerStore) Close() error {
	return s.store.Close()
}

// cosineDistance is 1 - cosine similarity; zero-norm vectors are treated as
// maximally distant.
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
