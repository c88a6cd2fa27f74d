package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Upsert(ctx context.Context, sourceID, sourceName string, records []domain.EmbeddingRecord) error {
	args := m.Called(ctx, sourceID, sourceName, records)
	return args.Error(0)
}

func (m *MockVectorIndex) DeleteSource(ctx context.Context, sourceID string) error {
	args := m.Called(ctx, sourceID)
	return args.Error(0)
}

func (m *MockVectorIndex) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVectorIndex) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	args := m.Called(ctx, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorstore.Match), args.Error(1)
}

func (m *MockVectorIndex) ListSources(ctx context.Context) ([]domain.Source, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Source), args.Error(1)
}

func (m *MockVectorIndex) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newTestChunker(t *testing.T) *Chunker {
	t.Helper()
	chunker, err := NewChunker(ChunkConfig{Size: 10, Overlap: 2})
	require.NoError(t, err)
	return chunker
}

func batchOfVectors(n int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{float32(i), 1}
	}
	return vectors
}

func TestIngest_Success(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)

	svc := NewIngestService(newTestChunker(t), mockEmbedder, mockIndex, 16)

	text := strings.Repeat("a", 28) // chunks of 10 with step 8: 4 chunks
	mockEmbedder.On("EmbedBatch", mock.Anything, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 4
	})).Return(batchOfVectors(4), nil)
	mockIndex.On("Upsert", mock.Anything, "doc-1", "Doc One", mock.MatchedBy(func(records []domain.EmbeddingRecord) bool {
		if len(records) != 4 {
			return false
		}
		for i, r := range records {
			if r.Chunk.Index != i || r.Embedding[0] != float32(i) {
				return false
			}
		}
		return true
	})).Return(nil)

	source, err := svc.Ingest(context.Background(), "doc-1", "Doc One", text)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", source.ID)
	assert.Equal(t, "Doc One", source.Name)
	assert.Equal(t, 4, source.ChunkCount)
	assert.False(t, source.IngestedAt.IsZero())

	mockEmbedder.AssertExpectations(t)
	mockIndex.AssertExpectations(t)
}

func TestIngest_BatchesRespectBatchSize(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)

	svc := NewIngestService(newTestChunker(t), mockEmbedder, mockIndex, 3)

	text := strings.Repeat("b", 58) // 58 runes, step 8: 7 chunks
	mockEmbedder.On("EmbedBatch", mock.Anything, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 3
	})).Return(batchOfVectors(3), nil).Twice()
	mockEmbedder.On("EmbedBatch", mock.Anything, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 1
	})).Return(batchOfVectors(1), nil).Once()
	mockIndex.On("Upsert", mock.Anything, "doc-1", "doc-1", mock.MatchedBy(func(records []domain.EmbeddingRecord) bool {
		return len(records) == 7
	})).Return(nil)

	_, err := svc.Ingest(context.Background(), "doc-1", "", text)
	require.NoError(t, err)

	mockEmbedder.AssertExpectations(t)
	mockIndex.AssertExpectations(t)
}

func TestIngest_EmptyText_NoOp(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)

	svc := NewIngestService(newTestChunker(t), mockEmbedder, mockIndex, 16)

	source, err := svc.Ingest(context.Background(), "doc-1", "", "   \n ")
	require.NoError(t, err)
	assert.Equal(t, 0, source.ChunkCount)

	mockEmbedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
	mockIndex.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_MissingSourceID(t *testing.T) {
	svc := NewIngestService(newTestChunker(t), new(MockEmbeddingClient), new(MockVectorIndex), 16)

	_, err := svc.Ingest(context.Background(), "", "", "some text")
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestIngest_EmbedFailureWrapped(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)

	svc := NewIngestService(newTestChunker(t), mockEmbedder, mockIndex, 16)

	cause := errors.New("rate limited")
	mockEmbedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, cause)

	_, err := svc.Ingest(context.Background(), "doc-1", "", strings.Repeat("c", 30))
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeIngestFailed, domainErr.Code)
	assert.Contains(t, err.Error(), "doc-1")
	assert.Contains(t, err.Error(), "embed")
	assert.ErrorIs(t, err, cause)

	mockIndex.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_StoreFailureWrapped(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)

	svc := NewIngestService(newTestChunker(t), mockEmbedder, mockIndex, 16)

	cause := errors.New("connection refused")
	mockEmbedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(batchOfVectors(3), nil)
	mockIndex.On("Upsert", mock.Anything, "doc-1", "doc-1", mock.Anything).Return(cause)

	_, err := svc.Ingest(context.Background(), "doc-1", "", strings.Repeat("d", 26))
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeIngestFailed, domainErr.Code)
	assert.Contains(t, err.Error(), "store")
}

func TestIngest_SameSourceSerialized(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)

	svc := NewIngestService(newTestChunker(t), mockEmbedder, mockIndex, 16)

	var inFlight, maxInFlight int
	var mu sync.Mutex

	mockEmbedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(batchOfVectors(1), nil)
	mockIndex.On("Upsert", mock.Anything, "doc-1", "doc-1", mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
	}).Return(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), "doc-1", "", "short")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
}

func TestRemove(t *testing.T) {
	mockIndex := new(MockVectorIndex)
	svc := NewIngestService(newTestChunker(t), new(MockEmbeddingClient), mockIndex, 16)

	mockIndex.On("DeleteSource", mock.Anything, "doc-1").Return(nil)
	require.NoError(t, svc.Remove(context.Background(), "doc-1"))

	err := svc.Remove(context.Background(), "")
	require.Error(t, err)
	mockIndex.AssertExpectations(t)
}

func TestHasDocuments(t *testing.T) {
	mockIndex := new(MockVectorIndex)
	svc := NewIngestService(newTestChunker(t), new(MockEmbeddingClient), mockIndex, 16)

	mockIndex.On("Count", mock.Anything).Return(3, nil).Once()
	has, err := svc.HasDocuments(context.Background())
	require.NoError(t, err)
	assert.True(t, has)

	mockIndex.On("Count", mock.Anything).Return(0, nil).Once()
	has, err = svc.HasDocuments(context.Background())
	require.NoError(t, err)
	assert.False(t, has)
}
