package service

import (
	"context"
	"errors"
	"testing"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRetrievalService(embedder *MockEmbeddingClient, index *MockVectorIndex) *RetrievalService {
	return NewRetrievalService(embedder, index, RetrievalConfig{
		TopK:           5,
		DocumentQATopK: 8,
		MinQueryLength: 3,
	})
}

func TestRetrieve_ShortQueryReturnsEmpty(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)
	svc := newRetrievalService(mockEmbedder, mockIndex)

	for _, query := range []string{"", "ab", "  ab  ", " \t "} {
		result, err := svc.Retrieve(context.Background(), query, 5)
		require.NoError(t, err)
		assert.True(t, result.Empty())
	}

	mockEmbedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	mockIndex.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieve_Success(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)
	svc := newRetrievalService(mockEmbedder, mockIndex)

	vector := []float32{0.1, 0.2}
	mockEmbedder.On("Embed", mock.Anything, "what is chunking").Return(vector, nil)
	mockIndex.On("Query", mock.Anything, vector, 2).Return([]vectorstore.Match{
		{SourceID: "a.txt", SourceName: "a.txt", ChunkIndex: 0, Text: "first", Distance: 0},
		{SourceID: "b.txt", SourceName: "b.txt", ChunkIndex: 3, Text: "second", Distance: 1},
	}, nil)

	result, err := svc.Retrieve(context.Background(), "  what is chunking  ", 2)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 2)

	assert.Equal(t, "a.txt", result.Chunks[0].SourceID)
	assert.InDelta(t, 1.0, result.Chunks[0].Score, 1e-6)
	assert.InDelta(t, 0.5, result.Chunks[1].Score, 1e-6)
	assert.Equal(t, 3, result.Chunks[1].ChunkIndex)
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)
	svc := newRetrievalService(mockEmbedder, mockIndex)

	mockEmbedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	mockIndex.On("Query", mock.Anything, mock.Anything, 5).Return([]vectorstore.Match{}, nil)

	result, err := svc.Retrieve(context.Background(), "some query", 0)
	require.NoError(t, err)
	assert.True(t, result.Empty())

	mockIndex.AssertCalled(t, "Query", mock.Anything, mock.Anything, 5)
}

func TestRetrieveForDocumentQA_UsesWiderK(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)
	svc := newRetrievalService(mockEmbedder, mockIndex)

	mockEmbedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	mockIndex.On("Query", mock.Anything, mock.Anything, 8).Return([]vectorstore.Match{}, nil)

	_, err := svc.RetrieveForDocumentQA(context.Background(), "some question")
	require.NoError(t, err)

	mockIndex.AssertCalled(t, "Query", mock.Anything, mock.Anything, 8)
	assert.Equal(t, 8, svc.DocumentQATopK())
}

func TestRetrieve_ErrorsOmitQueryText(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)
	svc := newRetrievalService(mockEmbedder, mockIndex)

	cause := errors.New("backend down")
	mockEmbedder.On("Embed", mock.Anything, mock.Anything).Return(nil, cause)

	_, err := svc.Retrieve(context.Background(), "my secret medical question", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "stage embed")
}

func TestRetrieve_QueryStageError(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	mockIndex := new(MockVectorIndex)
	svc := newRetrievalService(mockEmbedder, mockIndex)

	mockEmbedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	mockIndex.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("store gone"))

	_, err := svc.Retrieve(context.Background(), "some query", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage query")
}

func TestFormatContext(t *testing.T) {
	result := domain.RetrievalResult{Chunks: []domain.RetrievedChunk{
		{SourceName: "guide.pdf", Text: "first chunk"},
		{SourceName: "notes.txt", Text: "second chunk"},
	}}

	expected := "Source: guide.pdf\nfirst chunk\n\nSource: notes.txt\nsecond chunk"
	assert.Equal(t, expected, FormatContext(result))
}

func TestFormatContext_Empty(t *testing.T) {
	assert.Equal(t, "", FormatContext(domain.RetrievalResult{}))
}
