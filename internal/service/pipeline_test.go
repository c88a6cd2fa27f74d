package service

import (
	"context"
	"strings"
	"testing"

	"github.com/corpusworks/corpusd/internal/testutil"
	"github.com/corpusworks/corpusd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineDims = 64

func newPipeline(t *testing.T, chunkCfg ChunkConfig) (*IngestService, *RetrievalService) {
	t.Helper()

	store, err := vectorstore.NewBadgerStore(t.TempDir(), pipelineDims)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	embedder := testutil.NewFakeEmbedder(pipelineDims)

	chunker, err := NewChunker(chunkCfg)
	require.NoError(t, err)

	ingest := NewIngestService(chunker, embedder, store, 2)
	retrieval := NewRetrievalService(embedder, store, RetrievalConfig{
		TopK:           5,
		DocumentQATopK: 8,
		MinQueryLength: 3,
	})
	return ingest, retrieval
}

func TestPipeline_IngestThenRetrieve(t *testing.T) {
	ingest, retrieval := newPipeline(t, ChunkConfig{Size: 100, Overlap: 20})
	ctx := context.Background()

	text := strings.Repeat("the moon orbits the earth ", 10)
	source, err := ingest.Ingest(ctx, "astronomy.txt", "astronomy.txt", text)
	require.NoError(t, err)
	assert.Equal(t, 3, source.ChunkCount)

	// Query with the exact text of the first chunk: the fake embedder maps
	// identical text to identical vectors, so it must come back first with
	// a perfect score.
	runes := []rune(strings.TrimSpace(text))
	firstChunk := string(runes[:100])

	result, err := retrieval.Retrieve(ctx, firstChunk, 3)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 3)

	assert.Equal(t, "astronomy.txt", result.Chunks[0].SourceID)
	assert.Equal(t, 0, result.Chunks[0].ChunkIndex)
	assert.InDelta(t, 1.0, result.Chunks[0].Score, 1e-5)

	formatted := FormatContext(result)
	assert.True(t, strings.HasPrefix(formatted, "Source: astronomy.txt\n"))
}

func TestPipeline_ReingestReplacesChunks(t *testing.T) {
	ingest, retrieval := newPipeline(t, ChunkConfig{Size: 50, Overlap: 10})
	ctx := context.Background()

	_, err := ingest.Ingest(ctx, "doc.txt", "doc.txt", strings.Repeat("old content here ", 20))
	require.NoError(t, err)

	source, err := ingest.Ingest(ctx, "doc.txt", "doc.txt", "completely new and much shorter text")
	require.NoError(t, err)
	assert.Equal(t, 1, source.ChunkCount)

	sources, err := ingest.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, 1, sources[0].ChunkCount)

	result, err := retrieval.Retrieve(ctx, "completely new and much shorter text", 5)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	assert.InDelta(t, 1.0, result.Chunks[0].Score, 1e-5)
}

func TestPipeline_MultipleSources(t *testing.T) {
	ingest, retrieval := newPipeline(t, ChunkConfig{Size: 200, Overlap: 40})
	ctx := context.Background()

	_, err := ingest.Ingest(ctx, "cooking.txt", "Cooking Notes", "pasta needs salted boiling water")
	require.NoError(t, err)
	_, err = ingest.Ingest(ctx, "space.txt", "Space Notes", "rockets burn liquid oxygen")
	require.NoError(t, err)

	result, err := retrieval.Retrieve(ctx, "pasta needs salted boiling water", 1)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "cooking.txt", result.Chunks[0].SourceID)
	assert.Equal(t, "Cooking Notes", result.Chunks[0].SourceName)

	has, err := ingest.HasDocuments(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, ingest.ClearAll(ctx))

	has, err = ingest.HasDocuments(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	result, err = retrieval.Retrieve(ctx, "pasta needs salted boiling water", 1)
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestPipeline_RemoveSource(t *testing.T) {
	ingest, _ := newPipeline(t, ChunkConfig{Size: 200, Overlap: 40})
	ctx := context.Background()

	_, err := ingest.Ingest(ctx, "a.txt", "a.txt", "alpha text")
	require.NoError(t, err)
	_, err = ingest.Ingest(ctx, "b.txt", "b.txt", "beta text")
	require.NoError(t, err)

	require.NoError(t, ingest.Remove(ctx, "a.txt"))

	sources, err := ingest.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "b.txt", sources[0].ID)
}
