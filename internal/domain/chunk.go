package domain

// Chunk is a contiguous span of a source's text, the unit of embedding and
// retrieval. Start and End are rune offsets into the original document,
// half-open [Start, End). Chunks are immutable once created; re-ingesting a
// source replaces its chunks wholesale.
type Chunk struct {
	SourceID string
	Index    int
	Text     string
	Start    int
	End      int
}

// EmbeddingRecord pairs a chunk with its vector representation. Records are
// owned by the vector store; the pipelines never cache vectors themselves.
type EmbeddingRecord struct {
	Chunk     Chunk
	Embedding []float32
}
