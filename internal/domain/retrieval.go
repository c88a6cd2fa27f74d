package domain

// RetrievedChunk is one entry of a retrieval result: a chunk's text, its
// provenance, and the store's relevance score (lower distance = higher score).
type RetrievedChunk struct {
	SourceID   string
	SourceName string
	ChunkIndex int
	Text       string
	Score      float32
}

// RetrievalResult is the ordered sequence of chunks retrieved for one query,
// most relevant first. It is ephemeral and never persisted.
type RetrievalResult struct {
	Chunks []RetrievedChunk
}

// Empty reports whether the result holds no chunks.
func (r RetrievalResult) Empty() bool {
	return len(r.Chunks) == 0
}
