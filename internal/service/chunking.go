package service

import (
	"iter"
	"strings"

	"github.com/corpusworks/corpusd/internal/domain"
)

// ChunkConfig controls sliding-window chunking.
type ChunkConfig struct {
	// Size is the window width in runes.
	Size int
	// Overlap is the number of runes shared by consecutive chunks. Must be
	// strictly smaller than Size.
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    500,
		Overlap: 100,
	}
}

// Chunker splits document text into overlapping fixed-size chunks with
// deterministic boundaries, so re-ingesting identical text always produces
// the identical chunk set.
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker validates the configuration and returns a Chunker.
func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if cfg.Size <= 0 {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidConfiguration, "chunk size must be positive")
	}
	if cfg.Overlap < 0 {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidConfiguration, "chunk overlap cannot be negative")
	}
	if cfg.Overlap >= cfg.Size {
		return nil, domain.ErrOverlapTooLarge
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunks returns a restartable sequence of chunks covering text with no gaps.
// Every chunk except possibly the last spans exactly Size runes; consecutive
// chunks overlap by exactly Overlap runes. Whitespace-only text yields no
// chunks; text no longer than one window yields a single chunk.
func (c *Chunker) Chunks(sourceID, text string) iter.Seq[domain.Chunk] {
	clean := strings.TrimSpace(text)
	return func(yield func(domain.Chunk) bool) {
		if clean == "" {
			return
		}
		runes := []rune(clean)
		step := c.cfg.Size - c.cfg.Overlap
		index := 0
		for start := 0; start < len(runes); start += step {
			end := start + c.cfg.Size
			if end > len(runes) {
				end = len(runes)
			}
			chunk := domain.Chunk{
				SourceID: sourceID,
				Index:    index,
				Text:     string(runes[start:end]),
				Start:    start,
				End:      end,
			}
			if !yield(chunk) {
				return
			}
			// The chunk that reaches the end of the text is the last one,
			// even when a further window would still start inside the text.
			if end == len(runes) {
				return
			}
			index++
		}
	}
}

// ChunkAll collects the chunk sequence into a slice.
func (c *Chunker) ChunkAll(sourceID, text string) []domain.Chunk {
	var chunks []domain.Chunk
	for chunk := range c.Chunks(sourceID, text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}
