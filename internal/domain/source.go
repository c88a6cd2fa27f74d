package domain

import "time"

// Source is a user-added document. It exists while the vector store holds at
// least one chunk for its id; removal or a clear destroys it together with
// its chunks.
type Source struct {
	ID         string
	Name       string
	ChunkCount int
	IngestedAt time.Time
}
