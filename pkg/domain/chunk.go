package domain

import "github.com/google/uuid"

// EntityKind tells the indexer which table a chunk set belongs to and which
// char budget applies when splitting the source text.
type EntityKind string

const (
	EntityKindIdea    EntityKind = "idea"
	EntityKindMessage EntityKind = "message"
)

// Chunk is a bounded slice of an entity's text, stored with its embedding
// for similarity search. ChunkIndex preserves source order.
type Chunk struct {
	ID         uuid.UUID
	Kind       EntityKind
	EntityID   int64
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// SearchResult pairs a chunk with its cosine similarity to a query.
type SearchResult struct {
	Chunk Chunk
	Score float64
}
