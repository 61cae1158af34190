package memory

import (
	"context"
	"encoding/json"
)

// Store defines the contract for memory persistence and retrieval.
// Every mutation runs in a single transaction together with the index
// maintenance it implies, so readers never observe a half-written memory.
type Store interface {
	// InitSchema creates tables, indexes and triggers if they don't exist.
	InitSchema(ctx context.Context) error

	// CreateMemory validates and inserts a memory, returning its new id.
	CreateMemory(ctx context.Context, m NewMemory) (string, error)

	// CreateMemoryWithAttachments inserts a memory, its tags and its metadata
	// atomically. On any failure nothing is persisted.
	CreateMemoryWithAttachments(ctx context.Context, m NewMemory, tags []string, metadata map[string]json.RawMessage) (string, error)

	UpdateMemory(ctx context.Context, id string, u MemoryUpdate) error

	// DeleteMemory removes a memory together with its tags and metadata.
	DeleteMemory(ctx context.Context, id string) error

	AddTag(ctx context.Context, id, tag string) error
	SetMetadata(ctx context.Context, id, key string, value json.RawMessage) error

	GetMemory(ctx context.Context, id string) (*Memory, error)
	Tags(ctx context.Context, id string) ([]string, error)
	Metadata(ctx context.Context, id string) (map[string]json.RawMessage, error)

	// SearchSimilar returns memories ordered by cosine similarity to the
	// query embedding, highest first.
	SearchSimilar(ctx context.Context, q SimilarityQuery) ([]ScoredMemory, error)

	// SearchText returns memories matching every query term, ordered by
	// weighted relevance (heading > summary > context).
	SearchText(ctx context.Context, q TextQuery) ([]ScoredMemory, error)

	// ListRecent returns the newest memories passing the filter, newest
	// first.
	ListRecent(ctx context.Context, q RecentQuery) ([]Memory, error)
	Stats(ctx context.Context) (*Stats, error)

	// Dimension is the embedding length this store accepts.
	Dimension() int

	// Close releases any resources held by the store.
	Close() error
}
