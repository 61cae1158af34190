// Package memory stores chat-session memories and retrieves them by vector
// similarity or by weighted full-text relevance. Two backends implement Store:
// PostgreSQL with pgvector, and an embedded SQLite database.
package memory

import (
	"encoding/json"
	"time"
)

const (
	// DefaultSource is recorded when a memory is created without a source.
	DefaultSource = "chat"
	// DefaultImportance is recorded when a memory is created without an importance.
	DefaultImportance = 0.5
	// DefaultThreshold is the minimum similarity a result must reach.
	DefaultThreshold = 0.1
	// DefaultLimit caps the number of search results.
	DefaultLimit = 10
	// DefaultDimension matches the embedding model used in production.
	DefaultDimension = 1536
)

// Memory is one stored chat summary with its tags and metadata.
type Memory struct {
	ID         string
	Heading    string
	Summary    string
	Embedding  []float32
	Context    string
	Source     string
	Importance float64
	Tags       []string
	Metadata   map[string]json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewMemory holds the caller-supplied fields of a memory being created.
// A nil Importance means DefaultImportance and an empty Source means DefaultSource.
type NewMemory struct {
	Heading    string
	Summary    string
	Embedding  []float32
	Context    string
	Source     string
	Importance *float64
}

// MemoryUpdate is a partial update. Nil fields are left untouched.
type MemoryUpdate struct {
	Heading    *string
	Summary    *string
	Context    *string
	Source     *string
	Importance *float64
	Embedding  []float32
}

func (u MemoryUpdate) empty() bool {
	return u.Heading == nil && u.Summary == nil && u.Context == nil &&
		u.Source == nil && u.Importance == nil && u.Embedding == nil
}

// ScoredMemory is a search hit. Score is the cosine similarity for vector
// search and the engine's relevance rank for lexical search.
type ScoredMemory struct {
	Memory
	Score float64
}

// Filter restricts a query to memories matching every set field. Both
// creation bounds are inclusive.
type Filter struct {
	MinImportance float64
	Source        string
	Tag           string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// SimilarityQuery selects memories by cosine similarity to Embedding.
// Build it with NewSimilarityQuery to get the defaults.
type SimilarityQuery struct {
	Filter
	Embedding []float32
	Threshold float64
	Limit     int
}

// RecentQuery lists the newest memories that pass the filter.
type RecentQuery struct {
	Filter
	Limit int
}

// NewSimilarityQuery returns a query with the default threshold and limit.
func NewSimilarityQuery(embedding []float32) SimilarityQuery {
	return SimilarityQuery{
		Embedding: embedding,
		Threshold: DefaultThreshold,
		Limit:     DefaultLimit,
	}
}

// TextQuery selects memories whose lexical representation contains every
// term of Query.
type TextQuery struct {
	Query string
	Limit int
}

// NewTextQuery returns a query with the default limit.
func NewTextQuery(query string) TextQuery {
	return TextQuery{Query: query, Limit: DefaultLimit}
}

// DayCount is the number of memories created on one UTC day.
type DayCount struct {
	Day   string
	Count int
}

// Stats summarises the store contents.
type Stats struct {
	TotalMemories int
	TotalTags     int
	LastWeek      []DayCount
}
