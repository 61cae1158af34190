package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
)

// rrfK is the rank offset of Reciprocal Rank Fusion.
const rrfK = 60

// DateFilter bounds the creation time of recalled memories. Both ends are
// inclusive and optional.
type DateFilter struct {
	After  *time.Time `json:"after,omitempty"`
	Before *time.Time `json:"before,omitempty"`
}

// RecallRequest is the input of Recall. A nil Limit or SimilarityThreshold
// takes the configured default.
type RecallRequest struct {
	Query               string     `json:"query"`
	Limit               *int       `json:"limit,omitempty"`
	SimilarityThreshold *float64   `json:"similarity_threshold,omitempty"`
	DateFilter          DateFilter `json:"date_filter"`
	MinImportance       float64    `json:"min_importance,omitempty"`
	Source              string     `json:"source,omitempty"`
	Tag                 string     `json:"tag,omitempty"`
}

// RecallHit is one recalled memory.
type RecallHit struct {
	ID         string    `json:"id"`
	Heading    string    `json:"heading"`
	Summary    string    `json:"summary"`
	Similarity float64   `json:"similarity"`
	CreatedAt  time.Time `json:"created_at"`
	Tags       []string  `json:"tags"`
}

// RecallResult lists hits best first.
type RecallResult struct {
	Results []RecallHit `json:"results"`
	Query   string      `json:"query"`
}

// Hit is a lexical or hybrid search result. Score is the engine rank for
// lexical search and the fused score for hybrid search.
type Hit struct {
	ID        string    `json:"id"`
	Heading   string    `json:"heading"`
	Summary   string    `json:"summary"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags"`
}

// SearchResult lists lexical or hybrid hits best first.
type SearchResult struct {
	Results []Hit  `json:"results"`
	Query   string `json:"query"`
}

// Recall embeds the query and returns the most similar memories that pass
// the filters. A blank query lists the most recent memories passing the
// filters instead, with a similarity of zero.
func (s *Service) Recall(ctx context.Context, req RecallRequest) (*RecallResult, error) {
	limit := s.limit(req.Limit)
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be greater than zero, got %d", memory.ErrValidation, limit)
	}
	threshold := s.opts.DefaultThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}

	filter := memory.Filter{
		MinImportance: req.MinImportance,
		Source:        req.Source,
		Tag:           req.Tag,
		CreatedAfter:  req.DateFilter.After,
		CreatedBefore: req.DateFilter.Before,
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		recent, err := s.store.ListRecent(ctx, memory.RecentQuery{Filter: filter, Limit: limit})
		if err != nil {
			return nil, err
		}
		results := make([]RecallHit, 0, len(recent))
		for _, m := range recent {
			results = append(results, recallHit(memory.ScoredMemory{Memory: m}))
		}
		return &RecallResult{Results: results, Query: req.Query}, nil
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	q := memory.NewSimilarityQuery(vec)
	q.Filter = filter
	q.Threshold = threshold
	q.Limit = limit

	hits, err := s.store.SearchSimilar(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make([]RecallHit, 0, len(hits))
	for _, h := range hits {
		results = append(results, recallHit(h))
	}
	s.log.Debug("recall",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Float64("threshold", threshold),
	)
	return &RecallResult{Results: results, Query: req.Query}, nil
}

// Search runs a lexical search over heading, summary and context.
func (s *Service) Search(ctx context.Context, query string, limit *int) (*SearchResult, error) {
	q := memory.NewTextQuery(query)
	q.Limit = s.limit(limit)

	hits, err := s.store.SearchText(ctx, q)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Results: toHits(hits), Query: query}, nil
}

// Hybrid runs similarity and lexical search concurrently and fuses the two
// rankings with Reciprocal Rank Fusion.
func (s *Service) Hybrid(ctx context.Context, query string, limit *int) (*SearchResult, error) {
	n := s.limit(limit)
	if n <= 0 {
		return nil, fmt.Errorf("%w: limit must be greater than zero, got %d", memory.ErrValidation, n)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", memory.ErrValidation)
	}

	// Each ranking contributes a deeper candidate list than the final cut.
	candidates := n * 3
	var vectorHits, textHits []memory.ScoredMemory

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := s.embed(gctx, query)
		if err != nil {
			return err
		}
		q := memory.NewSimilarityQuery(vec)
		q.Threshold = s.opts.DefaultThreshold
		q.Limit = candidates
		vectorHits, err = s.store.SearchSimilar(gctx, q)
		return err
	})
	g.Go(func() error {
		q := memory.NewTextQuery(query)
		q.Limit = candidates
		var err error
		textHits, err = s.store.SearchText(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := FuseRankings(n, vectorHits, textHits)
	s.log.Debug("hybrid search",
		zap.String("query", query),
		zap.Int("vector", len(vectorHits)),
		zap.Int("text", len(textHits)),
		zap.Int("results", len(fused)),
	)
	return &SearchResult{Results: toHits(fused), Query: query}, nil
}

// FuseRankings merges ranked lists by summing 1/(k+rank) per memory and
// returns the top limit entries in memory.CompareRanked order.
func FuseRankings(limit int, rankings ...[]memory.ScoredMemory) []memory.ScoredMemory {
	byID := map[string]*memory.ScoredMemory{}
	var order []string
	for _, ranking := range rankings {
		for i, h := range ranking {
			score := 1.0 / float64(rrfK+i+1)
			if existing, ok := byID[h.ID]; ok {
				existing.Score += score
				continue
			}
			h.Score = score
			byID[h.ID] = &h
			order = append(order, h.ID)
		}
	}

	fused := make([]memory.ScoredMemory, 0, len(order))
	for _, id := range order {
		fused = append(fused, *byID[id])
	}
	slices.SortFunc(fused, memory.CompareRanked)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}

// Get returns one memory with its tags and metadata.
func (s *Service) Get(ctx context.Context, id string) (*memory.Memory, error) {
	return s.store.GetMemory(ctx, id)
}

// Delete removes a memory and everything attached to it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteMemory(ctx, id); err != nil {
		return err
	}
	s.log.Info("memory deleted", zap.String("id", id))
	return nil
}

// Tag attaches a tag to an existing memory.
func (s *Service) Tag(ctx context.Context, id, tag string) error {
	return s.store.AddTag(ctx, id, tag)
}

// SetMetadata attaches a JSON value under key to an existing memory.
func (s *Service) SetMetadata(ctx context.Context, id, key string, value json.RawMessage) error {
	return s.store.SetMetadata(ctx, id, key, value)
}

// UpdateRequest changes selected fields of a memory. Nil fields are kept.
type UpdateRequest struct {
	Heading    *string  `json:"heading,omitempty"`
	Summary    *string  `json:"summary,omitempty"`
	Context    *string  `json:"context,omitempty"`
	Source     *string  `json:"source,omitempty"`
	Importance *float64 `json:"importance,omitempty"`
}

// Update applies a partial update. When the heading or summary changes the
// embedding is recomputed so vector search keeps matching the new text.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) error {
	u := memory.MemoryUpdate{
		Heading:    req.Heading,
		Summary:    req.Summary,
		Context:    req.Context,
		Source:     req.Source,
		Importance: req.Importance,
	}

	if req.Heading != nil || req.Summary != nil {
		current, err := s.store.GetMemory(ctx, id)
		if err != nil {
			return err
		}
		heading, summary := current.Heading, current.Summary
		if req.Heading != nil {
			heading = strings.TrimSpace(*req.Heading)
		}
		if req.Summary != nil {
			summary = strings.TrimSpace(*req.Summary)
		}
		if heading == "" || summary == "" {
			return fmt.Errorf("%w: heading and summary must not be blank", memory.ErrValidation)
		}
		vec, err := s.embed(ctx, EmbeddingText(heading, summary))
		if err != nil {
			return err
		}
		u.Embedding = vec
	}

	if err := s.store.UpdateMemory(ctx, id, u); err != nil {
		return err
	}
	s.log.Info("memory updated", zap.String("id", id), zap.Bool("reembedded", u.Embedding != nil))
	return nil
}

// Recent lists the newest memories first.
func (s *Service) Recent(ctx context.Context, limit *int) ([]memory.Memory, error) {
	return s.store.ListRecent(ctx, memory.RecentQuery{Limit: s.limit(limit)})
}

// Stats summarises the store.
func (s *Service) Stats(ctx context.Context) (*memory.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) limit(limit *int) int {
	if limit == nil {
		return s.opts.DefaultLimit
	}
	return *limit
}

// ParseDate reads an RFC 3339 timestamp or a YYYY-MM-DD date. A bare date
// used as an upper bound covers the whole day. Empty input yields nil.
func ParseDate(value string, upper bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is neither RFC 3339 nor YYYY-MM-DD", memory.ErrValidation, value)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func recallHit(h memory.ScoredMemory) RecallHit {
	return RecallHit{
		ID:         h.ID,
		Heading:    h.Heading,
		Summary:    h.Summary,
		Similarity: h.Score,
		CreatedAt:  h.CreatedAt,
		Tags:       nonNil(h.Tags),
	}
}

func toHits(hits []memory.ScoredMemory) []Hit {
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		out = append(out, Hit{
			ID:        h.ID,
			Heading:   h.Heading,
			Summary:   h.Summary,
			Score:     h.Score,
			CreatedAt: h.CreatedAt,
			Tags:      nonNil(h.Tags),
		})
	}
	return out
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
