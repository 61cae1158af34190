package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

var (
	rememberToolName    = "remember"
	rememberDescription = "Summarize a chat log and store it as a long-term memory with optional tags and metadata. Returns the new memory id with the generated heading and summary."

	recallToolName    = "recall"
	recallDescription = "Find stored memories semantically similar to the query. Supports a similarity threshold, result limit, date range, minimum importance, source and tag filters. An empty query lists the most recent memories."

	searchToolName    = "search_memories"
	searchDescription = "Keyword search over stored memories. Every word must match; heading matches rank above summary matches, which rank above context matches. Set hybrid to fuse with semantic search."

	getToolName    = "get_memory"
	getDescription = "Fetch one memory by id, including its tags and metadata."

	deleteToolName    = "delete_memory"
	deleteDescription = "Delete a memory by id together with its tags and metadata."

	recentToolName    = "recent_memories"
	recentDescription = "List the most recently stored memories, newest first."

	statsToolName    = "memory_stats"
	statsDescription = "Count stored memories and tags, with per-day totals for the last seven days."
)

// RememberInput represents the input arguments for the remember tool.
type RememberInput struct {
	ChatLog    []string       `json:"chat_log" jsonschema:"the conversation, one message per entry"`
	Context    string         `json:"context,omitempty" jsonschema:"optional project or task context"`
	Tags       []string       `json:"tags,omitempty" jsonschema:"optional labels for later filtering"`
	Metadata   map[string]any `json:"metadata,omitempty" jsonschema:"optional JSON values keyed by name"`
	Source     string         `json:"source,omitempty" jsonschema:"where the memory came from (default: chat)"`
	Importance *float64       `json:"importance,omitempty" jsonschema:"importance between 0 and 1 (default: 0.5)"`
}

// RememberOutput identifies the stored memory.
type RememberOutput struct {
	MemoryID string `json:"memory_id"`
	Heading  string `json:"heading"`
	Summary  string `json:"summary"`
}

// RecallInput represents the input arguments for the recall tool.
type RecallInput struct {
	Query               string   `json:"query" jsonschema:"the text to match semantically"`
	Limit               *int     `json:"limit,omitempty" jsonschema:"number of results to return (default: 10)"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty" jsonschema:"minimum cosine similarity (default: 0.1)"`
	CreatedAfter        string   `json:"created_after,omitempty" jsonschema:"only memories created at or after this RFC 3339 time or YYYY-MM-DD date"`
	CreatedBefore       string   `json:"created_before,omitempty" jsonschema:"only memories created at or before this RFC 3339 time or YYYY-MM-DD date"`
	MinImportance       float64  `json:"min_importance,omitempty" jsonschema:"minimum importance (default: 0)"`
	Source              string   `json:"source,omitempty" jsonschema:"exact source to match"`
	Tag                 string   `json:"tag,omitempty" jsonschema:"tag the memory must carry"`
}

// SearchInput represents the input arguments for the search_memories tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"keywords that must all appear"`
	Limit  *int   `json:"limit,omitempty" jsonschema:"number of results to return (default: 10)"`
	Hybrid bool   `json:"hybrid,omitempty" jsonschema:"fuse keyword and semantic rankings"`
}

// IDInput selects one memory.
type IDInput struct {
	ID string `json:"id" jsonschema:"the memory id"`
}

// RecentInput represents the input arguments for the recent_memories tool.
type RecentInput struct {
	Limit *int `json:"limit,omitempty" jsonschema:"number of memories to return (default: 10)"`
}

// EmptyInput is the input of tools without arguments.
type EmptyInput struct{}

// ResultItem is one memory in a result list.
type ResultItem struct {
	ID        string   `json:"id"`
	Heading   string   `json:"heading"`
	Summary   string   `json:"summary"`
	Score     float64  `json:"score"`
	CreatedAt string   `json:"created_at"`
	Tags      []string `json:"tags"`
}

// ResultsOutput represents the output of the listing tools.
type ResultsOutput struct {
	Query   string       `json:"query"`
	Results []ResultItem `json:"results"`
	Count   int          `json:"count"`
}

// MemoryOutput is a full memory.
type MemoryOutput struct {
	ID         string         `json:"id"`
	Heading    string         `json:"heading"`
	Summary    string         `json:"summary"`
	Context    string         `json:"context"`
	Source     string         `json:"source"`
	Importance float64        `json:"importance"`
	Tags       []string       `json:"tags"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

// DeleteOutput confirms a deletion.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DayCount is the number of memories created on one day.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// StatsOutput summarises the store.
type StatsOutput struct {
	TotalMemories int        `json:"total_memories"`
	TotalTags     int        `json:"total_tags"`
	LastWeek      []DayCount `json:"last_week"`
}

func (s *Server) handleRemember(ctx context.Context, req *mcp.CallToolRequest, input RememberInput) (*mcp.CallToolResult, RememberOutput, error) {
	s.config.Logger.Debug("MCP remember request", zap.Int("lines", len(input.ChatLog)), zap.Strings("tags", input.Tags))

	metadata := make(map[string]json.RawMessage, len(input.Metadata))
	for k, v := range input.Metadata {
		raw, err := json.Marshal(v)
		if err != nil {
			return s.errorResult("failed to encode metadata", err), RememberOutput{}, nil
		}
		metadata[k] = raw
	}

	res, err := s.config.Service.Remember(ctx, service.RememberRequest{
		ChatLog:    input.ChatLog,
		Context:    input.Context,
		Tags:       input.Tags,
		Metadata:   metadata,
		Source:     input.Source,
		Importance: input.Importance,
	})
	if err != nil {
		return s.errorResult("failed to remember", err), RememberOutput{}, nil
	}

	output := RememberOutput{MemoryID: res.MemoryID, Heading: res.Heading, Summary: res.Summary}
	return s.jsonResult(output), output, nil
}

func (s *Server) handleRecall(ctx context.Context, req *mcp.CallToolRequest, input RecallInput) (*mcp.CallToolResult, ResultsOutput, error) {
	s.config.Logger.Debug("MCP recall request", zap.String("query", input.Query))

	after, err := service.ParseDate(input.CreatedAfter, false)
	if err != nil {
		return s.errorResult("failed to recall", err), emptyResults(), nil
	}
	before, err := service.ParseDate(input.CreatedBefore, true)
	if err != nil {
		return s.errorResult("failed to recall", err), emptyResults(), nil
	}

	res, err := s.config.Service.Recall(ctx, service.RecallRequest{
		Query:               input.Query,
		Limit:               input.Limit,
		SimilarityThreshold: input.SimilarityThreshold,
		DateFilter:          service.DateFilter{After: after, Before: before},
		MinImportance:       input.MinImportance,
		Source:              input.Source,
		Tag:                 input.Tag,
	})
	if err != nil {
		return s.errorResult("failed to recall", err), emptyResults(), nil
	}

	items := make([]ResultItem, 0, len(res.Results))
	for _, h := range res.Results {
		items = append(items, ResultItem{
			ID:        h.ID,
			Heading:   h.Heading,
			Summary:   h.Summary,
			Score:     h.Similarity,
			CreatedAt: formatTime(h.CreatedAt),
			Tags:      nonNil(h.Tags),
		})
	}
	output := ResultsOutput{Query: res.Query, Results: items, Count: len(items)}
	return s.jsonResult(output), output, nil
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, ResultsOutput, error) {
	s.config.Logger.Debug("MCP search request", zap.String("query", input.Query), zap.Bool("hybrid", input.Hybrid))

	search := s.config.Service.Search
	if input.Hybrid {
		search = s.config.Service.Hybrid
	}
	res, err := search(ctx, input.Query, input.Limit)
	if err != nil {
		return s.errorResult("failed to search memories", err), emptyResults(), nil
	}

	output := ResultsOutput{Query: res.Query, Results: hitItems(res.Results), Count: len(res.Results)}
	return s.jsonResult(output), output, nil
}

func (s *Server) handleGet(ctx context.Context, req *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, MemoryOutput, error) {
	m, err := s.config.Service.Get(ctx, input.ID)
	if err != nil {
		return s.errorResult("failed to get memory", err), emptyMemory(), nil
	}

	metadata := make(map[string]any, len(m.Metadata))
	for k, raw := range m.Metadata {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return s.errorResult("failed to decode metadata", err), emptyMemory(), nil
		}
		metadata[k] = v
	}

	output := MemoryOutput{
		ID:         m.ID,
		Heading:    m.Heading,
		Summary:    m.Summary,
		Context:    m.Context,
		Source:     m.Source,
		Importance: m.Importance,
		Tags:       nonNil(m.Tags),
		Metadata:   metadata,
		CreatedAt:  formatTime(m.CreatedAt),
		UpdatedAt:  formatTime(m.UpdatedAt),
	}
	return s.jsonResult(output), output, nil
}

func (s *Server) handleDelete(ctx context.Context, req *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := s.config.Service.Delete(ctx, input.ID); err != nil {
		return s.errorResult("failed to delete memory", err), DeleteOutput{}, nil
	}
	output := DeleteOutput{ID: input.ID, Deleted: true}
	return s.jsonResult(output), output, nil
}

func (s *Server) handleRecent(ctx context.Context, req *mcp.CallToolRequest, input RecentInput) (*mcp.CallToolResult, ResultsOutput, error) {
	memories, err := s.config.Service.Recent(ctx, input.Limit)
	if err != nil {
		return s.errorResult("failed to list memories", err), emptyResults(), nil
	}

	items := make([]ResultItem, 0, len(memories))
	for _, m := range memories {
		items = append(items, ResultItem{
			ID:        m.ID,
			Heading:   m.Heading,
			Summary:   m.Summary,
			CreatedAt: formatTime(m.CreatedAt),
			Tags:      nonNil(m.Tags),
		})
	}
	output := ResultsOutput{Results: items, Count: len(items)}
	return s.jsonResult(output), output, nil
}

func (s *Server) handleStats(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, StatsOutput, error) {
	st, err := s.config.Service.Stats(ctx)
	if err != nil {
		return s.errorResult("failed to read stats", err), emptyStats(), nil
	}

	output := StatsOutput{
		TotalMemories: st.TotalMemories,
		TotalTags:     st.TotalTags,
		LastWeek:      make([]DayCount, 0, len(st.LastWeek)),
	}
	for _, d := range st.LastWeek {
		output.LastWeek = append(output.LastWeek, DayCount{Day: d.Day, Count: d.Count})
	}
	return s.jsonResult(output), output, nil
}

func hitItems(hits []service.Hit) []ResultItem {
	items := make([]ResultItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, ResultItem{
			ID:        h.ID,
			Heading:   h.Heading,
			Summary:   h.Summary,
			Score:     h.Score,
			CreatedAt: formatTime(h.CreatedAt),
			Tags:      nonNil(h.Tags),
		})
	}
	return items
}

// The SDK validates structured output even when IsError is set, so outputs
// returned next to an error result carry empty collections instead of nil.
func emptyResults() ResultsOutput {
	return ResultsOutput{Results: []ResultItem{}}
}

func emptyMemory() MemoryOutput {
	return MemoryOutput{Tags: []string{}, Metadata: map[string]any{}}
}

func emptyStats() StatsOutput {
	return StatsOutput{LastWeek: []DayCount{}}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
