package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

const noMemoriesMessage = "No related memories found."

// Handler provides implementations for all agent tools. Failures are
// reported in the result so the model can react to them.
type Handler struct {
	svc *service.Service
}

// NewHandler creates a new tool handler with the given dependencies.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Remember stores the conversation through the write pipeline.
func (h *Handler) Remember(ctx context.Context, args RememberArgs) RememberResult {
	res, err := h.svc.Remember(ctx, service.RememberRequest{
		ChatLog:    args.ChatLog,
		Context:    args.Context,
		Tags:       args.Tags,
		Importance: args.Importance,
		Source:     "agent",
	})
	if err != nil {
		return RememberResult{Success: false, Error: describe("failed to remember", err)}
	}
	return RememberResult{Success: true, Data: res}
}

// Recall runs a similarity search.
func (h *Handler) Recall(ctx context.Context, args RecallArgs) LookupResult {
	if args.Query == "" {
		return LookupResult{Success: false, Error: "query is required"}
	}

	res, err := h.svc.Recall(ctx, service.RecallRequest{
		Query:         args.Query,
		Limit:         args.Limit,
		MinImportance: args.MinImportance,
		Tag:           args.Tag,
	})
	if err != nil {
		return LookupResult{Success: false, Error: describe("failed to recall memories", err)}
	}
	if len(res.Results) == 0 {
		return LookupResult{Success: true, Data: noMemoriesMessage}
	}

	items := make([]MemoryItem, 0, len(res.Results))
	for _, r := range res.Results {
		items = append(items, MemoryItem{
			ID:        r.ID,
			Heading:   r.Heading,
			Summary:   r.Summary,
			Score:     fmt.Sprintf("%.2f%%", r.Similarity*100),
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			Tags:      r.Tags,
		})
	}
	return LookupResult{Success: true, Data: items}
}

// Search runs a keyword search.
func (h *Handler) Search(ctx context.Context, args SearchArgs) LookupResult {
	if args.Query == "" {
		return LookupResult{Success: false, Error: "query is required"}
	}

	res, err := h.svc.Search(ctx, args.Query, args.Limit)
	if err != nil {
		return LookupResult{Success: false, Error: describe("failed to search memories", err)}
	}
	if len(res.Results) == 0 {
		return LookupResult{Success: true, Data: noMemoriesMessage}
	}

	items := make([]MemoryItem, 0, len(res.Results))
	for _, r := range res.Results {
		items = append(items, MemoryItem{
			ID:        r.ID,
			Heading:   r.Heading,
			Summary:   r.Summary,
			Score:     fmt.Sprintf("%.3f", r.Score),
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			Tags:      r.Tags,
		})
	}
	return LookupResult{Success: true, Data: items}
}

func describe(prefix string, err error) string {
	return fmt.Sprintf("%s (%s): %v", prefix, memory.Kind(err), err)
}
