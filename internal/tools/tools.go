// Package tools connects the memory service to ADK agents: function tools the
// model can call, and a long-term memory.Service for the runner.
package tools

import (
	"errors"
	"fmt"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

// Tool names as the model sees them.
const (
	RememberToolName = "remember_memory"
	RecallToolName   = "recall_memories"
	SearchToolName   = "search_memories"
)

// ToolsConfig holds dependencies for creating tools.
type ToolsConfig struct {
	Service *service.Service
}

// --- Tool Input/Output Structs ---

// RememberArgs is the input for remember_memory tool.
type RememberArgs struct {
	ChatLog    []string `json:"chat_log" jsonschema:"the conversation to remember, one message per entry"`
	Context    string   `json:"context,omitempty" jsonschema:"optional project or task context"`
	Tags       []string `json:"tags,omitempty" jsonschema:"optional labels for later filtering"`
	Importance *float64 `json:"importance,omitempty" jsonschema:"importance between 0 and 1 (default 0.5)"`
}

// RememberResult is the output for remember_memory tool.
type RememberResult struct {
	Success bool                    `json:"success"`
	Data    *service.RememberResult `json:"data,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// RecallArgs is the input for recall_memories tool.
type RecallArgs struct {
	Query         string  `json:"query" jsonschema:"what to look for in past sessions"`
	Limit         *int    `json:"limit,omitempty" jsonschema:"maximum number of memories (default 10)"`
	MinImportance float64 `json:"min_importance,omitempty" jsonschema:"skip memories less important than this"`
	Tag           string  `json:"tag,omitempty" jsonschema:"only memories carrying this tag"`
}

// SearchArgs is the input for search_memories tool.
type SearchArgs struct {
	Query string `json:"query" jsonschema:"keywords that must all appear in the memory"`
	Limit *int   `json:"limit,omitempty" jsonschema:"maximum number of memories (default 10)"`
}

// MemoryItem is one memory as returned to the model.
type MemoryItem struct {
	ID        string   `json:"id"`
	Heading   string   `json:"heading"`
	Summary   string   `json:"summary"`
	Score     string   `json:"score"`
	CreatedAt string   `json:"created_at"`
	Tags      []string `json:"tags,omitempty"`
}

// LookupResult is the output for recall_memories and search_memories tools.
// Data is a list of MemoryItem, or a message when nothing matched.
type LookupResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// --- Tool Declarations ---

func createRememberTool(h *Handler) (tool.Tool, error) {
	handler := func(ctx tool.Context, args RememberArgs) (RememberResult, error) {
		return h.Remember(ctx, args), nil
	}

	return functiontool.New(functiontool.Config{
		Name:        RememberToolName,
		Description: "Save the important parts of this conversation as a long-term memory. Use it after solving a problem or making a decision worth keeping.",
	}, handler)
}

func createRecallTool(h *Handler) (tool.Tool, error) {
	handler := func(ctx tool.Context, args RecallArgs) (LookupResult, error) {
		return h.Recall(ctx, args), nil
	}

	return functiontool.New(functiontool.Config{
		Name:        RecallToolName,
		Description: "Find past memories that are semantically similar to the query. Use it before tackling a problem that may have come up before.",
	}, handler)
}

func createSearchTool(h *Handler) (tool.Tool, error) {
	handler := func(ctx tool.Context, args SearchArgs) (LookupResult, error) {
		return h.Search(ctx, args), nil
	}

	return functiontool.New(functiontool.Config{
		Name:        SearchToolName,
		Description: "Keyword search over past memories. Matches every word, ranking heading matches above summary and context matches.",
	}, handler)
}

// BuildTools creates all agent tools with the given configuration.
func BuildTools(cfg ToolsConfig) ([]tool.Tool, error) {
	if cfg.Service == nil {
		return nil, errors.New("memory service is required")
	}
	h := NewHandler(cfg.Service)

	var tools []tool.Tool
	for _, create := range []struct {
		name string
		fn   func(*Handler) (tool.Tool, error)
	}{
		{RememberToolName, createRememberTool},
		{RecallToolName, createRecallTool},
		{SearchToolName, createSearchTool},
	} {
		t, err := create.fn(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tool: %w", create.name, err)
		}
		tools = append(tools, t)
	}

	return tools, nil
}
