package tools

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/llm"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

const testDim = 3

// MockEmbedder puts texts mentioning "deadlock" on one axis and everything
// else on another.
type MockEmbedder struct {
	err error
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if strings.Contains(strings.ToLower(text), "deadlock") {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 0, 1}, nil
}

// mockSummarizer uses the first chat line as heading and joins the rest.
var mockSummarizer = llm.SummarizerFunc(func(ctx context.Context, chatLog []string, chatContext string) (string, string, error) {
	summary := chatLog[0]
	if len(chatLog) > 1 {
		summary = strings.Join(chatLog[1:], "\n")
	}
	return chatLog[0], summary, nil
})

func newTestService(t *testing.T, emb llm.Embedder) *service.Service {
	t.Helper()
	ctx := context.Background()
	store, err := memory.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "tools.db"), testDim, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InitSchema(ctx); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	opts := service.DefaultOptions()
	opts.Retries = 0
	return service.New(store, mockSummarizer, emb, opts)
}

func intPtr(v int) *int { return &v }

func TestBuildTools(t *testing.T) {
	tools, err := BuildTools(ToolsConfig{Service: newTestService(t, &MockEmbedder{})})
	if err != nil {
		t.Fatalf("Failed to build tools: %v", err)
	}

	want := []string{RememberToolName, RecallToolName, SearchToolName}
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(tools))
	}
	for i, tool := range tools {
		if tool.Name() != want[i] {
			t.Errorf("tool %d name = %q, want %q", i, tool.Name(), want[i])
		}
	}

	if _, err := BuildTools(ToolsConfig{}); err == nil {
		t.Error("expected an error without a service")
	}
}

func TestHandler_RememberThenLookup(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(newTestService(t, &MockEmbedder{}))

	saved := h.Remember(ctx, RememberArgs{
		ChatLog: []string{"Worker pool deadlock", "Two goroutines waited on each other's channel."},
		Tags:    []string{"concurrency"},
	})
	if !saved.Success || saved.Data == nil || saved.Data.MemoryID == "" {
		t.Fatalf("expected remember to succeed, got %+v", saved)
	}

	recalled := h.Recall(ctx, RecallArgs{Query: "deadlock in tests"})
	if !recalled.Success {
		t.Fatalf("expected recall to succeed, got %+v", recalled)
	}
	items, ok := recalled.Data.([]MemoryItem)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one memory item, got %#v", recalled.Data)
	}
	if items[0].ID != saved.Data.MemoryID || items[0].Score != "100.00%" {
		t.Errorf("unexpected recall item: %+v", items[0])
	}
	if len(items[0].Tags) != 1 || items[0].Tags[0] != "concurrency" {
		t.Errorf("expected tags on item, got %v", items[0].Tags)
	}

	searched := h.Search(ctx, SearchArgs{Query: "goroutines channel"})
	items, ok = searched.Data.([]MemoryItem)
	if !searched.Success || !ok || len(items) != 1 {
		t.Fatalf("expected one search hit, got %+v", searched)
	}
}

func TestHandler_NoMatches(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(newTestService(t, &MockEmbedder{}))

	if res := h.Recall(ctx, RecallArgs{Query: "deadlock"}); !res.Success || res.Data != noMemoriesMessage {
		t.Errorf("expected empty recall message, got %+v", res)
	}
	if res := h.Search(ctx, SearchArgs{Query: "deadlock"}); !res.Success || res.Data != noMemoriesMessage {
		t.Errorf("expected empty search message, got %+v", res)
	}
}

func TestHandler_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		run     func(h *Handler) (bool, string)
		wantErr string
	}{
		{
			name: "remember empty chat",
			run: func(h *Handler) (bool, string) {
				r := h.Remember(ctx, RememberArgs{})
				return r.Success, r.Error
			},
			wantErr: "(validation)",
		},
		{
			name: "recall without query",
			run: func(h *Handler) (bool, string) {
				r := h.Recall(ctx, RecallArgs{})
				return r.Success, r.Error
			},
			wantErr: "query is required",
		},
		{
			name: "recall negative limit",
			run: func(h *Handler) (bool, string) {
				r := h.Recall(ctx, RecallArgs{Query: "x", Limit: intPtr(-1)})
				return r.Success, r.Error
			},
			wantErr: "(validation)",
		},
		{
			name: "recall explicit zero limit",
			run: func(h *Handler) (bool, string) {
				r := h.Recall(ctx, RecallArgs{Query: "x", Limit: intPtr(0)})
				return r.Success, r.Error
			},
			wantErr: "(validation)",
		},
		{
			name: "search explicit zero limit",
			run: func(h *Handler) (bool, string) {
				r := h.Search(ctx, SearchArgs{Query: "x", Limit: intPtr(0)})
				return r.Success, r.Error
			},
			wantErr: "(validation)",
		},
		{
			name: "search without query",
			run: func(h *Handler) (bool, string) {
				r := h.Search(ctx, SearchArgs{})
				return r.Success, r.Error
			},
			wantErr: "query is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newTestService(t, &MockEmbedder{}))
			ok, msg := tt.run(h)
			if ok {
				t.Fatal("expected failure")
			}
			if !strings.Contains(msg, tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.wantErr)
			}
		})
	}
}

func TestHandler_EmbeddingFailure(t *testing.T) {
	h := NewHandler(newTestService(t, &MockEmbedder{err: errors.New("quota exceeded")}))

	res := h.Recall(context.Background(), RecallArgs{Query: "deadlock"})
	if res.Success || !strings.Contains(res.Error, "(embedding)") || !strings.Contains(res.Error, "quota exceeded") {
		t.Errorf("expected embedding failure in result, got %+v", res)
	}
}
