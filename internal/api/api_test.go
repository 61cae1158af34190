package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/llm"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

const testDim = 3

// postgresEmbedder puts texts mentioning postgres on the first axis and
// everything else on the last.
var postgresEmbedder = llm.EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "postgres") {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 0, 1}, nil
})

var firstLineSummarizer = llm.SummarizerFunc(func(ctx context.Context, chatLog []string, chatContext string) (string, string, error) {
	return chatLog[0], strings.Join(chatLog, " "), nil
})

func newTestServer(t *testing.T, embedder llm.Embedder) *Server {
	t.Helper()
	ctx := context.Background()
	store, err := memory.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "api.db"), testDim, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InitSchema(ctx); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	opts := service.DefaultOptions()
	opts.RetryBackoff = time.Millisecond
	opts.Retries = 0
	svc := service.New(store, firstLineSummarizer, embedder, opts)

	server, err := NewServer(Config{ListenAddr: ":0"}, svc, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return server
}

// do sends a request and decodes the JSON response into out when out is non-nil.
func do(t *testing.T, s *Server, method, path, body string, out any) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestPing(t *testing.T) {
	s := newTestServer(t, postgresEmbedder)

	var body string
	if status := do(t, s, http.MethodGet, "/ping", "", &body); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body != "pong" {
		t.Errorf("expected pong, got %q", body)
	}
}

func TestNewServerRequiresService(t *testing.T) {
	if _, err := NewServer(Config{}, nil, nil); err == nil {
		t.Fatal("expected an error without a service")
	}
}

func TestMemoryLifecycle(t *testing.T) {
	s := newTestServer(t, postgresEmbedder)

	var created service.RememberResult
	status := do(t, s, http.MethodPost, "/memories",
		`{"chat_log":["Postgres pool tuning","raised max conns to 20"],"context":"repo: billing","tags":["perf"]}`, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if created.MemoryID == "" || created.Heading != "Postgres pool tuning" {
		t.Fatalf("unexpected remember result: %+v", created)
	}
	path := "/memories/" + created.MemoryID

	if status := do(t, s, http.MethodPost, path+"/tags", `{"tag":"db"}`, nil); status != http.StatusCreated {
		t.Errorf("add tag: expected 201, got %d", status)
	}
	if status := do(t, s, http.MethodPost, path+"/metadata", `{"key":"pr","value":{"number":412}}`, nil); status != http.StatusCreated {
		t.Errorf("set metadata: expected 201, got %d", status)
	}

	var updated MemoryResponse
	if status := do(t, s, http.MethodPatch, path, `{"importance":0.9}`, &updated); status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", status)
	}
	if updated.Importance != 0.9 {
		t.Errorf("expected importance 0.9, got %v", updated.Importance)
	}

	var got MemoryResponse
	if status := do(t, s, http.MethodGet, path, "", &got); status != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", status)
	}
	if diff := cmp.Diff([]string{"db", "perf"}, got.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	var pr map[string]int
	if err := json.Unmarshal(got.Metadata["pr"], &pr); err != nil || pr["number"] != 412 {
		t.Errorf("unexpected metadata: %s (%v)", got.Metadata["pr"], err)
	}

	var recalled service.RecallResult
	if status := do(t, s, http.MethodPost, "/recall", `{"query":"postgres connections","tag":"db"}`, &recalled); status != http.StatusOK {
		t.Fatalf("recall: expected 200, got %d", status)
	}
	if len(recalled.Results) != 1 || recalled.Results[0].ID != created.MemoryID {
		t.Fatalf("unexpected recall results: %+v", recalled.Results)
	}
	if recalled.Results[0].Similarity < 0.99 {
		t.Errorf("expected similarity near 1, got %v", recalled.Results[0].Similarity)
	}

	for _, q := range []string{"/search?q=pool", "/search?q=pool&hybrid=true&limit=5"} {
		var found service.SearchResult
		if status := do(t, s, http.MethodGet, q, "", &found); status != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", q, status)
		}
		if len(found.Results) != 1 || found.Results[0].ID != created.MemoryID {
			t.Errorf("%s: unexpected results: %+v", q, found.Results)
		}
	}

	var recent []MemoryResponse
	if status := do(t, s, http.MethodGet, "/recent?limit=3", "", &recent); status != http.StatusOK {
		t.Fatalf("recent: expected 200, got %d", status)
	}
	if len(recent) != 1 {
		t.Errorf("expected one recent memory, got %d", len(recent))
	}

	var stats StatsResponse
	if status := do(t, s, http.MethodGet, "/stats", "", &stats); status != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", status)
	}
	if stats.TotalMemories != 1 || stats.TotalTags != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	if status := do(t, s, http.MethodDelete, path, "", nil); status != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", status)
	}
	var missing ErrorResponse
	if status := do(t, s, http.MethodGet, path, "", &missing); status != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", status)
	}
	if missing.Kind != "not_found" {
		t.Errorf("expected not_found kind, got %q", missing.Kind)
	}
}

func TestErrorResponses(t *testing.T) {
	s := newTestServer(t, postgresEmbedder)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantKind   string
	}{
		{"empty chat log", http.MethodPost, "/memories", `{"chat_log":[]}`, http.StatusBadRequest, "validation"},
		{"malformed body", http.MethodPost, "/memories", `{"chat_log":`, http.StatusBadRequest, "validation"},
		{"duplicate tags", http.MethodPost, "/memories", `{"chat_log":["a"],"tags":["x","x"]}`, http.StatusConflict, "write_failed"},
		{"unknown memory", http.MethodGet, "/memories/not-a-uuid", "", http.StatusNotFound, "not_found"},
		{"delete unknown", http.MethodDelete, "/memories/3f1c0a52-8d0e-4c8a-9a55-1f2b7c9d0e11", "", http.StatusNotFound, "not_found"},
		{"zero recall limit", http.MethodPost, "/recall", `{"query":"x","limit":0}`, http.StatusBadRequest, "validation"},
		{"bad recall date", http.MethodPost, "/recall", `{"query":"x","created_after":"yesterday"}`, http.StatusBadRequest, "validation"},
		{"non-numeric limit", http.MethodGet, "/search?q=x&limit=ten", "", http.StatusBadRequest, "validation"},
		{"blank search", http.MethodGet, "/search?q=", "", http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			status := do(t, s, tt.method, tt.path, tt.body, &resp)
			if status != tt.wantStatus {
				t.Errorf("expected %d, got %d (%s)", tt.wantStatus, status, resp.Error)
			}
			if resp.Kind != tt.wantKind {
				t.Errorf("expected kind %q, got %q", tt.wantKind, resp.Kind)
			}
		})
	}
}

func TestRememberEmbeddingFailure(t *testing.T) {
	failing := llm.EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("quota exceeded")
	})
	s := newTestServer(t, failing)

	var resp ErrorResponse
	status := do(t, s, http.MethodPost, "/memories", `{"chat_log":["hello"]}`, &resp)
	if status != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", status)
	}
	if resp.Kind != "embedding" {
		t.Errorf("expected embedding kind, got %q", resp.Kind)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: limit", memory.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: id", memory.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: %w", memory.ErrWriteFailed, memory.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: timeout", memory.ErrSummarization), http.StatusBadGateway},
		{fmt.Errorf("%w: timeout", memory.ErrEmbedding), http.StatusBadGateway},
		{fmt.Errorf("%w: %w", memory.ErrWriteFailed, memory.ErrStorage), http.StatusServiceUnavailable},
		{memory.ErrStorage, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
