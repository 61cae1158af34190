package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
)

type fixture struct {
	svc                 *Service
	emb                 *keywordEmbedder
	pool, wal, eviction string
}

// newFixture stores three memories whose vectors are, in order,
// postgres, postgres+sqlite and cache.
func newFixture(t *testing.T) fixture {
	t.Helper()
	svc, emb := newTestService(t)
	return fixture{
		svc:      svc,
		emb:      emb,
		pool:     remember(t, svc, "Postgres pool tuning", "Raised max conns to 20"),
		wal:      remember(t, svc, "SQLite WAL mode", "Plan a postgres migration later"),
		eviction: remember(t, svc, "Cache eviction", "LRU replaced by ristretto"),
	}
}

func recallIDs(res *RecallResult) []string {
	out := []string{}
	for _, h := range res.Results {
		out = append(out, h.ID)
	}
	return out
}

func hitIDs(res *SearchResult) []string {
	out := []string{}
	for _, h := range res.Results {
		out = append(out, h.ID)
	}
	return out
}

func TestRecall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.svc.Tag(ctx, f.wal, "migration"); err != nil {
		t.Fatalf("failed to tag: %v", err)
	}
	hourAgo := time.Now().Add(-time.Hour)
	inAnHour := time.Now().Add(time.Hour)

	tests := []struct {
		name string
		req  RecallRequest
		want []string
	}{
		{name: "defaults", req: RecallRequest{Query: "postgres"}, want: []string{f.pool, f.wal}},
		{name: "threshold", req: RecallRequest{Query: "postgres", SimilarityThreshold: floatPtr(0.8)}, want: []string{f.pool}},
		{name: "zero threshold keeps orthogonal", req: RecallRequest{Query: "postgres", SimilarityThreshold: floatPtr(0)}, want: []string{f.pool, f.wal, f.eviction}},
		{name: "threshold above one", req: RecallRequest{Query: "postgres", SimilarityThreshold: floatPtr(1.1)}, want: []string{}},
		{name: "limit", req: RecallRequest{Query: "postgres", Limit: intPtr(1)}, want: []string{f.pool}},
		{name: "tag", req: RecallRequest{Query: "postgres", Tag: "migration"}, want: []string{f.wal}},
		{name: "source", req: RecallRequest{Query: "postgres", Source: "docs"}, want: []string{}},
		{name: "min importance", req: RecallRequest{Query: "postgres", MinImportance: 0.6}, want: []string{}},
		{name: "created after", req: RecallRequest{Query: "postgres", DateFilter: DateFilter{After: &hourAgo}}, want: []string{f.pool, f.wal}},
		{name: "created after now", req: RecallRequest{Query: "postgres", DateFilter: DateFilter{After: &inAnHour}}, want: []string{}},
		{name: "created before", req: RecallRequest{Query: "postgres", DateFilter: DateFilter{Before: &hourAgo}}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Recall(ctx, tt.req)
			if err != nil {
				t.Fatalf("failed to recall: %v", err)
			}
			if diff := cmp.Diff(tt.want, recallIDs(res)); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
			if res.Results == nil {
				t.Error("results must be an empty slice, not nil")
			}
			if res.Query != tt.req.Query {
				t.Errorf("query echo = %q, want %q", res.Query, tt.req.Query)
			}
		})
	}
}

func TestRecall_Scores(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Recall(context.Background(), RecallRequest{Query: "postgres"})
	if err != nil {
		t.Fatalf("failed to recall: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res.Results))
	}
	if got := res.Results[0].Similarity; math.Abs(got-1) > 1e-9 {
		t.Errorf("self-aligned similarity = %v, want 1", got)
	}
	if got := res.Results[1].Similarity; math.Abs(got-1/math.Sqrt2) > 1e-6 {
		t.Errorf("similarity = %v, want %v", got, 1/math.Sqrt2)
	}
	if res.Results[0].Tags == nil || res.Results[0].CreatedAt.IsZero() {
		t.Errorf("expected tags and creation time on results: %+v", res.Results[0])
	}
}

func TestRecall_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	before := f.emb.calls.Load()

	if _, err := f.svc.Recall(ctx, RecallRequest{Query: "postgres", Limit: intPtr(0)}); !errors.Is(err, memory.ErrValidation) {
		t.Errorf("expected validation error for limit 0, got %v", err)
	}
	if f.emb.calls.Load() != before {
		t.Error("invalid limit must be rejected before embedding")
	}

	after, beforeT := time.Now(), time.Now().Add(-time.Hour)
	if _, err := f.svc.Recall(ctx, RecallRequest{Query: "postgres", DateFilter: DateFilter{After: &after, Before: &beforeT}}); !errors.Is(err, memory.ErrValidation) {
		t.Errorf("expected validation error for an inverted range, got %v", err)
	}

	f.emb.err = errors.New("quota")
	if _, err := f.svc.Recall(ctx, RecallRequest{Query: "postgres"}); !errors.Is(err, memory.ErrEmbedding) {
		t.Errorf("expected embedding error, got %v", err)
	}
}

func TestRecall_BlankQueryListsRecent(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Recall(context.Background(), RecallRequest{Query: "  "})
	if err != nil {
		t.Fatalf("failed to recall: %v", err)
	}
	if len(res.Results) != 3 {
		t.Fatalf("expected all 3 memories, got %d", len(res.Results))
	}
	for _, h := range res.Results {
		if h.Similarity != 0 {
			t.Errorf("recent listing similarity = %v, want 0", h.Similarity)
		}
	}
}

func TestRecall_BlankQueryAppliesFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.svc.Tag(ctx, f.wal, "migration"); err != nil {
		t.Fatalf("failed to tag: %v", err)
	}
	hourAgo := time.Now().Add(-time.Hour)
	tomorrow := time.Now().Add(24 * time.Hour)
	before := f.emb.calls.Load()

	tests := []struct {
		name string
		req  RecallRequest
		want []string
	}{
		{name: "tag", req: RecallRequest{Tag: "migration"}, want: []string{f.wal}},
		{name: "unknown tag", req: RecallRequest{Tag: "no-such-tag"}, want: []string{}},
		{name: "source", req: RecallRequest{Source: "docs"}, want: []string{}},
		{name: "min importance", req: RecallRequest{MinImportance: 0.99}, want: []string{}},
		{name: "created after tomorrow", req: RecallRequest{DateFilter: DateFilter{After: &tomorrow}}, want: []string{}},
		{name: "created before an hour ago", req: RecallRequest{DateFilter: DateFilter{Before: &hourAgo}}, want: []string{}},
		{name: "tag within window", req: RecallRequest{Tag: "migration", DateFilter: DateFilter{After: &hourAgo, Before: &tomorrow}}, want: []string{f.wal}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Recall(ctx, tt.req)
			if err != nil {
				t.Fatalf("failed to recall: %v", err)
			}
			if diff := cmp.Diff(tt.want, recallIDs(res)); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if f.emb.calls.Load() != before {
		t.Error("a blank query must not be embedded")
	}
	if _, err := f.svc.Recall(ctx, RecallRequest{DateFilter: DateFilter{After: &tomorrow, Before: &hourAgo}}); !errors.Is(err, memory.ErrValidation) {
		t.Errorf("expected validation error for an inverted range, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Search(ctx, "postgres", nil)
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	// Heading match outranks summary match.
	if diff := cmp.Diff([]string{f.pool, f.wal}, hitIDs(res)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	res, err = f.svc.Search(ctx, "ristretto", intPtr(5))
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if diff := cmp.Diff([]string{f.eviction}, hitIDs(res)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.svc.Search(ctx, " ", nil); !errors.Is(err, memory.ErrValidation) {
		t.Errorf("expected validation error for a blank query, got %v", err)
	}
	if _, err := f.svc.Search(ctx, "postgres", intPtr(0)); !errors.Is(err, memory.ErrValidation) {
		t.Errorf("expected validation error for limit 0, got %v", err)
	}
}

func TestHybrid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Hybrid(ctx, "postgres", nil)
	if err != nil {
		t.Fatalf("failed to run hybrid search: %v", err)
	}
	if diff := cmp.Diff([]string{f.pool, f.wal}, hitIDs(res)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if want := 2.0 / 61; math.Abs(res.Results[0].Score-want) > 1e-12 {
		t.Errorf("fused score = %v, want %v", res.Results[0].Score, want)
	}

	if _, err := f.svc.Hybrid(ctx, "", nil); !errors.Is(err, memory.ErrValidation) {
		t.Errorf("expected validation error for a blank query, got %v", err)
	}
	if _, err := f.svc.Hybrid(ctx, "postgres", intPtr(-1)); !errors.Is(err, memory.ErrValidation) {
		t.Errorf("expected validation error for a negative limit, got %v", err)
	}
}

func TestFuseRankings(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	hit := func(id string, age int) memory.ScoredMemory {
		return memory.ScoredMemory{Memory: memory.Memory{ID: id, CreatedAt: base.Add(-time.Duration(age) * time.Hour)}, Score: 99}
	}

	tests := []struct {
		name     string
		limit    int
		rankings [][]memory.ScoredMemory
		want     []string
	}{
		{
			name:     "shared hit wins",
			limit:    10,
			rankings: [][]memory.ScoredMemory{{hit("x", 0), hit("y", 0)}, {hit("y", 0), hit("z", 0)}},
			want:     []string{"y", "x", "z"},
		},
		{
			name:     "truncated",
			limit:    2,
			rankings: [][]memory.ScoredMemory{{hit("x", 0), hit("y", 0)}, {hit("y", 0), hit("z", 0)}},
			want:     []string{"y", "x"},
		},
		{
			name:     "equal scores prefer newer",
			limit:    10,
			rankings: [][]memory.ScoredMemory{{hit("old", 5)}, {hit("new", 1)}},
			want:     []string{"new", "old"},
		},
		{
			name:     "equal scores and times by id",
			limit:    10,
			rankings: [][]memory.ScoredMemory{{hit("b", 1)}, {hit("a", 1)}},
			want:     []string{"a", "b"},
		},
		{name: "empty", limit: 3, rankings: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fused := FuseRankings(tt.limit, tt.rankings...)
			got := []string{}
			for _, h := range fused {
				got = append(got, h.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	calls := f.emb.calls.Load()
	if err := f.svc.Update(ctx, f.pool, UpdateRequest{Importance: floatPtr(0.9)}); err != nil {
		t.Fatalf("failed to update importance: %v", err)
	}
	if f.emb.calls.Load() != calls {
		t.Error("importance-only update must not re-embed")
	}

	if err := f.svc.Update(ctx, f.pool, UpdateRequest{Heading: strPtr("SQLite busy timeout")}); err != nil {
		t.Fatalf("failed to update heading: %v", err)
	}
	res, err := f.svc.Recall(ctx, RecallRequest{Query: "sqlite"})
	if err != nil {
		t.Fatalf("failed to recall: %v", err)
	}
	if len(res.Results) == 0 || res.Results[0].ID != f.pool || res.Results[0].Heading != "SQLite busy timeout" {
		t.Errorf("expected the re-embedded memory first, got %+v", res.Results)
	}

	if err := f.svc.Update(ctx, f.pool, UpdateRequest{Summary: strPtr(" ")}); !errors.Is(err, memory.ErrValidation) {
		t.Errorf("expected validation error for a blank summary, got %v", err)
	}
	if err := f.svc.Update(ctx, uuid.NewString(), UpdateRequest{Heading: strPtr("x")}); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeleteAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	st, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	if st.TotalMemories != 3 {
		t.Errorf("total = %d, want 3", st.TotalMemories)
	}

	if err := f.svc.Delete(ctx, f.pool); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.pool); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.pool); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected second delete to report not found, got %v", err)
	}

	recent, err := f.svc.Recent(ctx, nil)
	if err != nil {
		t.Fatalf("failed to list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 remaining memories, got %d", len(recent))
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		upper   bool
		want    *time.Time
		wantErr bool
	}{
		{name: "empty", value: "", want: nil},
		{name: "rfc3339", value: "2025-06-01T10:30:00Z", want: timePtr(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC))},
		{name: "date lower", value: "2025-06-01", want: timePtr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))},
		{name: "date upper", value: "2025-06-01", upper: true, want: timePtr(time.Date(2025, 6, 1, 23, 59, 59, 999999999, time.UTC))},
		{name: "garbage", value: "last tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.value, tt.upper)
			if tt.wantErr {
				if !errors.Is(err, memory.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("date mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
