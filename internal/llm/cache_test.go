package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type countingEmbedder struct {
	calls map[string]int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls[text]++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{calls: map[string]int{}}

	cached, err := NewCachedEmbedder(inner, 100)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cached.Close()

	first, err := cached.Embed(ctx, "retry policy")
	if err != nil {
		t.Fatalf("failed to embed: %v", err)
	}
	cached.Wait()

	second, err := cached.Embed(ctx, "retry policy")
	if err != nil {
		t.Fatalf("failed to embed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached vector mismatch (-want +got):\n%s", diff)
	}
	if inner.calls["retry policy"] != 1 {
		t.Errorf("expected one upstream call, got %d", inner.calls["retry policy"])
	}

	// Mutating a returned vector must not poison the cache.
	second[0] = -1
	third, err := cached.Embed(ctx, "retry policy")
	if err != nil {
		t.Fatalf("failed to embed: %v", err)
	}
	if third[0] != first[0] {
		t.Errorf("expected cached copy to be unaffected, got %v", third)
	}

	if _, err := cached.Embed(ctx, "other"); err != nil {
		t.Fatalf("failed to embed: %v", err)
	}
	if inner.calls["other"] != 1 {
		t.Errorf("expected a miss for new text, got %d calls", inner.calls["other"])
	}
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	inner := &countingEmbedder{calls: map[string]int{}, err: boom}

	cached, err := NewCachedEmbedder(inner, 10)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cached.Close()

	for range 2 {
		if _, err := cached.Embed(ctx, "q"); !errors.Is(err, boom) {
			t.Fatalf("expected upstream error, got %v", err)
		}
		cached.Wait()
	}
	if inner.calls["q"] != 2 {
		t.Errorf("expected every failure to reach upstream, got %d calls", inner.calls["q"])
	}

	if _, err := NewCachedEmbedder(inner, 0); err == nil {
		t.Error("expected an error for a zero-size cache")
	}
}
