package memory

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// TestVectorEncodeDecode tests the vector encoding and decoding functions.
func TestVectorEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{name: "nil vector", vector: nil},
		{name: "empty vector", vector: []float32{}},
		{name: "single element", vector: []float32{3.14159}},
		{name: "multiple elements", vector: []float32{1.0, 2.0, 3.0, -4.5, 0.0}},
		{name: "1536 dimension vector", vector: makeVector(DefaultDimension)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := decodeVector(encodeVector(tt.vector))

			if len(tt.vector) == 0 {
				if len(decoded) != 0 {
					t.Errorf("expected empty vector, got length %d", len(decoded))
				}
				return
			}
			if diff := cmp.Diff(tt.vector, decoded); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeVector_RejectsTruncatedBlob(t *testing.T) {
	if got := decodeVector([]byte{1, 2, 3}); got != nil {
		t.Errorf("expected nil for a blob that is not a multiple of 4 bytes, got %v", got)
	}
}

// TestCosineSimilarity tests the cosine similarity function.
func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{name: "identical vectors", a: []float32{1.0, 2.0, 3.0}, b: []float32{1.0, 2.0, 3.0}, expected: 1.0},
		{name: "scaled vectors", a: []float32{1.0, 2.0, 3.0}, b: []float32{2.0, 4.0, 6.0}, expected: 1.0},
		{name: "opposite vectors", a: []float32{1.0, 2.0, 3.0}, b: []float32{-1.0, -2.0, -3.0}, expected: -1.0},
		{name: "orthogonal vectors", a: []float32{1.0, 0.0}, b: []float32{0.0, 1.0}, expected: 0.0},
		{name: "different length vectors", a: []float32{1.0, 2.0}, b: []float32{1.0, 2.0, 3.0}, expected: 0.0},
		{name: "empty vectors", a: []float32{}, b: []float32{}, expected: 0.0},
		{name: "zero vector", a: []float32{0.0, 0.0, 0.0}, b: []float32{1.0, 2.0, 3.0}, expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CosineSimilarity(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 1e-6 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestCosineSimilarity_SelfIsExactlyOne(t *testing.T) {
	for _, v := range [][]float32{
		makeVector(DefaultDimension),
		{0.1, 0.2, 0.3, 0.4},
		{-3.5, 1e-3, 7, 0},
	} {
		if got := CosineSimilarity(v, v); got != 1 {
			t.Errorf("expected self similarity of exactly 1, got %.17g", got)
		}
	}
}

func TestCompareRanked(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	hit := func(id string, score float64, created time.Time) ScoredMemory {
		return ScoredMemory{Memory: Memory{ID: id, CreatedAt: created}, Score: score}
	}

	hits := []ScoredMemory{
		hit("c", 0.5, base),
		hit("b", 0.9, base),
		hit("a", 0.5, base),
		hit("d", 0.5, base.Add(time.Minute)),
	}
	sortRanked(hits)

	var got []string
	for _, h := range hits {
		got = append(got, h.ID)
	}
	want := []string{"b", "d", "a", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
}

// makeVector creates a deterministic test vector.
func makeVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i+1) / float32(dim)
	}
	return v
}
