package memory

import (
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// memoryRow is a validated, defaulted NewMemory ready to be inserted.
type memoryRow struct {
	id         string
	heading    string
	summary    string
	embedding  []float32
	context    string
	source     string
	importance float64
	createdAt  time.Time
}

func newMemoryRow(m NewMemory, dim int, now time.Time) (memoryRow, error) {
	row := memoryRow{
		id:         uuid.NewString(),
		heading:    strings.TrimSpace(m.Heading),
		summary:    strings.TrimSpace(m.Summary),
		embedding:  m.Embedding,
		context:    m.Context,
		source:     strings.TrimSpace(m.Source),
		importance: DefaultImportance,
		createdAt:  now,
	}
	if row.heading == "" {
		return row, validationf("heading is required")
	}
	if row.summary == "" {
		return row, validationf("summary is required")
	}
	if err := validateEmbedding(row.embedding, dim); err != nil {
		return row, err
	}
	if row.source == "" {
		row.source = DefaultSource
	}
	if m.Importance != nil {
		row.importance = *m.Importance
	}
	if err := validateImportance(row.importance); err != nil {
		return row, err
	}
	return row, nil
}

func validateUpdate(u MemoryUpdate, dim int) error {
	if u.Heading != nil && strings.TrimSpace(*u.Heading) == "" {
		return validationf("heading cannot be blank")
	}
	if u.Summary != nil && strings.TrimSpace(*u.Summary) == "" {
		return validationf("summary cannot be blank")
	}
	if u.Source != nil && strings.TrimSpace(*u.Source) == "" {
		return validationf("source cannot be blank")
	}
	if u.Importance != nil {
		if err := validateImportance(*u.Importance); err != nil {
			return err
		}
	}
	if u.Embedding != nil {
		return validateEmbedding(u.Embedding, dim)
	}
	return nil
}

func validateEmbedding(v []float32, dim int) error {
	if len(v) != dim {
		return validationf("embedding has dimension %d, want %d", len(v), dim)
	}
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return validationf("embedding contains a non-finite value")
		}
	}
	return nil
}

func validateImportance(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return validationf("importance %v is outside [0, 1]", v)
	}
	return nil
}

func normalizeTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", validationf("tag is required")
	}
	return tag, nil
}

func validateMetadata(key string, value json.RawMessage) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", validationf("metadata key is required")
	}
	if len(value) == 0 || !json.Valid(value) {
		return "", validationf("metadata value for %q is not valid JSON", key)
	}
	return key, nil
}

func validateLimit(limit int) error {
	if limit <= 0 {
		return validationf("limit must be greater than zero, got %d", limit)
	}
	return nil
}

func validateFilter(f Filter) error {
	if math.IsNaN(f.MinImportance) {
		return validationf("min importance must be a number")
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return validationf("created-after %s is later than created-before %s",
			f.CreatedAfter.Format(time.RFC3339), f.CreatedBefore.Format(time.RFC3339))
	}
	return nil
}

func validateSimilarityQuery(q SimilarityQuery, dim int) error {
	if err := validateLimit(q.Limit); err != nil {
		return err
	}
	if math.IsNaN(q.Threshold) {
		return validationf("threshold must be a number")
	}
	if err := validateFilter(q.Filter); err != nil {
		return err
	}
	return validateEmbedding(q.Embedding, dim)
}

func validateRecentQuery(q RecentQuery) error {
	if err := validateLimit(q.Limit); err != nil {
		return err
	}
	return validateFilter(q.Filter)
}

func validateTextQuery(q TextQuery) ([]string, error) {
	if err := validateLimit(q.Limit); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, validationf("query is required")
	}
	terms := Tokenize(q.Query)
	if len(terms) == 0 {
		return nil, validationf("query %q contains no searchable terms", q.Query)
	}
	return terms, nil
}

// checkID rejects ids that cannot exist. Ids are UUIDs, so anything else is
// reported as missing rather than sent to the engine.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFoundf("memory %q", id)
	}
	return nil
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
