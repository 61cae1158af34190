package memory

import (
	"fmt"
	"strings"
	"unicode"
)

// lexicalField describes how one memory column contributes to text relevance.
// Label is the Postgres tsvector weight class and BM25 the SQLite FTS5
// column weight; both encode the same heading > summary > context order.
type lexicalField struct {
	Column string
	Label  byte
	BM25   float64
}

var lexicalFields = []lexicalField{
	{Column: "heading", Label: 'A', BM25: 10.0},
	{Column: "summary", Label: 'B', BM25: 4.0},
	{Column: "context", Label: 'C', BM25: 1.0},
}

// tsvectorExpr is the generated-column expression of the Postgres lexical
// representation.
func tsvectorExpr() string {
	parts := make([]string, len(lexicalFields))
	for i, f := range lexicalFields {
		parts[i] = fmt.Sprintf("setweight(to_tsvector('english', coalesce(%s, '')), '%c')", f.Column, f.Label)
	}
	return strings.Join(parts, " || ")
}

// bm25Expr is the FTS5 ranking call with per-column weights.
func bm25Expr(table string) string {
	weights := make([]string, len(lexicalFields))
	for i, f := range lexicalFields {
		weights[i] = fmt.Sprintf("%.1f", f.BM25)
	}
	return fmt.Sprintf("bm25(%s, %s)", table, strings.Join(weights, ", "))
}

// Tokenize splits text into lower-cased terms on any rune that is not a
// letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// ftsMatchQuery quotes every term so FTS5 operators in user input are taken
// literally; space-separated phrases are implicitly AND-ed.
func ftsMatchQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// LexicalDocument returns the weighted lexical representation of a memory:
// every term mapped to the highest weight class of any field it appears in.
// It is the Go mirror of what both backends index.
func LexicalDocument(heading, summary, context string) map[string]byte {
	doc := make(map[string]byte)
	values := []string{heading, summary, context}
	for i, f := range lexicalFields {
		for _, term := range Tokenize(values[i]) {
			if cur, ok := doc[term]; !ok || f.Label < cur {
				doc[term] = f.Label
			}
		}
	}
	return doc
}

// Snippet shortens s to at most n runes for listings, marking the cut with
// "...". Multi-byte characters are never split.
func Snippet(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
