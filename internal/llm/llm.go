// Package llm wraps the language-model calls the memory pipeline consumes:
// turning a chat log into a heading and summary, and turning text into an
// embedding vector.
package llm

import "context"

// Summarizer condenses a chat log into a short heading and a detailed summary.
type Summarizer interface {
	Summarize(ctx context.Context, chatLog []string, chatContext string) (heading, summary string, err error)
}

// Embedder provides text embedding capability.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, chatLog []string, chatContext string) (string, string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, chatLog []string, chatContext string) (string, string, error) {
	return f(ctx, chatLog, chatContext)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
