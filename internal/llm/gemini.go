package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Gemini summarizes and embeds through the Google GenAI API.
type Gemini struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	dimension      int
}

// GeminiConfig selects models and the embedding size.
type GeminiConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Dimension      int
	// BaseURL overrides the API endpoint; empty means the public endpoint.
	BaseURL string
}

// NewGemini creates a GenAI client for the Gemini API backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{
		client:         client,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		dimension:      cfg.Dimension,
	}, nil
}

// Summarize asks the chat model for a heading and summary of the chat log.
func (g *Gemini) Summarize(ctx context.Context, chatLog []string, chatContext string) (string, string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel,
		genai.Text(buildUserPrompt(chatLog, chatContext)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.3),
		})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate summary: %w", err)
	}

	reply := resp.Text()
	if reply == "" {
		return "", "", errors.New("model returned an empty summary")
	}
	heading, summary := ParseSummary(reply)
	return heading, summary, nil
}

// Embed generates an embedding vector for the given text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	var cfg *genai.EmbedContentConfig
	if g.dimension > 0 {
		cfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(int32(g.dimension))}
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}

	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("no embedding returned")
	}

	return resp.Embeddings[0].Values, nil
}

// Ensure Gemini implements both interfaces
var (
	_ Summarizer = (*Gemini)(nil)
	_ Embedder   = (*Gemini)(nil)
)
