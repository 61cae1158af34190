// Package service runs the write pipeline and the retrieval engine on top of
// a memory.Store. Transports (MCP, HTTP, CLI, ADK) are thin adapters over it.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/llm"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
)

// Options tunes the pipeline. Zero values fall back to DefaultOptions.
type Options struct {
	MaxChatLength    int
	SummarizeTimeout time.Duration
	EmbedTimeout     time.Duration
	Retries          int
	RetryBackoff     time.Duration
	DefaultLimit     int
	DefaultThreshold float64
	Logger           *zap.Logger
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		MaxChatLength:    50000,
		SummarizeTimeout: 120 * time.Second,
		EmbedTimeout:     60 * time.Second,
		Retries:          2,
		RetryBackoff:     500 * time.Millisecond,
		DefaultLimit:     memory.DefaultLimit,
		DefaultThreshold: memory.DefaultThreshold,
	}
}

// Service is the entry point for remembering and recalling memories.
// The summarizer and embedder may be nil for read-only use; operations that
// need them then fail with the matching error kind.
type Service struct {
	store      memory.Store
	summarizer llm.Summarizer
	embedder   llm.Embedder
	opts       Options
	log        *zap.Logger
}

// New creates a service. Retries of 0 are honoured; other zero fields take
// their defaults.
func New(store memory.Store, summarizer llm.Summarizer, embedder llm.Embedder, opts Options) *Service {
	d := DefaultOptions()
	if opts.MaxChatLength <= 0 {
		opts.MaxChatLength = d.MaxChatLength
	}
	if opts.SummarizeTimeout <= 0 {
		opts.SummarizeTimeout = d.SummarizeTimeout
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = d.EmbedTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = d.RetryBackoff
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = d.DefaultLimit
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		store:      store,
		summarizer: summarizer,
		embedder:   embedder,
		opts:       opts,
		log:        log,
	}
}

// Store returns the underlying store.
func (s *Service) Store() memory.Store {
	return s.store
}

// RememberRequest is the input of the write pipeline.
type RememberRequest struct {
	ChatLog    []string                   `json:"chat_log"`
	Context    string                     `json:"context,omitempty"`
	Tags       []string                   `json:"tags,omitempty"`
	Metadata   map[string]json.RawMessage `json:"metadata,omitempty"`
	Source     string                     `json:"source,omitempty"`
	Importance *float64                   `json:"importance,omitempty"`
}

// RememberResult identifies the stored memory.
type RememberResult struct {
	MemoryID string `json:"memory_id"`
	Heading  string `json:"heading"`
	Summary  string `json:"summary"`
}

// Remember summarizes a chat log, embeds the summary and stores it with its
// tags and metadata in one transaction. Model calls are retried; the store
// write is not.
func (s *Service) Remember(ctx context.Context, req RememberRequest) (*RememberResult, error) {
	chatLog, err := s.validateRemember(req)
	if err != nil {
		return nil, err
	}
	if s.summarizer == nil {
		return nil, fmt.Errorf("%w: no summarizer configured", memory.ErrSummarization)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", memory.ErrEmbedding)
	}

	s.log.Debug("summarizing chat", zap.Int("lines", len(chatLog)))
	var heading, summary string
	err = s.retry(ctx, "summarize", s.opts.SummarizeTimeout, func(ctx context.Context) error {
		h, sum, err := s.summarizer.Summarize(ctx, chatLog, req.Context)
		if err != nil {
			return err
		}
		h, sum = strings.TrimSpace(h), strings.TrimSpace(sum)
		if h == "" || sum == "" {
			return errors.New("model returned an empty heading or summary")
		}
		heading, summary = h, sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", memory.ErrSummarization, err)
	}

	embedding, err := s.embed(ctx, EmbeddingText(heading, summary))
	if err != nil {
		return nil, err
	}

	id, err := s.store.CreateMemoryWithAttachments(ctx, memory.NewMemory{
		Heading:    heading,
		Summary:    summary,
		Embedding:  embedding,
		Context:    req.Context,
		Source:     req.Source,
		Importance: req.Importance,
	}, req.Tags, req.Metadata)
	if err != nil {
		return nil, err
	}

	s.log.Info("memory stored",
		zap.String("id", id),
		zap.String("heading", heading),
		zap.Int("tags", len(req.Tags)),
	)
	return &RememberResult{MemoryID: id, Heading: heading, Summary: summary}, nil
}

// EmbeddingText is the text a memory's embedding is computed from.
func EmbeddingText(heading, summary string) string {
	return heading + "\n\n" + summary
}

// validateRemember drops blank lines and rejects input the store would
// refuse, before any model is called.
func (s *Service) validateRemember(req RememberRequest) ([]string, error) {
	chatLog := make([]string, 0, len(req.ChatLog))
	total := 0
	for _, line := range req.ChatLog {
		if strings.TrimSpace(line) == "" {
			continue
		}
		chatLog = append(chatLog, line)
		total += utf8.RuneCountInString(line)
	}
	if len(chatLog) == 0 {
		return nil, fmt.Errorf("%w: chat log is empty", memory.ErrValidation)
	}
	if total > s.opts.MaxChatLength {
		return nil, fmt.Errorf("%w: chat log is %d characters, limit is %d", memory.ErrValidation, total, s.opts.MaxChatLength)
	}

	if req.Importance != nil && !(*req.Importance >= 0 && *req.Importance <= 1) {
		return nil, fmt.Errorf("%w: importance must be within [0, 1], got %v", memory.ErrValidation, *req.Importance)
	}
	for _, tag := range req.Tags {
		if strings.TrimSpace(tag) == "" {
			return nil, fmt.Errorf("%w: tag must not be blank", memory.ErrValidation)
		}
	}
	for key, value := range req.Metadata {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: metadata key must not be blank", memory.ErrValidation)
		}
		if !json.Valid(value) {
			return nil, fmt.Errorf("%w: metadata %q is not valid JSON", memory.ErrValidation, key)
		}
	}
	return chatLog, nil
}

// embed calls the embedder with retries and checks the vector length.
func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", memory.ErrEmbedding)
	}

	var vec []float32
	err := s.retry(ctx, "embed", s.opts.EmbedTimeout, func(ctx context.Context) error {
		v, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", memory.ErrEmbedding, err)
	}
	if dim := s.store.Dimension(); len(vec) != dim {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, store expects %d", memory.ErrEmbedding, len(vec), dim)
	}
	return vec, nil
}

// retry runs fn with a per-attempt timeout, doubling the pause between
// attempts. It gives up early once ctx is done.
func (s *Service) retry(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.opts.Retries; attempt++ {
		if attempt > 0 {
			wait := s.opts.RetryBackoff << (attempt - 1)
			s.log.Warn("retrying model call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(err),
			)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
