package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/config"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/llm"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/logger"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

// app holds what a command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   memory.Store
	svc     *service.Service
	closers []func()
}

// newModels connects the summarizer and embedder. Tests replace it.
var newModels = buildModels

// flagKeys maps global flags to configuration keys.
var flagKeys = map[string]string{
	"db":      "db.url",
	"db-type": "db.type",
	"debug":   "debug",
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding --%s: %w", flag, err)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openApp loads the configuration and opens the store. withModels also
// connects the language models; read-only commands run without them.
func openApp(cmd *cobra.Command, withModels bool) (*app, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger.New(cfg.Debug)}

	store, err := openStore(ctx, cfg, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, func() { _ = store.Close() })

	var (
		summarizer llm.Summarizer
		embedder   llm.Embedder
	)
	if withModels {
		var closeModels func()
		summarizer, embedder, closeModels, err = newModels(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, closeModels)
	}

	a.svc = service.New(store, summarizer, embedder, serviceOptions(cfg, a.logger))
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

func serviceOptions(cfg *config.Config, log *zap.Logger) service.Options {
	opts := service.DefaultOptions()
	opts.MaxChatLength = cfg.Pipeline.MaxChatLength
	opts.SummarizeTimeout = cfg.Pipeline.SummarizeTimeout
	opts.EmbedTimeout = cfg.Pipeline.EmbedTimeout
	opts.Retries = cfg.Pipeline.Retries
	opts.DefaultLimit = cfg.Recall.Limit
	opts.DefaultThreshold = cfg.Recall.Threshold
	opts.Logger = log
	return opts
}

// openStore connects to the configured backend and makes sure the schema exists.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (memory.Store, error) {
	var store memory.Store
	switch cfg.DB.Type {
	case config.DBPostgres:
		s, err := memory.NewPostgresStore(ctx, cfg.DB.URL, cfg.Embedding.Dimension, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store = s
	default:
		s, err := memory.NewSQLiteStore(ctx, cfg.DB.URL, cfg.Embedding.Dimension, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		store = s
	}

	if err := store.InitSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	log.Debug("store ready",
		zap.String("type", cfg.DB.Type),
		zap.Int("dimension", cfg.Embedding.Dimension),
	)
	return store, nil
}

// buildModels creates the Gemini client used for embeddings and, unless
// Anthropic is selected, for summaries too.
func buildModels(ctx context.Context, cfg *config.Config) (llm.Summarizer, llm.Embedder, func(), error) {
	if err := cfg.ValidateModels(); err != nil {
		return nil, nil, nil, err
	}

	gemini, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.Model,
		EmbeddingModel: cfg.Embedding.Model,
		Dimension:      cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	var summarizer llm.Summarizer = gemini
	if cfg.LLM.Provider == config.ProviderAnthropic {
		summarizer = llm.NewAnthropic(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	}

	var embedder llm.Embedder = gemini
	cleanup := func() {}
	if cfg.Cache.Embeddings > 0 {
		cached, err := llm.NewCachedEmbedder(gemini, cfg.Cache.Embeddings)
		if err != nil {
			return nil, nil, nil, err
		}
		embedder = cached
		cleanup = cached.Close
	}

	return summarizer, embedder, cleanup, nil
}
