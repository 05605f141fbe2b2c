package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/chat"
	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/collection"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/config"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/embedder"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/llm/chatgpt"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/sessions"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/statstore"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/tokenizer"
	httpiface "github.com/mjkim-dev/smartstore-chatbot/internal/interface/http"
	apperrors "github.com/mjkim-dev/smartstore-chatbot/pkg/errors"
)

func provideChatGPTClient(cfg *config.Config) (*chatgpt.Client, error) {
	client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	if err != nil {
		return nil, apperrors.Wrap("config_error", "llm credentials missing", err)
	}
	return client, nil
}

func provideIndexConfig(cfg *config.Config) index.Config {
	return index.Config{
		CollectionName:         cfg.Index.CollectionName,
		Dimensions:             cfg.Index.Dimensions,
		BatchSize:              cfg.Index.BatchSize,
		EmbedRequestsPerMinute: cfg.Index.EmbedRequestsPerMinute,
	}
}

func provideEmbedder(cfg *config.Config, client *chatgpt.Client, logger *slog.Logger) index.Embedder {
	if cfg.Index.Embedder == "deterministic" {
		logger.Info("deterministic embedder enabled", "dimensions", cfg.Index.Dimensions)
		return embedder.NewDeterministicEmbedder(cfg.Index.Dimensions)
	}
	return embedder.NewChatGPTEmbedder(client, cfg.LLM.EmbeddingModel, cfg.Index.Dimensions, logger)
}

func provideCollectionStore(cfg *config.Config, logger *slog.Logger) index.Store {
	fallback := collection.NewMemoryStore()
	dsn := strings.TrimSpace(cfg.Index.Postgres.DSN)
	if dsn == "" {
		logger.Info("index postgres dsn not set, using memory store")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory store", "error", err)
		return fallback
	}
	if cfg.Index.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Index.Postgres.MaxConns
	}
	if cfg.Index.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Index.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory store", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory store", "error", err)
		pool.Close()
		return fallback
	}
	store := collection.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("postgres schema setup failed, using memory store", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("index postgres store enabled")
	return store
}

func provideStatsStore(cfg *config.Config, logger *slog.Logger) chat.StatsStore {
	if cfg.Stats.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory stats", "error", err)
			return statstore.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory stats", "error", err)
			return statstore.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory stats", "error", err)
		} else {
			logger.Info("valkey stats store enabled", "addr", cfg.Stats.Addr)
			return statstore.NewValkeyStore(client, "chat")
		}
	}
	return statstore.NewMemoryStore()
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Stats.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Stats.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Stats.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func provideTokenCounter(logger *slog.Logger) chat.TokenCounter {
	counter, err := tokenizer.NewTiktokenCounter()
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using heuristic token counter", "error", err)
		return tokenizer.HeuristicCounter{}
	}
	return counter
}

func provideSessionRegistry(cfg *config.Config, client *chatgpt.Client, idx *index.Index, counter chat.TokenCounter, logger *slog.Logger) *sessions.Registry {
	chatCfg := chat.Config{
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		SystemPrompt:    cfg.Chat.SystemPrompt,
		OffTopicMessage: cfg.Chat.OffTopicMessage,
		ContextTurns:    cfg.Chat.ContextTurns,
	}
	factory := func() sessions.Engine {
		memory := chat.NewMemory(cfg.Chat.MemoryTurns)
		suggester := chat.NewSuggester(client, cfg.LLM.Model, logger)
		return chat.NewService(chatCfg, client, idx, memory, suggester, counter, logger)
	}
	return sessions.NewRegistry(factory, cfg.Sessions.TTL, logger)
}

func provideHandler(cfg *config.Config, registry *sessions.Registry, idx *index.Index, stats chat.StatsStore, logger *slog.Logger) *httpiface.Handler {
	defaults := httpiface.ChatDefaults{
		TopK:                cfg.Chat.DefaultTopK,
		SimilarityThreshold: cfg.Chat.DefaultSimilarityThreshold,
	}
	return httpiface.NewHandler(registry, idx, stats, defaults, cfg.Index.SeedPath, logger)
}
