package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	LLM      LLMConfig      `yaml:"llm"`
	Index    IndexConfig    `yaml:"index"`
	Chat     ChatConfig     `yaml:"chat"`
	Stats    StatsConfig    `yaml:"stats"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	Retry        RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig contains ChatGPT/OpenAI settings.
type LLMConfig struct {
	APIKey         string  `yaml:"apiKey"`
	BaseURL        string  `yaml:"baseUrl"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embeddingModel"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"maxTokens"`
}

// IndexConfig controls the FAQ vector index.
type IndexConfig struct {
	CollectionName         string         `yaml:"collectionName"`
	Dimensions             int            `yaml:"dimensions"`
	BatchSize              int            `yaml:"batchSize"`
	EmbedRequestsPerMinute int            `yaml:"embedRequestsPerMinute"`
	Embedder               string         `yaml:"embedder"`
	SeedPath               string         `yaml:"seedPath"`
	Postgres               PostgresConfig `yaml:"postgres"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ChatConfig controls the answering pipeline.
type ChatConfig struct {
	SystemPrompt               string  `yaml:"systemPrompt"`
	OffTopicMessage            string  `yaml:"offTopicMessage"`
	DefaultTopK                int     `yaml:"defaultTopK"`
	DefaultSimilarityThreshold float64 `yaml:"defaultSimilarityThreshold"`
	ContextTurns               int     `yaml:"contextTurns"`
	MemoryTurns                int     `yaml:"memoryTurns"`
}

// StatsConfig contains connection information for trending-question storage.
type StatsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SessionsConfig controls per-session state lifetime.
type SessionsConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxTokens = parsed
		}
	}
	if v := os.Getenv("INDEX_COLLECTION_NAME"); v != "" {
		cfg.Index.CollectionName = v
	}
	if v := os.Getenv("INDEX_DIMENSIONS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Index.Dimensions = parsed
		}
	}
	if v := os.Getenv("INDEX_BATCH_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Index.BatchSize = parsed
		}
	}
	if v := os.Getenv("INDEX_EMBED_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Index.EmbedRequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("INDEX_EMBEDDER"); v != "" {
		cfg.Index.Embedder = v
	}
	if v := os.Getenv("INDEX_SEED_PATH"); v != "" {
		cfg.Index.SeedPath = v
	}
	if v := os.Getenv("INDEX_POSTGRES_DSN"); v != "" {
		cfg.Index.Postgres.DSN = v
	}
	if v := os.Getenv("INDEX_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Index.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("INDEX_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Index.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("CHAT_SYSTEM_PROMPT"); v != "" {
		cfg.Chat.SystemPrompt = v
	}
	if v := os.Getenv("CHAT_OFF_TOPIC_MESSAGE"); v != "" {
		cfg.Chat.OffTopicMessage = v
	}
	if v := os.Getenv("CHAT_DEFAULT_TOP_K"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.DefaultTopK = parsed
		}
	}
	if v := os.Getenv("CHAT_DEFAULT_SIMILARITY_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Chat.DefaultSimilarityThreshold = parsed
		}
	}
	if v := os.Getenv("CHAT_CONTEXT_TURNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.ContextTurns = parsed
		}
	}
	if v := os.Getenv("CHAT_MEMORY_TURNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.MemoryTurns = parsed
		}
	}
	if v := os.Getenv("STATS_ENABLED"); v != "" {
		cfg.Stats.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("STATS_ADDR"); v != "" {
		cfg.Stats.Addr = v
	}
	if v := os.Getenv("SESSIONS_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Sessions.TTL = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/chat",
				},
			},
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.1,
			MaxTokens:      5000,
		},
		Index: IndexConfig{
			CollectionName:         "smartstore_faq",
			Dimensions:             1536,
			BatchSize:              1000,
			EmbedRequestsPerMinute: 0,
			Embedder:               "chatgpt",
			SeedPath:               "data/faq_seed.json",
			Postgres: PostgresConfig{
				DSN:      "",
				MaxConns: 4,
				MinConns: 0,
			},
		},
		Chat: ChatConfig{
			DefaultTopK:                3,
			DefaultSimilarityThreshold: 0.1,
			ContextTurns:               2,
			MemoryTurns:                5,
		},
		Stats: StatsConfig{
			Enabled: false,
			Addr:    "",
		},
		Sessions: SessionsConfig{
			TTL: 30 * time.Minute,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if strings.TrimSpace(c.LLM.EmbeddingModel) == "" {
		return errors.New("llm.embeddingModel cannot be empty")
	}
	if c.LLM.MaxTokens < 0 {
		return errors.New("llm.maxTokens cannot be negative")
	}
	if strings.TrimSpace(c.Index.CollectionName) == "" {
		return errors.New("index.collectionName cannot be empty")
	}
	if c.Index.Dimensions <= 0 {
		return errors.New("index.dimensions must be positive")
	}
	if c.Index.BatchSize <= 0 {
		return errors.New("index.batchSize must be positive")
	}
	switch c.Index.Embedder {
	case "chatgpt", "deterministic":
	default:
		return fmt.Errorf("index.embedder must be chatgpt or deterministic, got %q", c.Index.Embedder)
	}
	if c.Chat.DefaultTopK <= 0 {
		return errors.New("chat.defaultTopK must be positive")
	}
	if c.Chat.DefaultSimilarityThreshold < 0 {
		return errors.New("chat.defaultSimilarityThreshold must be non-negative")
	}
	if c.Chat.MemoryTurns <= 0 {
		return errors.New("chat.memoryTurns must be positive")
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.Addr) == "" {
		return errors.New("stats.addr cannot be empty when stats storage is enabled")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	return nil
}
