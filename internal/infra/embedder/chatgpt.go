package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/llm/chatgpt"
)

// ChatGPTEmbedder calls an OpenAI-compatible embeddings API.
type ChatGPTEmbedder struct {
	client     *chatgpt.Client
	model      string
	dimensions int
	logger     *slog.Logger
}

// NewChatGPTEmbedder constructs an embedder backed by the ChatGPT client.
// dimensions, when positive, is validated against every returned vector.
func NewChatGPTEmbedder(client *chatgpt.Client, model string, dimensions int, logger *slog.Logger) *ChatGPTEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatGPTEmbedder{
		client:     client,
		model:      strings.TrimSpace(model),
		dimensions: dimensions,
		logger:     logger.With("component", "embedder.chatgpt"),
	}
}

// Embed requests one vector per input text, preserving input order.
func (e *ChatGPTEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	data := make([]chatgpt.EmbeddingData, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, 0, len(data))
	for _, item := range data {
		if e.dimensions > 0 && len(item.Embedding) != e.dimensions {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimensions, len(item.Embedding))
		}
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		out = append(out, vec)
	}
	if len(out) != len(texts) {
		e.logger.Warn("embedding result count mismatch", "expected", len(texts), "got", len(out))
	}
	return out, nil
}

var _ index.Embedder = (*ChatGPTEmbedder)(nil)
