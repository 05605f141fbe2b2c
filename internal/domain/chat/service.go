package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/llm/chatgpt"
	apperrors "github.com/mjkim-dev/smartstore-chatbot/pkg/errors"
	"github.com/mjkim-dev/smartstore-chatbot/pkg/metrics"
)

const (
	statusSearching  = "검색 중..."
	statusGenerating = "답변 생성 중..."

	defaultSystemPrompt = `당신은 네이버 스마트스토어 전문 상담사입니다.
제공된 FAQ 정보를 바탕으로 정확하고 친절하게 답변해주세요.
사용자가 이해하기 쉽도록 명확하고 구체적으로 설명해주세요.`

	defaultOffTopicMessage = "저는 스마트 스토어 FAQ 챗봇입니다. 스마트 스토어에 대한 질문을 부탁드립니다."
)

// Config configures one answering pipeline.
type Config struct {
	Model            string
	Temperature      float32
	MaxTokens        int
	SystemPrompt     string
	OffTopicMessage  string
	ContextTurns     int
	MaxSourcesOnMiss int
}

func (c Config) withDefaults() Config {
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 5000
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.OffTopicMessage == "" {
		c.OffTopicMessage = defaultOffTopicMessage
	}
	if c.ContextTurns <= 0 {
		c.ContextTurns = 2
	}
	if c.MaxSourcesOnMiss <= 0 {
		c.MaxSourcesOnMiss = 3
	}
	return c
}

// ChatClient is the LLM surface the orchestrator needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.Stream, error)
}

// Searcher is the retrieval surface, satisfied by index.Index.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]index.SearchResult, error)
}

// TokenCounter estimates token counts for usage logging. Optional.
type TokenCounter interface {
	Count(text string) int
}

// Service runs the retrieval-augmented answering pipeline for one session.
// It owns the session's Memory; callers serialize StreamAnswer invocations.
type Service struct {
	cfg       Config
	client    ChatClient
	searcher  Searcher
	memory    *Memory
	suggester *Suggester
	counter   TokenCounter
	logger    *slog.Logger
}

// NewService is a wire provider for the chat domain. suggester and counter
// may be nil; follow-up emission and usage logging are then skipped.
func NewService(cfg Config, client ChatClient, searcher Searcher, memory *Memory, suggester *Suggester, counter TokenCounter, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg.withDefaults(),
		client:    client,
		searcher:  searcher,
		memory:    memory,
		suggester: suggester,
		counter:   counter,
		logger:    logger.With("component", "chat.service"),
	}
}

// Memory exposes the session's conversation memory.
func (s *Service) Memory() *Memory {
	return s.memory
}

// StreamAnswer runs one answering pass and returns its ordered event stream.
// Validation and retrieval happen up front so index failures surface as
// errors; the returned channel is unbuffered and closes when the run ends.
// Cancelling ctx while the consumer lags abandons the run without touching
// conversation memory.
func (s *Service) StreamAnswer(ctx context.Context, question string, topK int, similarityThreshold float64) (<-chan StreamEvent, error) {
	if normalizeQuestion(question) == "" {
		return nil, apperrors.Wrap("invalid_input", "question cannot be empty", nil)
	}

	recentContext := s.memory.RecentContext(s.cfg.ContextTurns)

	allResults, err := s.searcher.Search(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	filtered := make([]index.SearchResult, 0, len(allResults))
	for _, r := range allResults {
		if r.SimilarityScore >= similarityThreshold {
			filtered = append(filtered, r)
		}
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		s.run(ctx, out, question, recentContext, filtered, allResults)
	}()
	return out, nil
}

func (s *Service) run(ctx context.Context, out chan<- StreamEvent, question, recentContext string, filtered, allResults []index.SearchResult) {
	emit := func(ev StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(StatusEvent{Message: statusSearching}) {
		return
	}

	if len(filtered) == 0 {
		miss := allResults
		if len(miss) > s.cfg.MaxSourcesOnMiss {
			miss = miss[:s.cfg.MaxSourcesOnMiss]
		}
		if !emit(AnswerEvent{Content: s.cfg.OffTopicMessage}) {
			return
		}
		emit(SourcesEvent{Results: miss})
		return
	}

	if !emit(SearchResultsEvent{Results: filtered}) {
		return
	}
	if !emit(StatusEvent{Message: statusGenerating}) {
		return
	}

	userPrompt := buildUserPrompt(question, recentContext, filtered)
	fullAnswer, ok := s.generate(ctx, emit, userPrompt, filtered)
	if !ok {
		return
	}

	s.memory.AddTurn(question, fullAnswer, filtered)

	if !emit(SourcesEvent{Results: filtered}) {
		return
	}

	if s.suggester != nil {
		followUp := s.suggester.Suggest(ctx, filtered, allResults)
		if len(followUp.Questions) > 0 {
			if !emit(FollowUpEvent{Questions: followUp.Questions, Source: followUp.Source}) {
				return
			}
		}
	}

	s.logUsage(userPrompt, fullAnswer)
}

// generate streams completion tokens, emitting one answer_chunk per non-empty
// delta. Any failure before or mid-stream falls back to the top source's
// canonical answer. The bool result is false only when the consumer left.
func (s *Service) generate(ctx context.Context, emit func(StreamEvent) bool, userPrompt string, filtered []index.SearchResult) (string, bool) {
	stream, err := s.client.CreateChatCompletionStream(ctx, chatgpt.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []chatgpt.Message{
			{Role: "system", Content: s.cfg.SystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		s.logger.Warn("generation stream failed to start, using fallback answer", "error", err)
		fallback := filtered[0].Answer
		return fallback, emit(AnswerEvent{Content: fallback})
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			s.logger.Warn("generation stream interrupted, using fallback answer", "error", recvErr)
			fallback := filtered[0].Answer
			return fallback, emit(AnswerEvent{Content: fallback})
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			builder.WriteString(choice.Delta.Content)
			if !emit(AnswerChunkEvent{Content: choice.Delta.Content}) {
				return "", false
			}
		}
	}
	return builder.String(), true
}

func (s *Service) logUsage(userPrompt, answer string) {
	if s.counter == nil {
		return
	}
	usage := metrics.TokenUsage{
		PromptTokens:     s.counter.Count(s.cfg.SystemPrompt) + s.counter.Count(userPrompt),
		CompletionTokens: s.counter.Count(answer),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	s.logger.Debug("token usage", "promptTokens", usage.PromptTokens, "completionTokens", usage.CompletionTokens, "totalTokens", usage.TotalTokens)
}

func buildUserPrompt(question, recentContext string, sources []index.SearchResult) string {
	pairs := make([]string, 0, len(sources))
	for _, src := range sources {
		pairs = append(pairs, fmt.Sprintf("Q: %s\nA: %s", src.Question, src.Answer))
	}

	var b strings.Builder
	if recentContext != "" {
		fmt.Fprintf(&b, "이전 대화:\n%s\n\n", recentContext)
	}
	fmt.Fprintf(&b, "관련 FAQ:\n%s\n\n사용자 질문: %s\n\n위 FAQ를 참고하여 답변해주세요.", strings.Join(pairs, "\n\n"), question)
	return b.String()
}
