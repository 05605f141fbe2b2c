package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/llm/chatgpt"
)

// FollowUpSource tags where follow-up candidates came from.
type FollowUpSource string

const (
	FollowUpFromKeywords   FollowUpSource = "related_keywords"
	FollowUpFromSimilarity FollowUpSource = "similarity"
	FollowUpNone           FollowUpSource = "none"
)

const (
	maxFollowUps         = 3
	maxFallbackFollowUps = 2
	minFollowUpRunes     = 10
)

// FollowUp is a set of suggested next questions with its source tag.
type FollowUp struct {
	Questions []string
	Source    FollowUpSource
}

// Suggester derives follow-up questions from retrieval results and rewrites
// them into user-voiced prompts via a secondary completion call.
type Suggester struct {
	client CompletionClient
	model  string
	logger *slog.Logger
}

// CompletionClient is the non-streaming completion surface the suggester needs.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// NewSuggester is a wire provider for the follow-up suggester.
func NewSuggester(client CompletionClient, model string, logger *slog.Logger) *Suggester {
	return &Suggester{client: client, model: model, logger: logger.With("component", "chat.suggester")}
}

// Suggest picks raw candidates by strict priority and rewrites them. On any
// rewrite failure a deterministic template takes over without external calls.
func (s *Suggester) Suggest(ctx context.Context, filtered, allResults []index.SearchResult) FollowUp {
	candidates, source := pickCandidates(filtered, allResults)
	if len(candidates) == 0 {
		return FollowUp{Questions: []string{}, Source: FollowUpNone}
	}

	questions, err := s.rewrite(ctx, candidates)
	if err != nil || len(questions) == 0 {
		if err != nil {
			s.logger.Warn("follow-up rewrite failed, using template fallback", "error", err)
		}
		return FollowUp{Questions: templateFollowUps(candidates), Source: source}
	}
	return FollowUp{Questions: questions, Source: source}
}

func pickCandidates(filtered, allResults []index.SearchResult) ([]string, FollowUpSource) {
	if len(filtered) > 0 && len(filtered[0].RelatedKeywords) > 0 {
		keywords := filtered[0].RelatedKeywords
		if len(keywords) > maxFollowUps {
			keywords = keywords[:maxFollowUps]
		}
		return keywords, FollowUpFromKeywords
	}
	if len(allResults) > 1 {
		questions := make([]string, 0, len(allResults)-1)
		for _, r := range allResults[1:] {
			questions = append(questions, r.Question)
		}
		return questions, FollowUpFromSimilarity
	}
	return nil, FollowUpNone
}

func (s *Suggester) rewrite(ctx context.Context, candidates []string) ([]string, error) {
	prompt := fmt.Sprintf(`다음 키워드들을 스마트스토어 사용자가 실제로 물어볼 법한 자연스러운 후속 질문으로 바꿔주세요.
한 줄에 하나씩, 번호 없이, 반드시 물음표로 끝나는 완성된 질문 형태로 작성해주세요.

키워드:
%s`, strings.Join(candidates, "\n"))

	resp, err := s.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:       s.model,
		Messages:    []chatgpt.Message{{Role: "user", Content: prompt}},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("rewrite returned no choices")
	}
	return parseFollowUps(resp.Choices[0].Message.Content), nil
}

// parseFollowUps keeps one question per line, strips enumeration markers, and
// drops lines without a question mark or at most 10 runes long.
func parseFollowUps(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = stripEnumeration(strings.TrimSpace(line))
		if line == "" || !strings.Contains(line, "?") {
			continue
		}
		if len([]rune(line)) <= minFollowUpRunes {
			continue
		}
		out = append(out, line)
		if len(out) >= maxFollowUps {
			break
		}
	}
	return out
}

func stripEnumeration(line string) string {
	trimmed := strings.TrimLeft(line, "-*• ")
	rest := strings.TrimLeftFunc(trimmed, unicode.IsDigit)
	if rest != trimmed {
		rest = strings.TrimLeft(rest, ".)")
		trimmed = strings.TrimSpace(rest)
	}
	return strings.TrimSpace(trimmed)
}

func templateFollowUps(candidates []string) []string {
	if len(candidates) > maxFallbackFollowUps {
		candidates = candidates[:maxFallbackFollowUps]
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, fmt.Sprintf("%s에 대해 더 자세히 안내해드릴까요?", c))
	}
	return out
}
