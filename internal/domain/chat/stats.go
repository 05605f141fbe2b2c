package chat

import "context"

// TrendingQuestion is one entry of the most-asked-questions ranking.
type TrendingQuestion struct {
	Question string `json:"question"`
	Count    int64  `json:"count"`
}

// StatsStore records how often questions are asked. Increments are
// best-effort; the answering pipeline never fails on stats errors.
type StatsStore interface {
	IncrementQuestion(ctx context.Context, canonical, display string) error
	TopQuestions(ctx context.Context, limit int) ([]TrendingQuestion, error)
}
