package statstore

import (
	"context"
	"sort"
	"sync"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/chat"
)

// MemoryStore is an in-process stats store for tests and dev runs.
type MemoryStore struct {
	mu       sync.RWMutex
	counts   map[string]int64
	displays map[string]string
}

// NewMemoryStore constructs a stats store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counts:   make(map[string]int64),
		displays: make(map[string]string),
	}
}

// IncrementQuestion bumps the counter for a canonical question and records a
// display string on first sight.
func (s *MemoryStore) IncrementQuestion(_ context.Context, canonical, display string) error {
	if canonical == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[canonical]++
	if _, exists := s.displays[canonical]; !exists {
		s.displays[canonical] = display
	}
	return nil
}

// TopQuestions returns the most frequent questions, ties broken by text.
func (s *MemoryStore) TopQuestions(_ context.Context, limit int) ([]chat.TrendingQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = len(s.counts)
	}
	items := make([]chat.TrendingQuestion, 0, len(s.counts))
	for canonical, count := range s.counts {
		display := s.displays[canonical]
		if display == "" {
			display = canonical
		}
		items = append(items, chat.TrendingQuestion{Question: display, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Question < items[j].Question
		}
		return items[i].Count > items[j].Count
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

var _ chat.StatsStore = (*MemoryStore)(nil)
