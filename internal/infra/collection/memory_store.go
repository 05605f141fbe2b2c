package collection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
)

type storedCollection struct {
	dimensions int
	entries    []index.Entry
}

// MemoryStore keeps collections in process memory for tests and dev runs.
// Distances are exact cosine distances computed per query.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]storedCollection
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]storedCollection)}
}

// CreateCollection stores all entries under the collection name atomically.
func (s *MemoryStore) CreateCollection(_ context.Context, name string, dimensions int, entries []index.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.collections[name]; exists {
		return fmt.Errorf("collection %q already exists", name)
	}
	copied := make([]index.Entry, len(entries))
	copy(copied, entries)
	s.collections[name] = storedCollection{dimensions: dimensions, entries: copied}
	return nil
}

// DropCollection removes the named collection if present.
func (s *MemoryStore) DropCollection(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.collections[name]
	delete(s.collections, name)
	return existed, nil
}

// CollectionExists checks for a stored collection by name.
func (s *MemoryStore) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// Count reports how many entries the collection holds.
func (s *MemoryStore) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[name].entries), nil
}

// Query returns the topK nearest entries by cosine distance.
func (s *MemoryStore) Query(_ context.Context, name string, embedding []float32, topK int) ([]index.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", name)
	}

	matches := make([]index.Match, 0, len(col.entries))
	for _, entry := range col.entries {
		matches = append(matches, index.Match{
			Entry:    entry,
			Distance: cosineDistance(embedding, entry.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

var _ index.Store = (*MemoryStore)(nil)
