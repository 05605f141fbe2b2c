package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	apperrors "github.com/mjkim-dev/smartstore-chatbot/pkg/errors"
)

type fakeEmbedder struct {
	batches [][]string
	fail    bool
	short   bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.fail {
		return nil, errors.New("embedder down")
	}
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type fakeStore struct {
	created     map[string][]Entry
	dropCalls   int
	createErr   error
	queryResult []Match
	queryErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{created: map[string][]Entry{}}
}

func (s *fakeStore) CreateCollection(_ context.Context, name string, _ int, entries []Entry) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created[name] = entries
	return nil
}

func (s *fakeStore) DropCollection(_ context.Context, name string) (bool, error) {
	s.dropCalls++
	_, ok := s.created[name]
	delete(s.created, name)
	return ok, nil
}

func (s *fakeStore) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := s.created[name]
	return ok, nil
}

func (s *fakeStore) Count(_ context.Context, name string) (int, error) {
	return len(s.created[name]), nil
}

func (s *fakeStore) Query(_ context.Context, _ string, _ []float32, topK int) ([]Match, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if topK < len(s.queryResult) {
		return s.queryResult[:topK], nil
	}
	return s.queryResult, nil
}

func testLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

func seedRecords(n int) []SeedRecord {
	records := make([]SeedRecord, n)
	for i := range records {
		records[i] = SeedRecord{
			Question:        fmt.Sprintf("질문 %d", i),
			Answer:          fmt.Sprintf("답변 %d", i),
			Categories:      []string{"배송"},
			RelatedKeywords: []string{"키워드"},
		}
	}
	return records
}

func TestBuildAssignsSequentialIDs(t *testing.T) {
	store := newFakeStore()
	idx := New(Config{CollectionName: "faq", Dimensions: 2}, store, &fakeEmbedder{}, testLogger())

	if err := idx.Build(context.Background(), seedRecords(3), false); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	entries := store.created["faq"]
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		wantID := fmt.Sprintf("faq_%d", i)
		if entry.ID != wantID {
			t.Errorf("entry %d id = %q, want %q", i, entry.ID, wantID)
		}
		if entry.Ordinal != i {
			t.Errorf("entry %d ordinal = %d, want %d", i, entry.Ordinal, i)
		}
	}
}

func TestBuildSplitsEmbeddingBatches(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	idx := New(Config{CollectionName: "faq", Dimensions: 2, BatchSize: 2}, store, embedder, testLogger())

	if err := idx.Build(context.Background(), seedRecords(5), false); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if len(embedder.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(embedder.batches))
	}
	sizes := []int{2, 2, 1}
	for i, batch := range embedder.batches {
		if len(batch) != sizes[i] {
			t.Errorf("batch %d size = %d, want %d", i, len(batch), sizes[i])
		}
	}
}

func TestBuildMalformedBatch(t *testing.T) {
	store := newFakeStore()
	idx := New(Config{CollectionName: "faq", Dimensions: 2}, store, &fakeEmbedder{short: true}, testLogger())

	err := idx.Build(context.Background(), seedRecords(2), false)
	if !apperrors.IsCode(err, "index_build_error") {
		t.Fatalf("expected index_build_error, got %v", err)
	}
	if len(store.created) != 0 {
		t.Fatal("failed build must not persist a collection")
	}
}

func TestBuildEmbedderFailure(t *testing.T) {
	store := newFakeStore()
	idx := New(Config{CollectionName: "faq", Dimensions: 2}, store, &fakeEmbedder{fail: true}, testLogger())

	err := idx.Build(context.Background(), seedRecords(1), false)
	if !apperrors.IsCode(err, "index_build_error") {
		t.Fatalf("expected index_build_error, got %v", err)
	}
}

func TestBuildRejectsEmptySeed(t *testing.T) {
	idx := New(Config{CollectionName: "faq", Dimensions: 2}, newFakeStore(), &fakeEmbedder{}, testLogger())

	err := idx.Build(context.Background(), nil, false)
	if !apperrors.IsCode(err, "invalid_input") {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestBuildResetDropsExisting(t *testing.T) {
	store := newFakeStore()
	store.created["faq"] = []Entry{{ID: "faq_0"}}
	idx := New(Config{CollectionName: "faq", Dimensions: 2}, store, &fakeEmbedder{}, testLogger())

	if err := idx.Build(context.Background(), seedRecords(1), true); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if store.dropCalls != 1 {
		t.Fatalf("expected one drop call, got %d", store.dropCalls)
	}
	if len(store.created["faq"]) != 1 {
		t.Fatalf("expected rebuilt collection with 1 entry, got %d", len(store.created["faq"]))
	}
}

func TestSearchMapsDistanceToSimilarity(t *testing.T) {
	store := newFakeStore()
	store.created["faq"] = []Entry{}
	store.queryResult = []Match{
		{Entry: Entry{ID: "faq_0", Question: "환불은 어떻게 하나요?", Answer: "환불 절차 안내"}, Distance: 0.1},
		{Entry: Entry{ID: "faq_1", Question: "배송 조회", Answer: "배송 안내"}, Distance: 0.4},
	}
	idx := New(Config{CollectionName: "faq", Dimensions: 2}, store, &fakeEmbedder{}, testLogger())

	results, err := idx.Search(context.Background(), "환불", 5)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "faq_0" {
		t.Errorf("results out of order: first id %q", results[0].ID)
	}
	if got, want := results[0].SimilarityScore, 0.9; got != want {
		t.Errorf("similarity = %v, want %v", got, want)
	}
	if got, want := results[1].SimilarityScore, 0.6; got != want {
		t.Errorf("similarity = %v, want %v", got, want)
	}
}

func TestSearchDefaultsTopK(t *testing.T) {
	store := newFakeStore()
	store.created["faq"] = []Entry{}
	for i := 0; i < 5; i++ {
		store.queryResult = append(store.queryResult, Match{Entry: Entry{ID: fmt.Sprintf("faq_%d", i)}})
	}
	idx := New(Config{CollectionName: "faq", Dimensions: 2}, store, &fakeEmbedder{}, testLogger())

	results, err := idx.Search(context.Background(), "배송", 0)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected default top-k of 3, got %d results", len(results))
	}
}

func TestSearchWithoutCollection(t *testing.T) {
	idx := New(Config{CollectionName: "faq", Dimensions: 2}, newFakeStore(), &fakeEmbedder{}, testLogger())

	_, err := idx.Search(context.Background(), "배송", 3)
	if !apperrors.IsCode(err, "index_not_found") {
		t.Fatalf("expected index_not_found, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	store := newFakeStore()
	idx := New(Config{CollectionName: "faq", Dimensions: 2}, store, &fakeEmbedder{}, testLogger())
	if err := idx.Build(context.Background(), seedRecords(4), false); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	info, err := idx.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if info.Name != "faq" || info.Count != 4 || info.DistanceMetric != "cosine" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestDropIsIdempotent(t *testing.T) {
	store := newFakeStore()
	idx := New(Config{CollectionName: "faq", Dimensions: 2}, store, &fakeEmbedder{}, testLogger())
	if err := idx.Build(context.Background(), seedRecords(1), false); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	existed, err := idx.Drop(context.Background())
	if err != nil || !existed {
		t.Fatalf("first drop: existed=%v err=%v", existed, err)
	}
	existed, err = idx.Drop(context.Background())
	if err != nil || existed {
		t.Fatalf("second drop: existed=%v err=%v", existed, err)
	}
	if _, err := idx.Search(context.Background(), "배송", 3); !apperrors.IsCode(err, "index_not_found") {
		t.Fatalf("expected index_not_found after drop, got %v", err)
	}
}
