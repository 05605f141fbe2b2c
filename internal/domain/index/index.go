package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	apperrors "github.com/mjkim-dev/smartstore-chatbot/pkg/errors"
)

const distanceMetric = "cosine"

// Config holds runtime knobs for the vector index.
type Config struct {
	CollectionName string
	Dimensions     int
	BatchSize      int
	// EmbedRequestsPerMinute paces build-time embedding batches against the
	// provider's rate budget. Zero disables pacing.
	EmbedRequestsPerMinute int
}

// Index stores FAQ records with their question embeddings and answers
// top-k nearest-neighbour queries by cosine distance.
type Index struct {
	cfg      Config
	store    Store
	embedder Embedder
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu     sync.Mutex
	loaded bool
}

// New wires up the index domain.
func New(cfg Config, store Store, embedder Embedder, logger *slog.Logger) *Index {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	var limiter *rate.Limiter
	if cfg.EmbedRequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.EmbedRequestsPerMinute)/60.0), 1)
	}
	return &Index{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		limiter:  limiter,
		logger:   logger.With("component", "index"),
	}
}

// Build embeds every seed question in batches and replaces the persisted
// collection in a single atomic step. When reset is true any prior collection
// with the same name is dropped first; its absence is not an error.
func (x *Index) Build(ctx context.Context, records []SeedRecord, reset bool) error {
	if len(records) == 0 {
		return apperrors.Wrap("invalid_input", "no seed records to index", nil)
	}

	questions := make([]string, len(records))
	for i, rec := range records {
		questions[i] = rec.Question
	}

	embeddings, err := x.embedBatches(ctx, questions)
	if err != nil {
		return err
	}

	entries := make([]Entry, len(records))
	for i, rec := range records {
		entries[i] = Entry{
			ID:              fmt.Sprintf("faq_%d", i),
			Question:        rec.Question,
			Answer:          rec.Answer,
			Categories:      rec.Categories,
			RelatedKeywords: rec.RelatedKeywords,
			Embedding:       embeddings[i],
			Ordinal:         i,
		}
	}

	if reset {
		if _, err := x.store.DropCollection(ctx, x.cfg.CollectionName); err != nil {
			return apperrors.Wrap("index_build_error", "failed to drop previous collection", err)
		}
	}
	if err := x.store.CreateCollection(ctx, x.cfg.CollectionName, x.cfg.Dimensions, entries); err != nil {
		return apperrors.Wrap("index_build_error", "failed to persist collection", err)
	}

	x.mu.Lock()
	x.loaded = true
	x.mu.Unlock()

	x.logger.Info("index build complete", "collection", x.cfg.CollectionName, "entries", len(entries))
	return nil
}

// Search embeds the query and returns at most topK results ordered by
// descending similarity (ascending cosine distance).
func (x *Index) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}
	if err := x.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	vectors, err := x.embedBatch(ctx, []string{query}, "index_error")
	if err != nil {
		return nil, err
	}

	matches, err := x.store.Query(ctx, x.cfg.CollectionName, vectors[0], topK)
	if err != nil {
		return nil, apperrors.Wrap("index_error", "collection query failed", err)
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			ID:              m.Entry.ID,
			Question:        m.Entry.Question,
			Answer:          m.Entry.Answer,
			Categories:      m.Entry.Categories,
			RelatedKeywords: m.Entry.RelatedKeywords,
			Distance:        m.Distance,
			SimilarityScore: 1 - m.Distance,
		})
	}
	return results, nil
}

// Describe reports the collection name, entry count, and distance metric.
func (x *Index) Describe(ctx context.Context) (Info, error) {
	if err := x.ensureLoaded(ctx); err != nil {
		return Info{}, err
	}
	count, err := x.store.Count(ctx, x.cfg.CollectionName)
	if err != nil {
		return Info{}, apperrors.Wrap("index_error", "failed to count collection entries", err)
	}
	return Info{
		Name:           x.cfg.CollectionName,
		Count:          count,
		DistanceMetric: distanceMetric,
	}, nil
}

// Drop removes the persisted collection. It is idempotent and reports
// whether anything existed.
func (x *Index) Drop(ctx context.Context) (bool, error) {
	existed, err := x.store.DropCollection(ctx, x.cfg.CollectionName)
	if err != nil {
		return false, apperrors.Wrap("index_error", "failed to drop collection", err)
	}
	x.mu.Lock()
	x.loaded = false
	x.mu.Unlock()
	return existed, nil
}

// ensureLoaded lazily verifies the persisted collection on first use.
func (x *Index) ensureLoaded(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.loaded {
		return nil
	}
	exists, err := x.store.CollectionExists(ctx, x.cfg.CollectionName)
	if err != nil {
		return apperrors.Wrap("index_error", "failed to check collection", err)
	}
	if !exists {
		return apperrors.Wrap("index_not_found", fmt.Sprintf("collection %q has not been built", x.cfg.CollectionName), nil)
	}
	x.loaded = true
	return nil
}

func (x *Index) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += x.cfg.BatchSize {
		end := start + x.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := x.embedBatch(ctx, texts[start:end], "index_build_error")
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
		x.logger.Debug("embedding batch complete", "batch", start/x.cfg.BatchSize+1, "size", end-start)
	}
	return out, nil
}

func (x *Index) embedBatch(ctx context.Context, texts []string, errCode string) ([][]float32, error) {
	if x.limiter != nil {
		if err := x.limiter.Wait(ctx); err != nil {
			return nil, apperrors.Wrap(errCode, "embedding rate wait interrupted", err)
		}
	}
	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, apperrors.Wrap(errCode, "embedding request failed", err)
	}
	if len(vectors) != len(texts) {
		return nil, apperrors.Wrap(errCode,
			fmt.Sprintf("embedding batch malformed: expected %d vectors, got %d", len(texts), len(vectors)), nil)
	}
	return vectors, nil
}
