package index

import "context"

// SeedRecord is one cleaned FAQ record as produced by preprocessing.
type SeedRecord struct {
	Question        string   `json:"question"`
	Answer          string   `json:"answer"`
	Categories      []string `json:"categories"`
	RelatedKeywords []string `json:"related_keywords"`
}

// Entry is a persisted FAQ record together with its embedding.
type Entry struct {
	ID              string
	Question        string
	Answer          string
	Categories      []string
	RelatedKeywords []string
	Embedding       []float32
	Ordinal         int
}

// SearchResult is the projection returned to retrieval consumers.
// SimilarityScore is always 1 - Distance under cosine distance.
type SearchResult struct {
	ID              string   `json:"id"`
	Question        string   `json:"question"`
	Answer          string   `json:"answer"`
	Categories      []string `json:"category"`
	RelatedKeywords []string `json:"related_keywords"`
	Distance        float64  `json:"distance"`
	SimilarityScore float64  `json:"similarity_score"`
}

// Info describes the persisted collection.
type Info struct {
	Name           string `json:"name"`
	Count          int    `json:"count"`
	DistanceMetric string `json:"distance_metric"`
}

// Match pairs a stored entry with its query distance.
type Match struct {
	Entry    Entry
	Distance float64
}

// Embedder turns a batch of texts into fixed-length vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists named collections of embedded FAQ entries.
// CreateCollection must be atomic: either the collection becomes visible
// with all entries, or not at all.
type Store interface {
	CreateCollection(ctx context.Context, name string, dimensions int, entries []Entry) error
	DropCollection(ctx context.Context, name string) (bool, error)
	CollectionExists(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context, name string) (int, error)
	Query(ctx context.Context, name string, embedding []float32, topK int) ([]Match, error)
}
