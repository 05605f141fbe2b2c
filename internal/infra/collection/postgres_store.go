package collection

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
)

// PostgresStore persists FAQ collections in Postgres with pgvector columns.
// Category tags and related keywords are stored as comma-joined flat strings.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs the adapter.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the pgvector extension and backing tables.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS faq_collections (
			name       TEXT PRIMARY KEY,
			dimensions INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS faq_entries (
			collection       TEXT NOT NULL REFERENCES faq_collections(name) ON DELETE CASCADE,
			entry_id         TEXT NOT NULL,
			question         TEXT NOT NULL,
			answer           TEXT NOT NULL,
			category         TEXT NOT NULL DEFAULT '',
			related_keywords TEXT NOT NULL DEFAULT '',
			ordinal          INT NOT NULL,
			embedding        vector NOT NULL,
			PRIMARY KEY (collection, entry_id)
		);
	`)
	return err
}

// CreateCollection writes the collection row and all entries in one
// transaction, so a failed build never leaves a partially visible collection.
func (s *PostgresStore) CreateCollection(ctx context.Context, name string, dimensions int, entries []index.Entry) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO faq_collections (name, dimensions) VALUES ($1, $2)
	`, name, dimensions); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(`
			INSERT INTO faq_entries (collection, entry_id, question, answer, category, related_keywords, ordinal, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, name, entry.ID, entry.Question, entry.Answer,
			strings.Join(entry.Categories, ","), strings.Join(entry.RelatedKeywords, ","),
			entry.Ordinal, pgvector.NewVector(entry.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DropCollection removes the collection and its entries via cascade.
func (s *PostgresStore) DropCollection(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM faq_collections WHERE name = $1`, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CollectionExists checks for a persisted collection by name.
func (s *PostgresStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM faq_collections WHERE name = $1)
	`, name).Scan(&exists)
	return exists, err
}

// Count reports how many entries the collection holds.
func (s *PostgresStore) Count(ctx context.Context, name string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM faq_entries WHERE collection = $1
	`, name).Scan(&count)
	return count, err
}

// Query returns the topK nearest entries by cosine distance.
func (s *PostgresStore) Query(ctx context.Context, name string, embedding []float32, topK int) ([]index.Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entry_id, question, answer, category, related_keywords, ordinal,
		       (embedding <=> $2) AS distance
		FROM faq_entries
		WHERE collection = $1
		ORDER BY embedding <=> $2 ASC
		LIMIT $3
	`, name, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]index.Match, 0, topK)
	for rows.Next() {
		var (
			entry    index.Entry
			category string
			keywords string
			distance float64
		)
		if err := rows.Scan(&entry.ID, &entry.Question, &entry.Answer, &category, &keywords, &entry.Ordinal, &distance); err != nil {
			return nil, err
		}
		entry.Categories = splitTags(category)
		entry.RelatedKeywords = splitTags(keywords)
		matches = append(matches, index.Match{Entry: entry, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func splitTags(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var _ index.Store = (*PostgresStore)(nil)
