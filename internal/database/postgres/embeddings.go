package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-dedupe/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepository provides PostgreSQL-backed embedding cache storage
type EmbeddingRepository struct {
	pool *Pool
}

// NewEmbeddingRepository creates a new PostgreSQL embedding repository
func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

// Get retrieves an embedding by path, returns nil if not found
func (r *EmbeddingRepository) Get(ctx context.Context, path string) (*database.StoredEmbedding, error) {
	query := `
		SELECT path, size, mod_time, embedding, model, dim, created_at
		FROM image_embeddings
		WHERE path = $1
	`

	var emb database.StoredEmbedding
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, query, path).Scan(
		&emb.Path,
		&emb.Size,
		&emb.ModTime,
		&vec,
		&emb.Model,
		&emb.Dim,
		&emb.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	emb.Embedding = vec.Slice()
	return &emb, nil
}

// Save inserts or replaces the embedding for emb.Path
func (r *EmbeddingRepository) Save(ctx context.Context, emb database.StoredEmbedding) error {
	query := `
		INSERT INTO image_embeddings (path, size, mod_time, embedding, model, dim)
		VALUES ($1, $2, $3, $4::vector, $5, $6)
		ON CONFLICT (path) DO UPDATE SET
			size = EXCLUDED.size,
			mod_time = EXCLUDED.mod_time,
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`

	vec := pgvector.NewVector(emb.Embedding)
	_, err := r.pool.Exec(ctx, query, emb.Path, emb.Size, emb.ModTime, vec, emb.Model, emb.Dim)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// Count returns the total number of embeddings stored
func (r *EmbeddingRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM image_embeddings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// Paths returns all cached paths
func (r *EmbeddingRepository) Paths(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT path FROM image_embeddings ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paths: %w", err)
	}
	return paths, nil
}

// Delete removes the embeddings for the given paths
func (r *EmbeddingRepository) Delete(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	result, err := r.pool.Exec(ctx, "DELETE FROM image_embeddings WHERE path = ANY($1)", pq.Array(paths))
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying pool
func (r *EmbeddingRepository) Close() error {
	return r.pool.Close()
}
