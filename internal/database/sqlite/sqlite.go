// Package sqlite provides a local file-backed embedding cache.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kozaktomas/photo-dedupe/internal/config"
	"github.com/kozaktomas/photo-dedupe/internal/database"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	database.RegisterBackend("sqlite", func(ctx context.Context, cfg *config.CacheConfig) (database.EmbeddingCache, error) {
		return Open(ctx, cfg.URL)
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS image_embeddings (
	path       TEXT PRIMARY KEY,
	size       INTEGER NOT NULL,
	mod_time   INTEGER NOT NULL,
	embedding  BLOB NOT NULL,
	model      TEXT NOT NULL,
	dim        INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);`

// EmbeddingRepository stores embeddings in a SQLite database file
type EmbeddingRepository struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*EmbeddingRepository, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &EmbeddingRepository{db: db}, nil
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}

// Get retrieves an embedding by path, returns nil if not found
func (r *EmbeddingRepository) Get(ctx context.Context, path string) (*database.StoredEmbedding, error) {
	var emb database.StoredEmbedding
	var blob []byte
	var modTime, createdAt int64

	err := r.db.QueryRowContext(ctx,
		"SELECT path, size, mod_time, embedding, model, dim, created_at FROM image_embeddings WHERE path = ?",
		path,
	).Scan(&emb.Path, &emb.Size, &modTime, &blob, &emb.Model, &emb.Dim, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	emb.Embedding, err = decodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("decode embedding for %s: %w", path, err)
	}
	emb.ModTime = time.Unix(0, modTime)
	emb.CreatedAt = time.Unix(0, createdAt)
	return &emb, nil
}

// Save inserts or replaces the embedding for emb.Path
func (r *EmbeddingRepository) Save(ctx context.Context, emb database.StoredEmbedding) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO image_embeddings (path, size, mod_time, embedding, model, dim, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET
			size = excluded.size,
			mod_time = excluded.mod_time,
			embedding = excluded.embedding,
			model = excluded.model,
			dim = excluded.dim,
			created_at = excluded.created_at`,
		emb.Path, emb.Size, emb.ModTime.UnixNano(), encodeVector(emb.Embedding), emb.Model, emb.Dim, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// Count returns the total number of embeddings stored
func (r *EmbeddingRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM image_embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// Paths returns all cached paths
func (r *EmbeddingRepository) Paths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT path FROM image_embeddings ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
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

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(paths)), ",")
	args := make([]any, len(paths))
	for i, p := range paths {
		args[i] = p
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM image_embeddings WHERE path IN ("+placeholders+")", args...) //nolint:gosec // placeholders only
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Close closes the database
func (r *EmbeddingRepository) Close() error {
	return r.db.Close()
}
