package database

import (
	"context"
)

// EmbeddingCache provides persistent storage of image embeddings keyed by absolute path
type EmbeddingCache interface {
	// Get retrieves an embedding by path, returns nil if not found
	Get(ctx context.Context, path string) (*StoredEmbedding, error)
	// Save inserts or replaces the embedding for emb.Path
	Save(ctx context.Context, emb StoredEmbedding) error
	// Count returns the total number of embeddings stored
	Count(ctx context.Context) (int, error)
	// Paths returns all cached paths
	Paths(ctx context.Context) ([]string, error)
	// Delete removes the embeddings for the given paths and returns how many were deleted
	Delete(ctx context.Context, paths []string) (int, error)
	// Close releases the underlying connection
	Close() error
}
