// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/photo-dedupe/internal/database"
)

// MockEmbeddingCache is an in-memory implementation of database.EmbeddingCache
type MockEmbeddingCache struct {
	mu         sync.RWMutex
	embeddings map[string]*database.StoredEmbedding

	// Call counters
	GetCalls  int
	SaveCalls int

	// Error injection
	GetError    error
	SaveError   error
	CountError  error
	PathsError  error
	DeleteError error
}

// NewMockEmbeddingCache creates a new mock embedding cache
func NewMockEmbeddingCache() *MockEmbeddingCache {
	return &MockEmbeddingCache{
		embeddings: make(map[string]*database.StoredEmbedding),
	}
}

// AddEmbedding adds an embedding to the mock store
func (m *MockEmbeddingCache) AddEmbedding(emb database.StoredEmbedding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[emb.Path] = &emb
}

// Get retrieves an embedding by path
func (m *MockEmbeddingCache) Get(ctx context.Context, path string) (*database.StoredEmbedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetError != nil {
		return nil, m.GetError
	}
	emb, ok := m.embeddings[path]
	if !ok {
		return nil, nil
	}
	cp := *emb
	return &cp, nil
}

// Save stores an embedding
func (m *MockEmbeddingCache) Save(ctx context.Context, emb database.StoredEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.embeddings[emb.Path] = &emb
	return nil
}

// Count returns the total number of embeddings
func (m *MockEmbeddingCache) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings), nil
}

// Paths returns all stored paths, sorted
func (m *MockEmbeddingCache) Paths(ctx context.Context) ([]string, error) {
	if m.PathsError != nil {
		return nil, m.PathsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.embeddings))
	for p := range m.embeddings {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// Delete removes the given paths
func (m *MockEmbeddingCache) Delete(ctx context.Context, paths []string) (int, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for _, p := range paths {
		if _, ok := m.embeddings[p]; ok {
			delete(m.embeddings, p)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op
func (m *MockEmbeddingCache) Close() error {
	return nil
}

var _ database.EmbeddingCache = (*MockEmbeddingCache)(nil)
