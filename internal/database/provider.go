package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/photo-dedupe/internal/config"
)

// Opener creates an embedding cache for a backend.
type Opener func(ctx context.Context, cfg *config.CacheConfig) (EmbeddingCache, error)

var (
	backends   = make(map[string]Opener)
	backendsMu sync.RWMutex
)

// ErrCacheDisabled is returned by OpenCache when no cache is configured.
var ErrCacheDisabled = errors.New("embedding cache is not configured")

// RegisterBackend registers a cache backend under a driver name.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(driver string, opener Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[driver] = opener
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenCache opens the configured embedding cache.
// Returns ErrCacheDisabled when cfg has no driver or URL.
func OpenCache(ctx context.Context, cfg *config.CacheConfig) (EmbeddingCache, error) {
	if cfg == nil || !cfg.Enabled() {
		return nil, ErrCacheDisabled
	}

	backendsMu.RLock()
	opener, ok := backends[cfg.Driver]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cache driver %q not registered (available: %v)", cfg.Driver, Drivers())
	}

	cache, err := opener(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", cfg.Driver, err)
	}
	return cache, nil
}
