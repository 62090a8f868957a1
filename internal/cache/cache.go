// Package cache is a content-addressed read cache for file contents. Keys
// are blob hashes, so a hit never needs revalidation: same hash, same bytes.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store caches file contents keyed by content hash.
type Store struct {
	entries *lru.Cache[string, []byte]
}

// New creates a store bounded to maxEntries cached blobs.
func New(maxEntries int) (*Store, error) {
	entries, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("creating content cache: %w", err)
	}
	return &Store{entries: entries}, nil
}

// GetOrFetch returns the cached content for hash, calling fetch on a miss
// and caching the result. A failed fetch caches nothing.
func (s *Store) GetOrFetch(ctx context.Context, hash string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if content, ok := s.entries.Get(hash); ok {
		return content, nil
	}

	content, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.entries.Add(hash, content)
	return content, nil
}

// Len returns the number of cached blobs.
func (s *Store) Len() int {
	return s.entries.Len()
}
