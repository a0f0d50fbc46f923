package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore is a size-bounded in-process cache layer backed by an LRU.
// Expiry is enforced on read and by InvalidateExpired.
type MemoryStore struct {
	entries *lru.Cache[string, *Entry]
}

// NewMemoryStore creates a memory store holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	entries, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{entries: entries}, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, nil
	}
	return entry, nil
}

// Set implements Store. The ttl parameter is ignored; expiry lives on the
// entry itself.
func (s *MemoryStore) Set(ctx context.Context, entry *Entry, ttl time.Duration) error {
	s.entries.Add(entry.Key, entry)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.entries.Remove(key)
	return nil
}

// InvalidateExpired implements Store. The LRU is safe for concurrent use,
// so concurrent invocations each see a consistent snapshot and deleting an
// already-deleted key is a no-op.
func (s *MemoryStore) InvalidateExpired(ctx context.Context) (int, error) {
	now := time.Now()
	deleted := 0
	for _, key := range s.entries.Keys() {
		entry, ok := s.entries.Peek(key)
		if !ok {
			continue
		}
		if entry.Expired(now) {
			if s.entries.Remove(key) {
				deleted++
			}
		}
	}
	return deleted, nil
}

// Len returns the number of entries currently held, expired or not.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}

// Ensure MemoryStore implements Store at compile time.
var _ Store = (*MemoryStore)(nil)
