package respcache

import (
	"container/list"
	"context"
	"path"
	"sync"
	"time"
)

// Store is the backing key-value store for the response cache.
//
// Implementations may be remote; any error they return is treated by the
// cache as a miss or no-op, never propagated.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// storeEntry represents a single cache entry with its own TTL
type storeEntry struct {
	key       string
	value     string
	expiresAt time.Time
	element   *list.Element // For LRU tracking
}

// isExpired checks if the entry has expired
func (e *storeEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is an in-memory LRU store with per-entry TTL.
// Thread-safe implementation using sync.Mutex; it never returns errors.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*storeEntry
	lruList *list.List // Doubly linked list for LRU tracking
	maxSize int

	now func() time.Time
}

// NewMemoryStore creates a memory store holding at most maxSize entries
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &MemoryStore{
		entries: make(map[string]*storeEntry),
		lruList: list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get retrieves a value. Expired entries are removed on access.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return "", false, nil
	}
	if entry.isExpired(s.now()) {
		s.removeEntry(key)
		return "", false, nil
	}

	// Move to front (most recently used)
	s.lruList.MoveToFront(entry.element)
	return entry.value, true, nil
}

// Set stores a value with the given TTL, evicting the least recently used
// entry when full
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.entries[key]; exists {
		entry.value = value
		entry.expiresAt = s.now().Add(ttl)
		s.lruList.MoveToFront(entry.element)
		return nil
	}

	if s.lruList.Len() >= s.maxSize {
		s.evictLRU()
	}

	entry := &storeEntry{
		key:       key,
		value:     value,
		expiresAt: s.now().Add(ttl),
	}
	entry.element = s.lruList.PushFront(key)
	s.entries[key] = entry
	return nil
}

// Delete removes a single entry
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeEntry(key)
	return nil
}

// DeletePattern removes all entries whose key matches the glob pattern
// (path.Match syntax) and returns the number removed
func (s *MemoryStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]string, 0)
	for key := range s.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			matched = append(matched, key)
		}
	}
	for _, key := range matched {
		s.removeEntry(key)
	}
	return len(matched), nil
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lruList.Len()
}

// removeEntry removes an entry (must be called with lock held)
func (s *MemoryStore) removeEntry(key string) {
	if entry, exists := s.entries[key]; exists {
		s.lruList.Remove(entry.element)
		delete(s.entries, key)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (s *MemoryStore) evictLRU() {
	backElement := s.lruList.Back()
	if backElement != nil {
		key := backElement.Value.(string)
		s.lruList.Remove(backElement)
		delete(s.entries, key)
	}
}
