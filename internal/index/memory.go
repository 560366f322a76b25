package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
)

type entry struct {
	collection *domain.Collection
	storedAt   time.Time // when the collection was Set
	lastAccess time.Time // last Get or Set, drives idle eviction
}

// MemoryIndex holds the fetched collection of every live session in process
// memory. It is the front layer of the bookmark store; Redis, when
// configured, sits behind it.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]*entry // session ID -> entry
	lastSet time.Time         // timestamp of the last Set
	now     func() time.Time
}

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Get returns the collection cached for a session.
func (idx *MemoryIndex) Get(sessionID string) (*domain.Collection, bool) {
	// Write lock: a hit refreshes lastAccess.
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.entries[sessionID]
	if !ok {
		return nil, false
	}
	e.lastAccess = idx.now()
	return e.collection, true
}

// Set replaces the collection of a session.
func (idx *MemoryIndex) Set(sessionID string, c *domain.Collection) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	now := idx.now()
	idx.entries[sessionID] = &entry{collection: c, storedAt: now, lastAccess: now}
	idx.lastSet = now
}

// Invalidate drops the collection of a session.
func (idx *MemoryIndex) Invalidate(sessionID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.entries, sessionID)
}

// StoredAt returns when the session's collection was cached.
func (idx *MemoryIndex) StoredAt(sessionID string) (time.Time, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.entries[sessionID]
	if !ok {
		return time.Time{}, false
	}
	return e.storedAt, true
}

// Sweep evicts collections not accessed for longer than idle and returns
// the evicted session IDs.
func (idx *MemoryIndex) Sweep(idle time.Duration) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cutoff := idx.now().Add(-idle)
	var evicted []string
	for id, e := range idx.entries {
		if e.lastAccess.Before(cutoff) {
			delete(idx.entries, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Count returns the number of cached sessions
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entries)
}

// PostCount returns the number of posts across all cached sessions
func (idx *MemoryIndex) PostCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for _, e := range idx.entries {
		n += e.collection.Len()
	}
	return n
}

// GetLastSet returns the timestamp of the last Set
func (idx *MemoryIndex) GetLastSet() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastSet
}
