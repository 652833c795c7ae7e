package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and redis-less deployments.
// Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	slots    map[string]string
	deadline time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, outlet, userID string, commandID int64) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionKey(outlet, userID, commandID)]
	if !ok || s.now().After(entry.deadline) {
		return map[string]string{}, nil
	}
	return copySlots(entry.slots), nil
}

func (s *MemoryStore) Merge(_ context.Context, outlet, userID string, commandID int64, updates map[string]string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(outlet, userID, commandID)
	current := map[string]string{}
	if entry, ok := s.entries[key]; ok && !s.now().After(entry.deadline) {
		current = entry.slots
	}

	merged := mergeSlots(current, updates)
	s.entries[key] = memoryEntry{slots: merged, deadline: s.now().Add(TTL)}
	return copySlots(merged), nil
}

func copySlots(slots map[string]string) map[string]string {
	out := make(map[string]string, len(slots))
	for k, v := range slots {
		out[k] = v
	}
	return out
}
