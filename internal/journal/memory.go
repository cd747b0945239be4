package journal

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(_ context.Context, e Entry) error {
	e = normalize(e)
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

// List returns the newest entries first. An empty username lists everyone.
func (s *MemoryStore) List(_ context.Context, username string, limit int) ([]Entry, error) {
	limit = clampLimit(limit)

	s.mu.RLock()
	result := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if username == "" || e.Username == username {
			result = append(result, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
