// Package store persists the price resolution log.
package store

import (
	"context"
	"sync"

	"bullion/internal/metal"
	"bullion/internal/pricing"
	"bullion/pkg/platform/sentinel"
)

type historyKey struct {
	metal  metal.Metal
	purity metal.Purity
}

// InMemoryHistory keeps the resolution log in process, newest last.
type InMemoryHistory struct {
	mu      sync.RWMutex
	entries map[historyKey][]pricing.HistoryEntry
}

func NewInMemoryHistory() *InMemoryHistory {
	return &InMemoryHistory{entries: make(map[historyKey][]pricing.HistoryEntry)}
}

func (s *InMemoryHistory) Append(_ context.Context, entry pricing.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := historyKey{entry.Metal, entry.Purity}
	s.entries[k] = append(s.entries[k], entry)
	return nil
}

func (s *InMemoryHistory) Latest(_ context.Context, m metal.Metal, p metal.Purity) (*pricing.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.entries[historyKey{m, p}]
	if len(list) == 0 {
		return nil, sentinel.ErrNotFound
	}
	last := list[len(list)-1]
	return &last, nil
}

func (s *InMemoryHistory) List(_ context.Context, m metal.Metal, p metal.Purity, limit int) ([]pricing.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.entries[historyKey{m, p}]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]pricing.HistoryEntry, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}
