package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kdcokenny/opencode-background-agents/core"
)

// InMemoryStore is a trivial in-process ResultStore implementation useful for
// tests, examples and single-process prototypes. It keeps all records in a
// nested map guarded by an RWMutex. Records are value types, so reads hand
// out copies naturally.
//
// Layout: scope -> id -> record
//
// This implementation does not survive restarts; production deployments
// should use FilesystemStore or the sqlite subpackage.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]core.ResultRecord
}

// NewInMemoryStore returns an empty in-memory result store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]map[string]core.ResultRecord)}
}

// Put stores (or overwrites) the record under (scope, rec.ID).
func (s *InMemoryStore) Put(_ context.Context, scope string, rec core.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[scope]; !exists {
		s.records[scope] = make(map[string]core.ResultRecord)
	}
	s.records[scope][rec.ID] = rec
	return nil
}

// Get returns the stored record or core.ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, scope, id string) (core.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.records[scope]
	if !ok {
		return core.ResultRecord{}, core.ErrNotFound
	}
	rec, ok := m[id]
	if !ok {
		return core.ResultRecord{}, core.ErrNotFound
	}
	return rec, nil
}

// List returns the scope's records sorted by id. The slice is a snapshot and
// safe for caller mutation.
func (s *InMemoryStore) List(_ context.Context, scope string) ([]core.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.records[scope]
	if !ok {
		return []core.ResultRecord{}, nil
	}
	recs := make([]core.ResultRecord, 0, len(m))
	for _, rec := range m {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// Delete removes the record if present or returns core.ErrNotFound.
func (s *InMemoryStore) Delete(_ context.Context, scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[scope]
	if !ok {
		return core.ErrNotFound
	}
	if _, ok := m[id]; !ok {
		return core.ErrNotFound
	}
	delete(m, id)
	return nil
}
