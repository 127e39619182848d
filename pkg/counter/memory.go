package counter

import (
	"context"
	"sync"

	"autonum/pkg/apperror"
)

// MemoryStore is a process-local Store backed by a mutex-guarded map.
// It backs single-process deployments and most of the test suite.
type MemoryStore struct {
	mu     sync.Mutex
	values map[Scope]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[Scope]int64)}
}

// FindScope implements Store.
func (m *MemoryStore) FindScope(_ context.Context, sc Scope) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[sc]
	if !ok {
		return nil, apperror.NewNotFound("counter scope", sc.String())
	}
	return &Record{Field: sc.Field, Model: sc.Model, Value: v}, nil
}

// CreateScope implements Store.
func (m *MemoryStore) CreateScope(_ context.Context, sc Scope, initial int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.values[sc]; ok {
		return apperror.NewDuplicateScope(sc.Field, sc.Model)
	}
	m.values[sc] = initial
	return nil
}

// IncrementAndFetch implements Store.
func (m *MemoryStore) IncrementAndFetch(_ context.Context, sc Scope, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[sc] += delta
	return m.values[sc], nil
}

// SetIfGreater implements Store.
func (m *MemoryStore) SetIfGreater(_ context.Context, sc Scope, candidate int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.values[sc]; !ok || candidate > cur {
		m.values[sc] = candidate
	}
	return nil
}

// ResetScope implements Store.
func (m *MemoryStore) ResetScope(_ context.Context, sc Scope, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[sc] = value
	return nil
}

// ReadScope implements Store.
func (m *MemoryStore) ReadScope(_ context.Context, sc Scope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[sc]
	if !ok {
		return 0, apperror.NewNotFound("counter scope", sc.String())
	}
	return v, nil
}

// Ensure compile-time interface compliance.
var _ Store = (*MemoryStore)(nil)
