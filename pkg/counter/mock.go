package counter

import (
	"context"
	"sync/atomic"

	"autonum/pkg/apperror"
)

// Mock is a test implementation of Store.
// Use in unit tests to avoid backend dependencies. Each operation counts its
// invocations before delegating so tests can assert how often provisioning
// touched the store.
type Mock struct {
	FindScopeFunc         func(ctx context.Context, sc Scope) (*Record, error)
	CreateScopeFunc       func(ctx context.Context, sc Scope, initial int64) error
	IncrementAndFetchFunc func(ctx context.Context, sc Scope, delta int64) (int64, error)
	SetIfGreaterFunc      func(ctx context.Context, sc Scope, candidate int64) error
	ResetScopeFunc        func(ctx context.Context, sc Scope, value int64) error
	ReadScopeFunc         func(ctx context.Context, sc Scope) (int64, error)

	FindScopeCalls         atomic.Int64
	CreateScopeCalls       atomic.Int64
	IncrementAndFetchCalls atomic.Int64
	SetIfGreaterCalls      atomic.Int64
	ResetScopeCalls        atomic.Int64
	ReadScopeCalls         atomic.Int64
}

// FindScope implements Store.
func (m *Mock) FindScope(ctx context.Context, sc Scope) (*Record, error) {
	m.FindScopeCalls.Add(1)
	if m.FindScopeFunc != nil {
		return m.FindScopeFunc(ctx, sc)
	}
	// Default: scope was never provisioned
	return nil, apperror.NewNotFound("counter scope", sc.String())
}

// CreateScope implements Store.
func (m *Mock) CreateScope(ctx context.Context, sc Scope, initial int64) error {
	m.CreateScopeCalls.Add(1)
	if m.CreateScopeFunc != nil {
		return m.CreateScopeFunc(ctx, sc, initial)
	}
	return nil
}

// IncrementAndFetch implements Store.
func (m *Mock) IncrementAndFetch(ctx context.Context, sc Scope, delta int64) (int64, error) {
	m.IncrementAndFetchCalls.Add(1)
	if m.IncrementAndFetchFunc != nil {
		return m.IncrementAndFetchFunc(ctx, sc, delta)
	}
	return delta, nil
}

// SetIfGreater implements Store.
func (m *Mock) SetIfGreater(ctx context.Context, sc Scope, candidate int64) error {
	m.SetIfGreaterCalls.Add(1)
	if m.SetIfGreaterFunc != nil {
		return m.SetIfGreaterFunc(ctx, sc, candidate)
	}
	return nil
}

// ResetScope implements Store.
func (m *Mock) ResetScope(ctx context.Context, sc Scope, value int64) error {
	m.ResetScopeCalls.Add(1)
	if m.ResetScopeFunc != nil {
		return m.ResetScopeFunc(ctx, sc, value)
	}
	return nil
}

// ReadScope implements Store.
func (m *Mock) ReadScope(ctx context.Context, sc Scope) (int64, error) {
	m.ReadScopeCalls.Add(1)
	if m.ReadScopeFunc != nil {
		return m.ReadScopeFunc(ctx, sc)
	}
	return 0, apperror.NewNotFound("counter scope", sc.String())
}

// Ensure compile-time interface compliance.
var _ Store = (*Mock)(nil)
