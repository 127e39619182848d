// Package counter provides the domain contract for scope-keyed numeric
// counters. Implementations live under pkg/storage.
package counter

import "context"

// Scope identifies one counter: the target field name plus the owning
// model/collection name. At most one Record exists per Scope.
type Scope struct {
	Field string
	Model string
}

// String renders the scope for logging and error details.
func (s Scope) String() string {
	return s.Field + "@" + s.Model
}

// Record is the persisted state of one Scope.
type Record struct {
	Field string `db:"field_name"`
	Model string `db:"model_name"`
	Value int64  `db:"value"`
}

// Store is the domain contract for durable, race-free counter storage.
// Stored values are mutated only through the atomic operations below —
// callers never compute a next value by reading and writing in two steps.
//
// Every operation may fail with a STORE_UNAVAILABLE apperror on backend
// failure; there is no retry at this layer.
type Store interface {
	// FindScope looks up the record by its unique key. Absence is a
	// NOT_FOUND apperror.
	FindScope(ctx context.Context, sc Scope) (*Record, error)

	// CreateScope inserts a new record. If another process provisioned the
	// same scope concurrently the result is a DUPLICATE_SCOPE apperror;
	// callers treat that as success, the scope exists either way.
	CreateScope(ctx context.Context, sc Scope, initial int64) error

	// IncrementAndFetch atomically adds delta to the stored value and
	// returns the post-increment value. An absent scope is created in the
	// same indivisible operation with delta applied to a zero baseline.
	// Two concurrent callers with delta=1 against an absent scope observe
	// 1 and 2 in some order, never the same value twice.
	IncrementAndFetch(ctx context.Context, sc Scope, delta int64) (int64, error)

	// SetIfGreater atomically raises the stored value to candidate when
	// candidate exceeds it, otherwise leaves the value untouched. An
	// absent scope is created holding candidate.
	SetIfGreater(ctx context.Context, sc Scope, candidate int64) error

	// ResetScope atomically sets (upserting if absent) the stored value.
	ResetScope(ctx context.Context, sc Scope, value int64) error

	// ReadScope returns the stored value without mutating it. Absence is
	// a NOT_FOUND apperror.
	ReadScope(ctx context.Context, sc Scope) (int64, error)
}
