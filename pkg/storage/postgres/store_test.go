package postgres

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autonum/internal/envutil"
	"autonum/pkg/apperror"
	"autonum/pkg/counter"
	"autonum/pkg/counter/countertest"
)

// mockQuerier simulates the counter table by interpreting the exact SQL
// shapes the store issues, so the contract suite runs without a database.
type mockQuerier struct {
	mu     sync.Mutex
	values map[counter.Scope]int64
	fail   error // when set, every operation returns this error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{values: make(map[counter.Scope]int64)}
}

type mockRow struct {
	val int64
	err error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = r.val
		}
	}
	return nil
}

// mockRows implements just enough of pgx.Rows for pgxscan to map one record.
type mockRows struct {
	fields []string
	rows   [][]any
	idx    int
}

func (r *mockRows) Close() {}

func (r *mockRows) Err() error { return nil }

func (r *mockRows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag("SELECT 1")
}

func (r *mockRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription {
	descs := make([]pgconn.FieldDescription, len(r.fields))
	for i, name := range r.fields {
		descs[i] = pgconn.FieldDescription{Name: name}
	}
	return descs
}
func (r *mockRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = row[i].(string)
		case *int64:
			*ptr = row[i].(int64)
		}
	}
	return nil
}
func (r *mockRows) Values() ([]any, error) { return r.rows[r.idx-1], nil }

func (r *mockRows) RawValues() [][]byte { return nil }

func (r *mockRows) Conn() *pgx.Conn { return nil }

func scopeFromArgs(args []any) counter.Scope {
	return counter.Scope{Field: args[0].(string), Model: args[1].(string)}
}

func (m *mockQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return pgconn.CommandTag{}, m.fail
	}
	if strings.Contains(sql, "CREATE TABLE") {
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	}

	sc := scopeFromArgs(args)
	val := args[2].(int64)
	switch {
	case strings.Contains(sql, "GREATEST"):
		if cur, ok := m.values[sc]; !ok || val > cur {
			m.values[sc] = val
		}
	case strings.Contains(sql, "ON CONFLICT"):
		m.values[sc] = val
	default:
		// Plain insert backing CreateScope
		if _, ok := m.values[sc]; ok {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: codeUniqueViolation}
		}
		m.values[sc] = val
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockQuerier) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return nil, m.fail
	}
	rows := &mockRows{fields: []string{"field_name", "model_name", "value"}}
	sc := scopeFromArgs(args)
	if v, ok := m.values[sc]; ok {
		rows.rows = append(rows.rows, []any{sc.Field, sc.Model, v})
	}
	return rows, nil
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return &mockRow{err: m.fail}
	}
	sc := scopeFromArgs(args)
	if strings.Contains(sql, "RETURNING") {
		m.values[sc] += args[2].(int64)
		return &mockRow{val: m.values[sc]}
	}
	v, ok := m.values[sc]
	if !ok {
		return &mockRow{err: pgx.ErrNoRows}
	}
	return &mockRow{val: v}
}

func TestStore_Contract(t *testing.T) {
	q := newMockQuerier()
	countertest.Run(t, func(t *testing.T) counter.Store {
		return NewStore(q)
	})
}

func TestStore_MapsBackendFailures(t *testing.T) {
	ctx := context.Background()
	q := newMockQuerier()
	q.fail = &pgconn.PgError{Code: "57P01", Message: "terminating connection"}
	store := NewStore(q)

	sc := counter.Scope{Field: "_id", Model: "Book"}

	_, err := store.FindScope(ctx, sc)
	assert.True(t, apperror.IsUnavailable(err), "got %v", err)

	err = store.CreateScope(ctx, sc, 0)
	assert.True(t, apperror.IsUnavailable(err), "got %v", err)

	_, err = store.IncrementAndFetch(ctx, sc, 1)
	assert.True(t, apperror.IsUnavailable(err), "got %v", err)

	err = store.SetIfGreater(ctx, sc, 5)
	assert.True(t, apperror.IsUnavailable(err), "got %v", err)

	err = store.ResetScope(ctx, sc, 0)
	assert.True(t, apperror.IsUnavailable(err), "got %v", err)

	_, err = store.ReadScope(ctx, sc)
	assert.True(t, apperror.IsUnavailable(err), "got %v", err)
}

func TestStore_CustomTable(t *testing.T) {
	s := NewStore(newMockQuerier(), WithTable("my_counters"))
	assert.Equal(t, "my_counters", s.table)
}

// TestStore_Integration runs the contract suite against a real database when
// AUTONUM_TEST_DATABASE_URL is set.
func TestStore_Integration(t *testing.T) {
	dsn := envutil.Get("AUTONUM_TEST_DATABASE_URL", "")
	if dsn == "" {
		t.Skip("AUTONUM_TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, PoolConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))

	countertest.Run(t, func(t *testing.T) counter.Store {
		return store
	})
}
