package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"autonum/pkg/apperror"
	"autonum/pkg/counter"
)

var tracer = otel.Tracer("autonum/storage/postgres")

// DefaultTable is the counter table name unless overridden.
const DefaultTable = "autonum_counters"

// SQLSTATE for unique constraint violations.
const codeUniqueViolation = "23505"

// Querier is the narrow database surface the store needs. Both *Pool and a
// pgx transaction satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements counter.Store on a PostgreSQL table uniquely keyed by
// (field_name, model_name).
type Store struct {
	q     Querier
	table string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTable overrides the counter table name.
func WithTable(name string) StoreOption {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

// NewStore creates a counter store over the querier.
func NewStore(q Querier, opts ...StoreOption) *Store {
	s := &Store{q: q, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure compile-time interface compliance.
var _ counter.Store = (*Store)(nil)

// EnsureSchema creates the counter table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.q.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			field_name TEXT NOT NULL,
			model_name TEXT NOT NULL,
			value      BIGINT NOT NULL,
			PRIMARY KEY (field_name, model_name)
		)
	`, s.table))
	if err != nil {
		return apperror.NewUnavailable(err)
	}
	return nil
}

// builder returns a squirrel builder with PostgreSQL placeholder format.
func (s *Store) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// FindScope implements counter.Store.
func (s *Store) FindScope(ctx context.Context, sc counter.Scope) (*counter.Record, error) {
	ctx, span := s.startSpan(ctx, "FindScope", sc)
	defer span.End()

	sql, args, err := s.builder().
		Select("field_name", "model_name", "value").
		From(s.table).
		Where(squirrel.Eq{"field_name": sc.Field, "model_name": sc.Model}).
		ToSql()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("build select: %w", err))
	}

	var rec counter.Record
	if err := pgxscan.Get(ctx, s.q, &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("counter scope", sc.String())
		}
		return nil, apperror.NewUnavailable(err)
	}
	return &rec, nil
}

// CreateScope implements counter.Store.
func (s *Store) CreateScope(ctx context.Context, sc counter.Scope, initial int64) error {
	ctx, span := s.startSpan(ctx, "CreateScope", sc)
	defer span.End()

	sql, args, err := s.builder().
		Insert(s.table).
		Columns("field_name", "model_name", "value").
		Values(sc.Field, sc.Model, initial).
		ToSql()
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("build insert: %w", err))
	}

	if _, err := s.q.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return apperror.NewDuplicateScope(sc.Field, sc.Model)
		}
		return apperror.NewUnavailable(err)
	}
	return nil
}

// IncrementAndFetch implements counter.Store. The upsert applies the delta to
// a zero baseline when the scope row is absent and returns the post-increment
// value, all in one statement, so concurrent callers never observe the same
// value for one scope.
func (s *Store) IncrementAndFetch(ctx context.Context, sc counter.Scope, delta int64) (int64, error) {
	ctx, span := s.startSpan(ctx, "IncrementAndFetch", sc)
	defer span.End()

	var value int64
	err := s.q.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (field_name, model_name, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (field_name, model_name) DO UPDATE SET value = %s.value + $3
		RETURNING value
	`, s.table, s.table), sc.Field, sc.Model, delta).Scan(&value)
	if err != nil {
		return 0, apperror.NewUnavailable(err)
	}
	return value, nil
}

// SetIfGreater implements counter.Store.
func (s *Store) SetIfGreater(ctx context.Context, sc counter.Scope, candidate int64) error {
	ctx, span := s.startSpan(ctx, "SetIfGreater", sc)
	defer span.End()

	_, err := s.q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (field_name, model_name, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (field_name, model_name) DO UPDATE SET value = GREATEST(%s.value, EXCLUDED.value)
	`, s.table, s.table), sc.Field, sc.Model, candidate)
	if err != nil {
		return apperror.NewUnavailable(err)
	}
	return nil
}

// ResetScope implements counter.Store.
func (s *Store) ResetScope(ctx context.Context, sc counter.Scope, value int64) error {
	ctx, span := s.startSpan(ctx, "ResetScope", sc)
	defer span.End()

	_, err := s.q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (field_name, model_name, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (field_name, model_name) DO UPDATE SET value = EXCLUDED.value
	`, s.table), sc.Field, sc.Model, value)
	if err != nil {
		return apperror.NewUnavailable(err)
	}
	return nil
}

// ReadScope implements counter.Store.
func (s *Store) ReadScope(ctx context.Context, sc counter.Scope) (int64, error) {
	ctx, span := s.startSpan(ctx, "ReadScope", sc)
	defer span.End()

	sql, args, err := s.builder().
		Select("value").
		From(s.table).
		Where(squirrel.Eq{"field_name": sc.Field, "model_name": sc.Model}).
		ToSql()
	if err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("build select: %w", err))
	}

	var value int64
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.NewNotFound("counter scope", sc.String())
		}
		return 0, apperror.NewUnavailable(err)
	}
	return value, nil
}

func (s *Store) startSpan(ctx context.Context, op string, sc counter.Scope) (context.Context, trace.Span) {
	return tracer.Start(ctx, "counter."+op, trace.WithAttributes(
		attribute.String("counter.field", sc.Field),
		attribute.String("counter.model", sc.Model),
	))
}
