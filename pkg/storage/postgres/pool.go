// Package postgres implements counter.Store on PostgreSQL. Atomicity comes
// from single-statement upserts (INSERT ... ON CONFLICT DO UPDATE ... RETURNING),
// so no transaction or in-process lock is needed per operation.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autonum/internal/envutil"
)

// PoolConfig holds connection pool settings. Zero fields fall back to
// defaults sized for a counter workload: many tiny statements, no long
// transactions.
type PoolConfig struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

func (c *PoolConfig) applyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MinConns == 0 {
		c.MinConns = 5
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
}

// PoolConfigFromEnv builds a pool configuration from AUTONUM_* variables.
func PoolConfigFromEnv() PoolConfig {
	return PoolConfig{
		DSN:             envutil.Get("AUTONUM_DATABASE_URL", ""),
		MaxConns:        int32(envutil.GetInt("AUTONUM_DB_MAX_CONNS", 0)),
		MinConns:        int32(envutil.GetInt("AUTONUM_DB_MIN_CONNS", 0)),
		MaxConnLifetime: envutil.GetDuration("AUTONUM_DB_CONN_LIFETIME", 0),
		MaxConnIdleTime: envutil.GetDuration("AUTONUM_DB_CONN_IDLE_TIME", 0),
	}
}

// Pool is a pgxpool.Pool configured for the counter store. It satisfies
// Querier, so NewStore can take it directly.
type Pool struct {
	*pgxpool.Pool
}

// Close closes all connections in the pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// NewPool connects with the given configuration and verifies the connection
// before returning.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	cfg.applyDefaults()

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET application_name = 'autonum'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}
