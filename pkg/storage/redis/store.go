// Package redis implements counter.Store on Redis. Each scope maps to one
// key; atomicity comes from INCRBY, SETNX, and a small Lua script for the
// conditional set.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"autonum/internal/envutil"
	"autonum/pkg/apperror"
	"autonum/pkg/counter"
)

// DefaultKeyPrefix namespaces counter keys unless overridden.
const DefaultKeyPrefix = "autonum:"

// setIfGreater raises the key to the candidate only when the candidate
// exceeds the stored value, creating the key when absent.
var setIfGreaterScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur == false or tonumber(ARGV[1]) > tonumber(cur) then
    redis.call('SET', KEYS[1], ARGV[1])
end
return 0
`)

// Config holds Redis connection settings.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// ConfigFromEnv builds a configuration from AUTONUM_* variables.
func ConfigFromEnv() Config {
	return Config{
		Addr:      envutil.Get("AUTONUM_REDIS_ADDR", "localhost:6379"),
		Password:  envutil.Get("AUTONUM_REDIS_PASSWORD", ""),
		DB:        envutil.GetInt("AUTONUM_REDIS_DB", 0),
		KeyPrefix: envutil.Get("AUTONUM_REDIS_KEY_PREFIX", DefaultKeyPrefix),
	}
}

// Store implements counter.Store on a Redis client.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a counter store over an existing client.
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Connect dials Redis from the configuration and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, apperror.NewUnavailable(fmt.Errorf("connect to redis: %w", err))
	}

	return NewStore(client, cfg.KeyPrefix), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ensure compile-time interface compliance.
var _ counter.Store = (*Store)(nil)

func (s *Store) key(sc counter.Scope) string {
	return s.prefix + sc.Model + ":" + sc.Field
}

// FindScope implements counter.Store.
func (s *Store) FindScope(ctx context.Context, sc counter.Scope) (*counter.Record, error) {
	v, err := s.client.Get(ctx, s.key(sc)).Int64()
	if err != nil {
		return nil, mapError(err, sc)
	}
	return &counter.Record{Field: sc.Field, Model: sc.Model, Value: v}, nil
}

// CreateScope implements counter.Store.
func (s *Store) CreateScope(ctx context.Context, sc counter.Scope, initial int64) error {
	created, err := s.client.SetNX(ctx, s.key(sc), initial, 0).Result()
	if err != nil {
		return apperror.NewUnavailable(err)
	}
	if !created {
		return apperror.NewDuplicateScope(sc.Field, sc.Model)
	}
	return nil
}

// IncrementAndFetch implements counter.Store. INCRBY treats an absent key as
// zero and is atomic on the server, which is exactly the upsert-increment
// contract.
func (s *Store) IncrementAndFetch(ctx context.Context, sc counter.Scope, delta int64) (int64, error) {
	v, err := s.client.IncrBy(ctx, s.key(sc), delta).Result()
	if err != nil {
		return 0, apperror.NewUnavailable(err)
	}
	return v, nil
}

// SetIfGreater implements counter.Store.
func (s *Store) SetIfGreater(ctx context.Context, sc counter.Scope, candidate int64) error {
	if err := setIfGreaterScript.Run(ctx, s.client, []string{s.key(sc)}, candidate).Err(); err != nil {
		return apperror.NewUnavailable(err)
	}
	return nil
}

// ResetScope implements counter.Store.
func (s *Store) ResetScope(ctx context.Context, sc counter.Scope, value int64) error {
	if err := s.client.Set(ctx, s.key(sc), value, 0).Err(); err != nil {
		return apperror.NewUnavailable(err)
	}
	return nil
}

// ReadScope implements counter.Store.
func (s *Store) ReadScope(ctx context.Context, sc counter.Scope) (int64, error) {
	v, err := s.client.Get(ctx, s.key(sc)).Int64()
	if err != nil {
		return 0, mapError(err, sc)
	}
	return v, nil
}

func mapError(err error, sc counter.Scope) error {
	if errors.Is(err, redis.Nil) {
		return apperror.NewNotFound("counter scope", sc.String())
	}
	return apperror.NewUnavailable(err)
}
