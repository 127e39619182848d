package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolConfig_ApplyDefaults(t *testing.T) {
	cfg := PoolConfig{DSN: "postgres://localhost/autonum"}
	cfg.applyDefaults()

	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Equal(t, int32(5), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnIdleTime)
	assert.Equal(t, time.Minute, cfg.HealthCheckPeriod)
}

func TestPoolConfig_ExplicitValuesSurvive(t *testing.T) {
	cfg := PoolConfig{
		MaxConns:        3,
		MaxConnLifetime: 10 * time.Minute,
	}
	cfg.applyDefaults()

	assert.Equal(t, int32(3), cfg.MaxConns)
	assert.Equal(t, 10*time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, int32(5), cfg.MinConns)
}
