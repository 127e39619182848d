package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autonum/pkg/apperror"
	"autonum/pkg/schema"
)

func optionOf(t *testing.T, err error) string {
	t.Helper()

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Details["option"].(string)
}

func TestResolveOptions_Defaults(t *testing.T) {
	s := schema.New()
	cfg, err := resolveOptions(Options{}, Options{}, s)
	require.NoError(t, err)

	assert.Equal(t, schema.DefaultIDField, cfg.field)
	assert.Equal(t, int64(1), cfg.incrementBy)
	assert.Equal(t, int64(1), cfg.startAt)
	assert.Equal(t, DefaultNextName, cfg.nextName)
	assert.Equal(t, DefaultResetName, cfg.resetName)
	assert.True(t, cfg.unique)
	assert.Equal(t, int64(0), cfg.initial)
}

func TestResolveOptions_InitialStoredValue(t *testing.T) {
	cfg, err := resolveOptions(Options{StartAt: Int64(5), IncrementBy: Int64(2)}, Options{}, schema.New())
	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.initial, "first increment must yield startAt")

	cfg, err = resolveOptions(Options{StartAt: Int64(0), IncrementBy: Int64(-1)}, Options{}, schema.New())
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.initial)
}

func TestResolveOptions_RegistryDefaultsApply(t *testing.T) {
	defaults := Options{
		Field:       "number",
		IncrementBy: Int64(10),
		NextCount:   "peek",
		Unique:      Bool(false),
	}
	cfg, err := resolveOptions(Options{StartAt: Int64(100)}, defaults, schema.New())
	require.NoError(t, err)

	assert.Equal(t, "number", cfg.field)
	assert.Equal(t, int64(10), cfg.incrementBy)
	assert.Equal(t, int64(100), cfg.startAt)
	assert.Equal(t, "peek", cfg.nextName)
	assert.False(t, cfg.unique)
}

func TestResolveOptions_ValidationOrder(t *testing.T) {
	// Several options invalid at once: the first in the fixed order wins.
	_, err := resolveOptions(Options{
		Field:       "$bad",
		IncrementBy: Int64(0),
		NextCount:   "a.b",
	}, Options{}, schema.New())
	require.Error(t, err)
	assert.Equal(t, "field", optionOf(t, err))

	_, err = resolveOptions(Options{
		IncrementBy: Int64(0),
		NextCount:   "a.b",
	}, Options{}, schema.New())
	require.Error(t, err)
	assert.Equal(t, "incrementBy", optionOf(t, err))

	_, err = resolveOptions(Options{
		NextCount:  "a.b",
		ResetCount: "$r",
	}, Options{}, schema.New())
	require.Error(t, err)
	assert.Equal(t, "nextCount", optionOf(t, err))

	_, err = resolveOptions(Options{ResetCount: "$r"}, Options{}, schema.New())
	require.Error(t, err)
	assert.Equal(t, "resetCount", optionOf(t, err))
}

func TestResolveOptions_AccessorNameRules(t *testing.T) {
	// Accessor names must not collide with each other
	_, err := resolveOptions(Options{NextCount: "seq", ResetCount: "seq"}, Options{}, schema.New())
	require.Error(t, err)
	assert.Equal(t, "resetCount", optionOf(t, err))

	// ...or with anything already attached to the schema
	s := schema.New()
	require.NoError(t, s.Static("taken", nil))
	_, err = resolveOptions(Options{NextCount: "taken"}, Options{}, s)
	require.Error(t, err)
	assert.Equal(t, "nextCount", optionOf(t, err))

	// Disabling skips both defaulting and validation
	cfg, err := resolveOptions(Options{DisableNextCount: true, DisableResetCount: true}, Options{}, s)
	require.NoError(t, err)
	assert.Empty(t, cfg.nextName)
	assert.Empty(t, cfg.resetName)
}

func TestResolveOptions_NegativeIncrement(t *testing.T) {
	cfg, err := resolveOptions(Options{IncrementBy: Int64(-3), StartAt: Int64(-1)}, Options{}, schema.New())
	require.NoError(t, err)
	assert.Equal(t, int64(-3), cfg.incrementBy)
	assert.Equal(t, int64(-1), cfg.startAt)
	assert.Equal(t, int64(2), cfg.initial)
}
