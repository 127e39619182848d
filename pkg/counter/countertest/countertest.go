// Package countertest runs the counter.Store contract against any backend.
// Each storage implementation's test suite calls Run with a factory so all
// backends prove the same atomicity and error semantics.
package countertest

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"autonum/pkg/apperror"
	"autonum/pkg/counter"
)

// Factory returns a ready Store. Implementations may share backing state
// between calls; subtests isolate themselves through unique scope names.
type Factory func(t *testing.T) counter.Store

func freshScope() counter.Scope {
	return counter.Scope{Field: "_id", Model: "m-" + uuid.NewString()}
}

// Run executes the full contract suite against the backend.
func Run(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("increment upserts from zero baseline", func(t *testing.T) {
		store := factory(t)
		sc := freshScope()

		v, err := store.IncrementAndFetch(ctx, sc, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)

		v, err = store.IncrementAndFetch(ctx, sc, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), v)
	})

	t.Run("increment applies custom and negative deltas", func(t *testing.T) {
		store := factory(t)
		sc := freshScope()

		v, err := store.IncrementAndFetch(ctx, sc, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), v)

		v, err = store.IncrementAndFetch(ctx, sc, -2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	})

	t.Run("concurrent increments return distinct contiguous values", func(t *testing.T) {
		store := factory(t)
		sc := freshScope()

		const n = 32
		results := make(chan int64, n)
		var g errgroup.Group
		for i := 0; i < n; i++ {
			g.Go(func() error {
				v, err := store.IncrementAndFetch(ctx, sc, 1)
				if err != nil {
					return err
				}
				results <- v
				return nil
			})
		}
		require.NoError(t, g.Wait())
		close(results)

		var got []int64
		for v := range results {
			got = append(got, v)
		}
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		require.Len(t, got, n)
		for i, v := range got {
			assert.Equal(t, int64(i+1), v, "values must be gapless and unique")
		}
	})

	t.Run("create reports duplicate on second attempt", func(t *testing.T) {
		store := factory(t)
		sc := freshScope()

		require.NoError(t, store.CreateScope(ctx, sc, 0))
		err := store.CreateScope(ctx, sc, 0)
		require.Error(t, err)
		assert.True(t, apperror.IsDuplicateScope(err), "got %v", err)
	})

	t.Run("find distinguishes absent from provisioned", func(t *testing.T) {
		store := factory(t)
		sc := freshScope()

		_, err := store.FindScope(ctx, sc)
		require.Error(t, err)
		assert.True(t, apperror.IsNotFound(err), "got %v", err)

		require.NoError(t, store.CreateScope(ctx, sc, 4))
		rec, err := store.FindScope(ctx, sc)
		require.NoError(t, err)
		assert.Equal(t, sc.Field, rec.Field)
		assert.Equal(t, sc.Model, rec.Model)
		assert.Equal(t, int64(4), rec.Value)
	})

	t.Run("read is non-mutating", func(t *testing.T) {
		store := factory(t)
		sc := freshScope()

		_, err := store.ReadScope(ctx, sc)
		require.Error(t, err)
		assert.True(t, apperror.IsNotFound(err), "got %v", err)

		require.NoError(t, store.CreateScope(ctx, sc, 7))
		for i := 0; i < 2; i++ {
			v, err := store.ReadScope(ctx, sc)
			require.NoError(t, err)
			assert.Equal(t, int64(7), v)
		}
	})

	t.Run("set if greater raises the stored value", func(t *testing.T) {
		store := factory(t)
		sc := freshScope()

		require.NoError(t, store.CreateScope(ctx, sc, 3))
		require.NoError(t, store.SetIfGreater(ctx, sc, 10))

		v, err := store.ReadScope(ctx, sc)
		require.NoError(t, err)
		assert.Equal(t, int64(10), v)
	})

	t.Run("set if greater ignores lower candidates", func(t *testing.T) {
		store := factory(t)
		sc := freshScope()

		require.NoError(t, store.CreateScope(ctx, sc, 10))
		require.NoError(t, store.SetIfGreater(ctx, sc, 2))

		v, err := store.ReadScope(ctx, sc)
		require.NoError(t, err)
		assert.Equal(t, int64(10), v)
	})

	t.Run("set if greater upserts an absent scope", func(t *testing.T) {
		store := factory(t)
		sc := freshScope()

		require.NoError(t, store.SetIfGreater(ctx, sc, 6))
		v, err := store.ReadScope(ctx, sc)
		require.NoError(t, err)
		assert.Equal(t, int64(6), v)
	})

	t.Run("reset overwrites and upserts", func(t *testing.T) {
		store := factory(t)
		sc := freshScope()

		require.NoError(t, store.ResetScope(ctx, sc, 0))
		v, err := store.ReadScope(ctx, sc)
		require.NoError(t, err)
		assert.Equal(t, int64(0), v)

		_, err = store.IncrementAndFetch(ctx, sc, 1)
		require.NoError(t, err)
		require.NoError(t, store.ResetScope(ctx, sc, 0))
		v, err = store.ReadScope(ctx, sc)
		require.NoError(t, err)
		assert.Equal(t, int64(0), v)
	})

	t.Run("scopes are isolated by field and model", func(t *testing.T) {
		store := factory(t)
		base := freshScope()
		sameModel := counter.Scope{Field: "seq", Model: base.Model}
		sameField := counter.Scope{Field: base.Field, Model: base.Model + "-other"}

		_, err := store.IncrementAndFetch(ctx, base, 1)
		require.NoError(t, err)
		_, err = store.IncrementAndFetch(ctx, sameModel, 100)
		require.NoError(t, err)
		_, err = store.IncrementAndFetch(ctx, sameField, 1000)
		require.NoError(t, err)

		v, err := store.ReadScope(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
		v, err = store.ReadScope(ctx, sameModel)
		require.NoError(t, err)
		assert.Equal(t, int64(100), v)
		v, err = store.ReadScope(ctx, sameField)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), v)
	})
}
