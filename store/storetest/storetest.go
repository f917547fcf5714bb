// Package storetest holds the behaviour every population backend has to share
package storetest

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generated(t *testing.T, seed uint64) lsh.HashFunction {
	t.Helper()
	params, err := lsh.Generate(rand.New(rand.NewPCG(seed, 1)), lsh.DefaultConfig(), 4, nil, nil)
	require.NoError(t, err)
	return lsh.NewGenerated(params, lsh.NoParent, lsh.NoParent, 0)
}

// Run checks a freshly created empty backend
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("CreateGet", func(t *testing.T) {
		s := newStore(t)
		pending := lsh.NewPending(nil, nil)
		id1, err := s.Create(ctx, pending)
		require.NoError(t, err)
		id2, err := s.Create(ctx, generated(t, 1))
		require.NoError(t, err)
		assert.NotEqual(t, lsh.NoParent, id1)
		assert.Greater(t, id2, id1)

		got, err := s.Get(ctx, id2)
		require.NoError(t, err)
		assert.Equal(t, id2, got.ID)
		assert.True(t, got.IsGenerated())
		assert.False(t, got.Fitness().IsTested())

		_, err = s.Get(ctx, id2+100)
		assert.True(t, errors.Is(err, store.ErrNotFound))

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("UpdateFitnessKeepsLineage", func(t *testing.T) {
		s := newStore(t)
		fatherID, err := s.Create(ctx, generated(t, 2))
		require.NoError(t, err)
		child := generated(t, 3)
		child.Father, child.Generation = fatherID, 1
		childID, err := s.Create(ctx, child)
		require.NoError(t, err)

		updated, err := s.Get(ctx, childID)
		require.NoError(t, err)
		updated.Father, updated.Generation = lsh.NoParent, 0
		updated.SetFitness(lsh.Tested(2, 1.5, 0.25, 200, false))
		require.NoError(t, s.UpdateFitness(ctx, updated))

		got, err := s.Get(ctx, childID)
		require.NoError(t, err)
		assert.Equal(t, fatherID, got.Father)
		assert.Equal(t, 1, got.Generation)
		score, ok := got.Score()
		require.True(t, ok)
		assert.InDelta(t, 1.25, score, 1e-12)

		missing := generated(t, 4)
		missing.ID = childID + 100
		assert.True(t, errors.Is(s.UpdateFitness(ctx, missing), store.ErrNotFound))
	})

	t.Run("PendingGetsParamsOnUpdate", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Create(ctx, lsh.NewPending(nil, nil))
		require.NoError(t, err)
		hf, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.NoError(t, hf.EnsureGenerated(rand.New(rand.NewPCG(5, 5)), lsh.DefaultConfig(), 4))
		hf.SetFitness(lsh.Tested(0, 0, 0, 200, false))
		require.NoError(t, s.UpdateFitness(ctx, hf))

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.IsGenerated())
		assert.True(t, got.Fitness().IsTested())
		_, ok := got.Score()
		assert.False(t, ok)
	})

	t.Run("UntestedAndTop", func(t *testing.T) {
		s := newStore(t)
		scores := []float64{0.5, 3, -1, 2}
		var ids []lsh.ID
		for i, score := range scores {
			hf := generated(t, uint64(10+i))
			hf.SetFitness(lsh.Tested(5, 5+score, 5, 200, false))
			id, err := s.Create(ctx, hf)
			require.NoError(t, err)
			ids = append(ids, id)
		}
		zero := generated(t, 20)
		zero.SetFitness(lsh.Tested(0, 0, 0, 200, false))
		_, err := s.Create(ctx, zero)
		require.NoError(t, err)
		var untested []lsh.ID
		for i := 0; i < 3; i++ {
			id, err := s.Create(ctx, lsh.NewPending(nil, nil))
			require.NoError(t, err)
			untested = append(untested, id)
		}

		top, err := s.Top(ctx, 3)
		require.NoError(t, err)
		require.Len(t, top, 3)
		assert.Equal(t, []lsh.ID{ids[1], ids[3], ids[0]}, []lsh.ID{top[0].ID, top[1].ID, top[2].ID})

		all, err := s.Top(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		assert.Equal(t, ids[2], all[3].ID)

		score, ok, err := store.ScoreAt(ctx, s, 2)
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDelta(t, 2, score, 1e-12)
		_, ok, err = store.ScoreAt(ctx, s, 10)
		require.NoError(t, err)
		assert.False(t, ok)

		pending, err := s.Untested(ctx, 2)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, untested[:2], []lsh.ID{pending[0].ID, pending[1].ID})
		pending, err = s.Untested(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, pending, 3)
	})

	t.Run("ScanExportImport", func(t *testing.T) {
		s := newStore(t)
		a := generated(t, 30)
		a.SetFitness(lsh.Tested(3, 2, 1, 200, false))
		aID, err := s.Create(ctx, a)
		require.NoError(t, err)
		b := generated(t, 31)
		b.SetFitness(lsh.Tested(3, 3, 1, 120, true))
		bID, err := s.Create(ctx, b)
		require.NoError(t, err)
		child := generated(t, 32)
		child.Father, child.Mother, child.Generation = bID, aID, 1
		_, err = s.Create(ctx, child)
		require.NoError(t, err)

		var seen []lsh.ID
		require.NoError(t, s.Scan(ctx, func(hf lsh.HashFunction) error {
			seen = append(seen, hf.ID)
			return nil
		}))
		assert.Len(t, seen, 3)
		for i := 1; i < len(seen); i++ {
			assert.Greater(t, seen[i], seen[i-1])
		}

		snap, err := store.Export(ctx, s, "run")
		require.NoError(t, err)
		target := newStore(t)
		n, err := store.Import(ctx, target, snap)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		restored, err := target.Top(ctx, 1)
		require.NoError(t, err)
		require.Len(t, restored, 1)
		assert.True(t, restored[0].Fitness().EarlyExit())
		kids, err := target.Untested(ctx, 0)
		require.NoError(t, err)
		require.Len(t, kids, 1)
		father, err := target.Get(ctx, kids[0].Father)
		require.NoError(t, err)
		assert.Equal(t, restored[0].ID, father.ID)

		stop := errors.New("stop")
		calls := 0
		err = s.Scan(ctx, func(lsh.HashFunction) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}
