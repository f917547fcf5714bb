package evolve

import (
	"context"
	"runtime"
	"testing"

	"github.com/gasparian/lsh-evolve-go/fitness"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/neighbors"
	"github.com/gasparian/lsh-evolve-go/points"
	"github.com/gasparian/lsh-evolve-go/store/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meanScore(hfs []lsh.HashFunction) float64 {
	var sum float64
	for _, hf := range hfs {
		// undefined score means nothing collided
		if s, ok := hf.Score(); ok {
			sum += s
		}
	}
	return sum / float64(len(hfs))
}

// Top performers of a random population must beat their bred children on average
func TestTopDominatesChildren(t *testing.T) {
	if testing.Short() {
		t.Skip("heavy scenario")
	}
	ctx := context.Background()
	vecs, err := points.Synthetic(points.SyntheticConfig{
		Count:    5000,
		Dims:     48,
		Clusters: 50,
		Spread:   10,
		Extent:   1000,
		Seed:     7,
	})
	require.NoError(t, err)
	pts, err := points.FromVectors(vecs, points.Euclidean{}, points.Config{Radius: 150, Tolerance: 3, InitialPopulation: 1000})
	require.NoError(t, err)
	cache := neighbors.NewCache(pts, neighbors.DefaultK, nil)
	require.NoError(t, cache.Precompute(ctx, runtime.NumCPU(), nil))

	hasher := lsh.Config{
		MeanMin:   -1,
		MeanMax:   1,
		StdMin:    0.1,
		StdMax:    1,
		WidthMin:  50,
		WidthMax:  2000,
		MacroRate: 0.01,
	}
	ev, err := fitness.New(pts, cache, hasher, fitness.DefaultConfig(), nil)
	require.NoError(t, err)
	st := kv.NewKVStore()
	config := DefaultConfig()
	config.Seed = 1
	e, err := New(st, ev, hasher, pts.Dimension(), config, nil)
	require.NoError(t, err)

	res, err := e.Step(ctx)
	require.NoError(t, err)
	require.Equal(t, PhaseGrow, res.Phase)
	require.Equal(t, 1000, res.Tested)

	top, err := st.Top(ctx, config.TopParents)
	require.NoError(t, err)
	fresh, err := e.fresh(ctx, config.FreshParents)
	require.NoError(t, err)
	parents := e.breedable(append(top, fresh...))
	require.GreaterOrEqual(t, len(parents), 2)

	rng := e.newRng()
	children := make([]lsh.HashFunction, 0, 100)
	for len(children) < 100 {
		i, j := rng.IntN(len(parents)), rng.IntN(len(parents))
		if i == j {
			continue
		}
		child, ok, err := lsh.Breed(rng, hasher, parents[i], parents[j])
		require.NoError(t, err)
		if !ok {
			continue
		}
		_, err = ev.Test(ctx, rng, &child, fitness.Options{})
		require.NoError(t, err)
		children = append(children, child)
	}

	best, err := st.Top(ctx, 20)
	require.NoError(t, err)
	require.Len(t, best, 20)
	assert.Greater(t, meanScore(best), meanScore(children))
}
