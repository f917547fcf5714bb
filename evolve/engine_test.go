package evolve

import (
	"context"
	"testing"

	"github.com/gasparian/lsh-evolve-go/fitness"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/neighbors"
	"github.com/gasparian/lsh-evolve-go/points"
	"github.com/gasparian/lsh-evolve-go/store"
	"github.com/gasparian/lsh-evolve-go/store/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineHasher draws projections that mostly follow the x axis of linePoints
var lineHasher = lsh.Config{
	MeanMin:   0.8,
	MeanMax:   1.2,
	StdMin:    0.1,
	StdMax:    0.3,
	WidthMin:  1.5,
	WidthMax:  4,
	MacroRate: 0.01,
}

func testEngine(t *testing.T, config Config) (*Engine, store.Store) {
	t.Helper()
	vecs := make([][]float64, 100)
	for i := range vecs {
		vecs[i] = []float64{float64(i), 0}
	}
	pts, err := points.FromVectors(vecs, points.Euclidean{}, points.Config{Radius: 3, Tolerance: 3, InitialPopulation: config.InitialPopulation})
	require.NoError(t, err)
	cache := neighbors.NewCache(pts, 10, nil)
	ev, err := fitness.New(pts, cache, lineHasher, fitness.Config{Trials: 20, FarSetSize: 20, MinTrial: 10, Offset: 0.2}, nil)
	require.NoError(t, err)
	st := kv.NewKVStore()
	e, err := New(st, ev, lineHasher, pts.Dimension(), config, nil)
	require.NoError(t, err)
	return e, st
}

func smallConfig() Config {
	return Config{
		Mode:               Crossover,
		InitialPopulation:  20,
		TopParents:         5,
		FreshParents:       2,
		MutationParents:    3,
		MutationsPerParent: 4,
		Workers:            4,
		Seed:               42,
		EarlyExit:          true,
		TargetRank:         5,
	}
}

func TestPhasesInOrder(t *testing.T) {
	ctx := context.Background()
	e, st := testEngine(t, smallConfig())

	res, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseGrow, res.Phase)
	assert.Equal(t, 20, res.Created)
	assert.Equal(t, 20, res.Tested)
	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, count)

	res, err = e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseSpawn, res.Phase)
	children := res.Created - 2
	assert.Greater(t, children, 0)
	assert.LessOrEqual(t, children+res.Duplicates+res.Invalid, 21)

	untested, err := st.Untested(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, untested, children)
	for _, child := range untested {
		assert.NotEqual(t, lsh.NoParent, child.Father)
		assert.NotEqual(t, lsh.NoParent, child.Mother)
		assert.Equal(t, 1, child.Generation)
		p, ok := child.Params()
		require.True(t, ok)
		assert.True(t, p.B >= 0 && p.B <= p.R)
	}

	res, err = e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseDrain, res.Phase)
	assert.Equal(t, children, res.Tested)
	untested, err = st.Untested(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, untested)
}

func TestDrainHasPriority(t *testing.T) {
	ctx := context.Background()
	e, st := testEngine(t, smallConfig())
	id, err := st.Create(ctx, lsh.NewPending(nil, nil))
	require.NoError(t, err)

	res, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseDrain, res.Phase)
	assert.Equal(t, 1, res.Tested)

	hf, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, hf.IsGenerated())
	assert.True(t, hf.Fitness().IsTested())
	assert.Equal(t, 20, hf.Fitness().Trials())
}

func TestMutationMode(t *testing.T) {
	ctx := context.Background()
	config := smallConfig()
	config.Mode = Mutation
	e, st := testEngine(t, config)
	_, err := e.Step(ctx)
	require.NoError(t, err)
	top, err := st.Top(ctx, 3)
	require.NoError(t, err)
	require.NotEmpty(t, top)

	res, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseSpawn, res.Phase)
	assert.Equal(t, len(top)*4, res.Created)
	untested, err := st.Untested(ctx, 0)
	require.NoError(t, err)
	for _, child := range untested {
		assert.Equal(t, lsh.NoParent, child.Mother)
		assert.Equal(t, 1, child.Generation)
	}
}

func TestEarlyExitOptions(t *testing.T) {
	ctx := context.Background()
	e, st := testEngine(t, smallConfig())

	opts, err := e.options(ctx)
	require.NoError(t, err)
	assert.False(t, opts.EarlyExit, "empty population has no target")

	_, err = e.Step(ctx)
	require.NoError(t, err)
	opts, err = e.options(ctx)
	require.NoError(t, err)
	target, ok, err := store.ScoreAt(ctx, st, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, opts.EarlyExit)
	assert.Equal(t, target, opts.Target)

	config := smallConfig()
	config.EarlyExit = false
	disabled, _ := testEngine(t, config)
	opts, err = disabled.options(ctx)
	require.NoError(t, err)
	assert.False(t, opts.EarlyExit)
}

func TestRun(t *testing.T) {
	config := smallConfig()
	config.MaxSteps = 3
	e, st := testEngine(t, config)
	require.NoError(t, e.Run(context.Background()))
	untested, err := st.Untested(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, untested)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
}

func TestBadMode(t *testing.T) {
	_, err := New(kv.NewKVStore(), nil, lineHasher, 2, Config{Mode: "random"}, nil)
	assert.ErrorIs(t, err, badModeErr)
}

func TestBreedableSkipsNonPositive(t *testing.T) {
	e, _ := testEngine(t, smallConfig())
	good := lsh.NewGenerated(lsh.Params{A: []float64{1, 0}, R: 2}, lsh.NoParent, lsh.NoParent, 0)
	good.SetFitness(lsh.Tested(1, 1, 0, 20, false))
	bad := good
	bad.SetFitness(lsh.Tested(1, 0, 1, 20, false))
	empty := good
	empty.SetFitness(lsh.Tested(0, 0, 0, 20, false))
	assert.Len(t, e.breedable([]lsh.HashFunction{good, bad, empty, lsh.NewPending(nil, nil)}), 1)
}
