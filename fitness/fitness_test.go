package fitness

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/neighbors"
	"github.com/gasparian/lsh-evolve-go/points"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linePoints places 100 points on the x axis one unit apart
func linePoints(t *testing.T) (*points.MemoryStore, *neighbors.Cache) {
	t.Helper()
	vecs := make([][]float64, 100)
	for i := range vecs {
		vecs[i] = []float64{float64(i), 0}
	}
	s, err := points.FromVectors(vecs, points.Euclidean{}, points.Config{Radius: 3, Tolerance: 3, InitialPopulation: 10})
	require.NoError(t, err)
	return s, neighbors.NewCache(s, 10, nil)
}

func testConfig(trials int) Config {
	return Config{Trials: trials, FarSetSize: 20, MinTrial: 10, Offset: 0.2}
}

func newEvaluator(t *testing.T, config Config) *Evaluator {
	t.Helper()
	s, cache := linePoints(t)
	e, err := New(s, cache, lsh.DefaultConfig(), config, nil)
	require.NoError(t, err)
	return e
}

func fixedHash(width float64) lsh.HashFunction {
	return lsh.NewGenerated(lsh.Params{A: []float64{1, 0}, R: width}, lsh.NoParent, lsh.NoParent, 0)
}

func rng(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 7))
}

func TestNarrowHashCollidesOnlyWithNearest(t *testing.T) {
	e := newEvaluator(t, testConfig(50))
	hf := fixedHash(2)
	res, err := e.Test(context.Background(), rng(1), &hf, Options{})
	require.NoError(t, err)

	collisions, ok := res.Fitness.Collisions()
	require.True(t, ok)
	assert.Equal(t, 1.0, collisions)
	p1, p2, ok := res.Fitness.NearFar()
	require.True(t, ok)
	assert.Equal(t, 1.0, p1)
	assert.Equal(t, 0.0, p2)
	assert.Equal(t, 50, res.Fitness.Trials())
	assert.False(t, res.Fitness.EarlyExit())
	assert.True(t, hf.Fitness().IsTested())
}

func TestDegenerateHashScoresLower(t *testing.T) {
	e := newEvaluator(t, testConfig(50))
	narrow := fixedHash(2)
	wide := fixedHash(1e9)
	narrowRes, err := e.Test(context.Background(), rng(2), &narrow, Options{})
	require.NoError(t, err)
	wideRes, err := e.Test(context.Background(), rng(2), &wide, Options{})
	require.NoError(t, err)

	collisions, _ := wideRes.Fitness.Collisions()
	assert.Equal(t, 30.0, collisions)
	p1, p2, _ := wideRes.Fitness.NearFar()
	assert.Greater(t, p2, p1)
	assert.Greater(t, wideRes.Neutral, 0.0)

	narrowScore, _ := narrowRes.Fitness.Score()
	wideScore, _ := wideRes.Fitness.Score()
	assert.Greater(t, narrowScore, wideScore)
}

// xMetric measures distance along the first coordinate only
type xMetric struct{}

func (xMetric) Distance(a, b []float64) (float64, error) {
	return math.Abs(a[0] - b[0]), nil
}

func TestDistanceIndependentHashScoresNearZero(t *testing.T) {
	// x decides proximity, y is uniform noise the random hash projects onto
	noise := rng(11)
	vecs := make([][]float64, 1000)
	for i := range vecs {
		vecs[i] = []float64{float64(i), noise.Float64() * 1000}
	}
	s, err := points.FromVectors(vecs, xMetric{}, points.Config{Radius: 10, Tolerance: 1.05, InitialPopulation: 10})
	require.NoError(t, err)
	cache := neighbors.NewCache(s, 20, nil)
	e, err := New(s, cache, lsh.DefaultConfig(), testConfig(200), nil)
	require.NoError(t, err)

	random := lsh.NewGenerated(lsh.Params{A: []float64{0, 1}, R: 100}, lsh.NoParent, lsh.NoParent, 0)
	res, err := e.Test(context.Background(), rng(12), &random, Options{})
	require.NoError(t, err)
	p1, p2, ok := res.Fitness.NearFar()
	require.True(t, ok)
	assert.Greater(t, p1, 1.0)
	assert.InDelta(t, p1, p2, 0.6)

	narrow := fixedHash(2)
	narrowRes, err := e.Test(context.Background(), rng(12), &narrow, Options{})
	require.NoError(t, err)
	narrowScore, _ := narrowRes.Fitness.Score()
	randomScore, _ := res.Fitness.Score()
	assert.Less(t, randomScore, narrowScore-0.5)
}

func TestNoCollisionsLeavesScoreUndefined(t *testing.T) {
	// every point gets its own bucket far from the others
	e := newEvaluator(t, testConfig(20))
	hf := fixedHash(0.5)
	res, err := e.Test(context.Background(), rng(3), &hf, Options{})
	require.NoError(t, err)
	collisions, ok := res.Fitness.Collisions()
	assert.True(t, ok)
	assert.Equal(t, 0.0, collisions)
	_, ok = res.Fitness.Score()
	assert.False(t, ok)
}

func TestEarlyExitDoesNotExtrapolate(t *testing.T) {
	wide := fixedHash(1e9)
	early := newEvaluator(t, testConfig(50))
	res, err := early.Test(context.Background(), rng(4), &wide, Options{EarlyExit: true, Target: 1})
	require.NoError(t, err)
	require.True(t, res.Fitness.EarlyExit())
	assert.Equal(t, 11, res.Fitness.Trials())

	// the same seed replays the same trials
	truncated := newEvaluator(t, testConfig(11))
	again := fixedHash(1e9)
	full, err := truncated.Test(context.Background(), rng(4), &again, Options{})
	require.NoError(t, err)
	assert.False(t, full.Fitness.EarlyExit())

	c1, _ := res.Fitness.Collisions()
	c2, _ := full.Fitness.Collisions()
	assert.InDelta(t, c2, c1, 1e-9)
	p1a, p2a, _ := res.Fitness.NearFar()
	p1b, p2b, _ := full.Fitness.NearFar()
	assert.InDelta(t, p1b, p1a, 1e-9)
	assert.InDelta(t, p2b, p2a, 1e-9)
}

func TestEarlyExitIgnoredWhenNotRequested(t *testing.T) {
	e := newEvaluator(t, testConfig(50))
	wide := fixedHash(1e9)
	res, err := e.Test(context.Background(), rng(5), &wide, Options{Target: 1})
	require.NoError(t, err)
	assert.False(t, res.Fitness.EarlyExit())
	assert.Equal(t, 50, res.Fitness.Trials())
}

func TestPendingHashIsGenerated(t *testing.T) {
	e := newEvaluator(t, testConfig(5))
	hf := lsh.NewPending(nil, nil)
	_, err := e.Test(context.Background(), rng(6), &hf, Options{})
	require.NoError(t, err)
	assert.True(t, hf.IsGenerated())
	assert.Equal(t, 2, hf.Dimension())
}

func TestCancelledEvaluation(t *testing.T) {
	e := newEvaluator(t, testConfig(5))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hf := fixedHash(2)
	_, err := e.Test(ctx, rng(7), &hf, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, hf.Fitness().IsTested())
}

func TestBadConfig(t *testing.T) {
	s, cache := linePoints(t)
	_, err := New(s, cache, lsh.DefaultConfig(), Config{}, nil)
	assert.ErrorIs(t, err, badConfigErr)
}

func TestSampleFar(t *testing.T) {
	r := rng(8)
	excluded := roaring.BitmapOf(0, 1, 2, 3, 4)
	got := sampleFar(r, 10, excluded, 3)
	assert.Len(t, got, 3)
	seen := map[int]bool{}
	for _, idx := range got {
		assert.GreaterOrEqual(t, idx, 5)
		assert.False(t, seen[idx])
		seen[idx] = true
	}

	excluded = roaring.BitmapOf(0, 1, 2, 3, 4)
	assert.ElementsMatch(t, []int{5, 6, 7, 8, 9}, sampleFar(r, 10, excluded, 10))

	excluded = roaring.BitmapOf(7)
	got = sampleFar(r, 1000, excluded, 50)
	assert.Len(t, got, 50)
	assert.NotContains(t, got, 7)
	unique := map[int]bool{}
	for _, idx := range got {
		unique[idx] = true
	}
	assert.Len(t, unique, 50)

	assert.Empty(t, sampleFar(r, 3, roaring.BitmapOf(0, 1, 2), 5))
}

func TestQuerySamplerIsWithoutReplacement(t *testing.T) {
	r := rng(9)
	sampler := newQuerySampler(20)
	got := make([]int, 0, 20)
	for i := 0; i < 20; i++ {
		got = append(got, sampler.next(r))
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}, got)
}
