// Package fitness scores hash functions by sampling queries and comparing
// their bucket collisions against the ground truth neighbors.
package fitness

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2"
	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/neighbors"
	"github.com/gasparian/lsh-evolve-go/points"
)

var badConfigErr = errors.New("trials and far set size must be positive")

// Config holds sampling and early exit constants
type Config struct {
	Trials     int
	FarSetSize int
	// MinTrial is the first trial index the early exit bar is checked at
	MinTrial int
	// Offset shifts the linearly rising early exit bar: target*(n/Trials - Offset)
	Offset float64
}

// DefaultConfig returns 200 trials over 200 near + 200 far points
func DefaultConfig() Config {
	return Config{
		Trials:     200,
		FarSetSize: 200,
		MinTrial:   80,
		Offset:     0.2,
	}
}

// Options are per call evaluation settings
type Options struct {
	EarlyExit bool
	// Target is the score considered good enough, used only with EarlyExit
	Target float64
}

// Result of a single evaluation; the fitness is already stored into the hash function
type Result struct {
	Fitness lsh.Fitness
	// Neutral is the mean number of collisions between the near and far radii
	Neutral float64
}

// Evaluator runs fitness tests; it is safe for concurrent use
// as long as every goroutine brings its own rng
type Evaluator struct {
	points points.Store
	cache  *neighbors.Cache
	hasher lsh.Config
	config Config
	logger *cm.Logger
}

// New creates evaluator; hasher config is used to generate pending hash functions
func New(store points.Store, cache *neighbors.Cache, hasher lsh.Config, config Config, logger *cm.Logger) (*Evaluator, error) {
	if config.Trials <= 0 || config.FarSetSize <= 0 {
		return nil, badConfigErr
	}
	if logger == nil {
		logger = cm.NewDiscardLogger()
	}
	return &Evaluator{
		points: store,
		cache:  cache,
		hasher: hasher,
		config: config,
		logger: logger,
	}, nil
}

type means struct {
	collisions float64
	p1         float64
	p2         float64
	p3         float64
}

func (m *means) update(n int, collisions, p1, p2, p3 int) {
	nf := float64(n)
	m.collisions = (m.collisions*nf + float64(collisions)) / (nf + 1)
	m.p1 = (m.p1*nf + float64(p1)) / (nf + 1)
	m.p2 = (m.p2*nf + float64(p2)) / (nf + 1)
	m.p3 = (m.p3*nf + float64(p3)) / (nf + 1)
}

// Test evaluates the hash function, generating its params first if pending.
// Reported means cover only the trials actually executed.
func (e *Evaluator) Test(ctx context.Context, rng *rand.Rand, hf *lsh.HashFunction, opts Options) (Result, error) {
	if err := hf.EnsureGenerated(rng, e.hasher, e.points.Dimension()); err != nil {
		return Result{}, err
	}
	all := e.points.Points()
	buckets := make([]int64, len(all))
	for i, p := range all {
		bucket, err := hf.Project(e.points.Address(p))
		if err != nil {
			return Result{}, err
		}
		buckets[i] = bucket
	}

	trials := e.config.Trials
	if trials > len(all) {
		trials = len(all)
	}
	queries := newQuerySampler(len(all))
	radius := e.points.Config().Radius
	farRadius := e.points.Config().FarRadius()

	var m means
	executed := 0
	earlyExit := false
	for n := 0; n < trials; n++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		qIdx := queries.next(rng)
		query := all[qIdx]
		pool, err := e.pool(ctx, rng, query, qIdx)
		if err != nil {
			return Result{}, err
		}
		var collisions, p1, p2, p3 int
		for _, idx := range pool {
			if buckets[idx] != buckets[qIdx] {
				continue
			}
			collisions++
			dist, err := e.points.Distance(query, all[idx])
			if err != nil {
				return Result{}, err
			}
			switch {
			case dist <= radius:
				p1++
			case dist >= farRadius:
				p2++
			default:
				p3++
			}
		}
		m.update(n, collisions, p1, p2, p3)
		executed = n + 1
		if opts.EarlyExit && n >= e.config.MinTrial {
			bar := opts.Target * (float64(n)/float64(e.config.Trials) - e.config.Offset)
			if m.p1-m.p2 < bar {
				earlyExit = true
				e.logger.Info.Printf("Hash function %v stopped after %v trials: %.4f < %.4f", hf.ID, executed, m.p1-m.p2, bar)
				break
			}
		}
	}
	f := lsh.Tested(m.collisions, m.p1, m.p2, executed, earlyExit)
	hf.SetFitness(f)
	return Result{Fitness: f, Neutral: m.p3}, nil
}

// pool returns shuffled positions of the query's near set
// and of FarSetSize random points outside of it
func (e *Evaluator) pool(ctx context.Context, rng *rand.Rand, query points.Point, qIdx int) ([]int, error) {
	near, err := e.cache.Neighbors(ctx, query.ID)
	if err != nil {
		return nil, fmt.Errorf("ground truth for point %d: %w", query.ID, err)
	}
	all := e.points.Points()
	excluded := roaring.New()
	excluded.Add(uint32(qIdx))
	pool := make([]int, 0, len(near)+e.config.FarSetSize)
	for _, id := range near {
		idx, ok := e.points.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("neighbor %d of point %d is not in the store", id, query.ID)
		}
		excluded.Add(uint32(idx))
		pool = append(pool, idx)
	}
	pool = append(pool, sampleFar(rng, len(all), excluded, e.config.FarSetSize)...)
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool, nil
}

// sampleFar draws up to k distinct positions from [0, n) that are not excluded.
// Rejection sampling is used while the remainder is large, otherwise
// the remainder is listed and partially shuffled.
func sampleFar(rng *rand.Rand, n int, excluded *roaring.Bitmap, k int) []int {
	remainder := n - int(excluded.GetCardinality())
	if remainder <= 0 {
		return nil
	}
	if k > remainder {
		k = remainder
	}
	out := make([]int, 0, k)
	if remainder >= 2*k {
		for len(out) < k {
			idx := rng.IntN(n)
			if excluded.CheckedAdd(uint32(idx)) {
				out = append(out, idx)
			}
		}
		return out
	}
	rest := make([]int, 0, remainder)
	for i := 0; i < n; i++ {
		if !excluded.Contains(uint32(i)) {
			rest = append(rest, i)
		}
	}
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(rest)-i)
		rest[i], rest[j] = rest[j], rest[i]
	}
	return append(out, rest[:k]...)
}

// querySampler draws distinct positions one by one with a lazy Fisher-Yates shuffle
type querySampler struct {
	perm []int
	n    int
}

func newQuerySampler(size int) *querySampler {
	perm := make([]int, size)
	for i := range perm {
		perm[i] = i
	}
	return &querySampler{perm: perm}
}

// next must be called at most size times
func (s *querySampler) next(rng *rand.Rand) int {
	j := s.n + rng.IntN(len(s.perm)-s.n)
	s.perm[s.n], s.perm[j] = s.perm[j], s.perm[s.n]
	s.n++
	return s.perm[s.n-1]
}
