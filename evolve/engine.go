// Package evolve drives the population of hash functions: it tests untested
// members, grows the population to its initial size and breeds new generations.
package evolve

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/gasparian/lsh-evolve-go/fitness"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"
	"golang.org/x/sync/errgroup"
)

// Mode selects how spawn produces children
type Mode string

const (
	// Crossover breeds every pair of the top and fresh parents
	Crossover Mode = "crossover"
	// Mutation mutates each of the top parents several times
	Mutation Mode = "mutation"
)

var badModeErr = errors.New("unknown evolution mode")

// Phase is the kind of work a single step did
type Phase int

const (
	PhaseDrain Phase = iota
	PhaseGrow
	PhaseSpawn
)

func (p Phase) String() string {
	switch p {
	case PhaseDrain:
		return "drain"
	case PhaseGrow:
		return "grow"
	case PhaseSpawn:
		return "spawn"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Config holds population control constants
type Config struct {
	Mode              Mode
	InitialPopulation int
	TopParents        int
	FreshParents      int
	MutationParents   int
	// MutationsPerParent is the number of children per parent in Mutation mode
	MutationsPerParent int
	Workers            int
	// MaxSteps stops Run after that many steps, 0 runs until the context is done
	MaxSteps   int
	Seed       uint64
	EarlyExit  bool
	TargetRank int
}

// DefaultConfig returns the constants of the long running optimizer
func DefaultConfig() Config {
	return Config{
		Mode:               Crossover,
		InitialPopulation:  1000,
		TopParents:         60,
		FreshParents:       10,
		MutationParents:    20,
		MutationsPerParent: 50,
		Workers:            runtime.NumCPU(),
		EarlyExit:          true,
		TargetRank:         1000,
	}
}

// Progress is notified once per tested hash function
type Progress interface {
	Increment()
}

// StepResult summarizes a single step
type StepResult struct {
	Phase      Phase
	Tested     int
	Created    int
	Duplicates int
	Invalid    int
}

// Engine exclusively owns population transitions. Evaluations and breeding
// run on a bounded worker pool, every task with its own random generator.
type Engine struct {
	RunID string
	// Progress is optional and must be set before Run
	Progress Progress

	store     store.Store
	evaluator *fitness.Evaluator
	hasher    lsh.Config
	dimension int
	config    Config
	logger    *cm.Logger

	mx  sync.Mutex
	rng *rand.Rand
}

// New creates engine; dimension is the dimension of the indexed points
func New(st store.Store, evaluator *fitness.Evaluator, hasher lsh.Config, dimension int, config Config, logger *cm.Logger) (*Engine, error) {
	if config.Mode != Crossover && config.Mode != Mutation {
		return nil, fmt.Errorf("%w: %q", badModeErr, config.Mode)
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = cm.NewDiscardLogger()
	}
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	runID := cm.NewRunID()
	return &Engine{
		RunID:     runID,
		store:     st,
		evaluator: evaluator,
		hasher:    hasher,
		dimension: dimension,
		config:    config,
		logger:    logger.WithPrefix("[" + runID[:8] + "]"),
		rng:       rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)),
	}, nil
}

// newRng derives an independent generator for a single task
func (e *Engine) newRng() *rand.Rand {
	e.mx.Lock()
	defer e.mx.Unlock()
	return rand.New(rand.NewPCG(e.rng.Uint64(), e.rng.Uint64()))
}

// Step performs exactly one phase: drain untested, grow to the initial size or spawn
func (e *Engine) Step(ctx context.Context) (StepResult, error) {
	untested, err := e.store.Untested(ctx, 0)
	if err != nil {
		return StepResult{}, err
	}
	var res StepResult
	if len(untested) > 0 {
		res, err = e.drain(ctx, untested)
	} else {
		count, cerr := e.store.Count(ctx)
		if cerr != nil {
			return StepResult{}, cerr
		}
		if count < e.config.InitialPopulation {
			res, err = e.grow(ctx, e.config.InitialPopulation-count)
		} else {
			res, err = e.spawn(ctx)
		}
	}
	if err != nil {
		return res, err
	}
	if err := e.updateGauges(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// Run repeats Step until the context is done or MaxSteps is reached
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info.Printf("Evolution started in %v mode", e.config.Mode)
	for step := 0; e.config.MaxSteps <= 0 || step < e.config.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		res, err := e.Step(ctx)
		if err != nil {
			return err
		}
		e.logger.Info.Printf("Step %v (%v): tested %v, created %v, duplicates %v, invalid %v in %v",
			step, res.Phase, res.Tested, res.Created, res.Duplicates, res.Invalid, time.Since(start))
	}
	return nil
}

// options enables early exit once the population reached its initial size
// and has a hash function scored at the target rank
func (e *Engine) options(ctx context.Context) (fitness.Options, error) {
	if !e.config.EarlyExit {
		return fitness.Options{}, nil
	}
	count, err := e.store.Count(ctx)
	if err != nil {
		return fitness.Options{}, err
	}
	if count < e.config.InitialPopulation {
		return fitness.Options{}, nil
	}
	target, ok, err := store.ScoreAt(ctx, e.store, e.config.TargetRank)
	if err != nil || !ok {
		return fitness.Options{}, err
	}
	return fitness.Options{EarlyExit: true, Target: target}, nil
}

func (e *Engine) evaluate(ctx context.Context, rng *rand.Rand, hf *lsh.HashFunction, opts fitness.Options) error {
	start := time.Now()
	res, err := e.evaluator.Test(ctx, rng, hf, opts)
	if err != nil {
		return fmt.Errorf("test hash function %d: %w", hf.ID, err)
	}
	evaluationSeconds.Observe(time.Since(start).Seconds())
	if res.Fitness.EarlyExit() {
		evaluationsTotal.WithLabelValues(outcomeEarlyExit).Inc()
	} else {
		evaluationsTotal.WithLabelValues(outcomeFull).Inc()
	}
	if err := e.store.UpdateFitness(ctx, *hf); err != nil {
		return err
	}
	if e.Progress != nil {
		e.Progress.Increment()
	}
	return nil
}

func (e *Engine) drain(ctx context.Context, untested []lsh.HashFunction) (StepResult, error) {
	res := StepResult{Phase: PhaseDrain}
	opts, err := e.options(ctx)
	if err != nil {
		return res, err
	}
	var tested int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for i := range untested {
		hf := untested[i]
		rng := e.newRng()
		g.Go(func() error {
			if err := e.evaluate(gctx, rng, &hf, opts); err != nil {
				return err
			}
			atomic.AddInt64(&tested, 1)
			return nil
		})
	}
	err = g.Wait()
	res.Tested = int(tested)
	return res, err
}

// fresh creates n random hash functions and tests them without early exit
func (e *Engine) fresh(ctx context.Context, n int) ([]lsh.HashFunction, error) {
	out := make([]lsh.HashFunction, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for i := 0; i < n; i++ {
		rng := e.newRng()
		g.Go(func() error {
			hf := lsh.NewPending(nil, nil)
			if err := hf.EnsureGenerated(rng, e.hasher, e.dimension); err != nil {
				return err
			}
			id, err := e.store.Create(gctx, hf)
			if err != nil {
				return err
			}
			hf.ID = id
			if err := e.evaluate(gctx, rng, &hf, fitness.Options{}); err != nil {
				return err
			}
			out[i] = hf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) grow(ctx context.Context, n int) (StepResult, error) {
	e.logger.Info.Printf("Growing population by %v hash functions", n)
	hfs, err := e.fresh(ctx, n)
	return StepResult{Phase: PhaseGrow, Created: len(hfs), Tested: len(hfs)}, err
}

func (e *Engine) spawn(ctx context.Context) (StepResult, error) {
	if e.config.Mode == Mutation {
		return e.spawnMutants(ctx)
	}
	res := StepResult{Phase: PhaseSpawn}
	top, err := e.store.Top(ctx, e.config.TopParents)
	if err != nil {
		return res, err
	}
	fresh, err := e.fresh(ctx, e.config.FreshParents)
	if err != nil {
		return res, err
	}
	res.Created, res.Tested = len(fresh), len(fresh)
	parents := e.breedable(append(top, fresh...))
	if len(parents) < 2 {
		e.logger.Warn.Printf("Only %v parents can breed, skipping generation", len(parents))
		return res, nil
	}

	var created, duplicates, invalid int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for i := 0; i < len(parents); i++ {
		for j := i + 1; j < len(parents); j++ {
			a, b := parents[i], parents[j]
			rng := e.newRng()
			g.Go(func() error {
				child, ok, err := lsh.Breed(rng, e.hasher, a, b)
				switch {
				case errors.Is(err, lsh.ErrInvalidBreedingInput), errors.Is(err, lsh.ErrDimensionMismatch):
					e.logger.Warn.Printf("Can't breed %v and %v: %v", a.ID, b.ID, err)
					childrenTotal.WithLabelValues(resultInvalid).Inc()
					atomic.AddInt64(&invalid, 1)
					return nil
				case err != nil:
					return err
				case !ok:
					childrenTotal.WithLabelValues(resultDuplicate).Inc()
					atomic.AddInt64(&duplicates, 1)
					return nil
				}
				if _, err := e.store.Create(gctx, child); err != nil {
					return err
				}
				childrenTotal.WithLabelValues(resultStored).Inc()
				atomic.AddInt64(&created, 1)
				return nil
			})
		}
	}
	err = g.Wait()
	res.Created += int(created)
	res.Duplicates = int(duplicates)
	res.Invalid = int(invalid)
	if duplicates > 0 {
		e.logger.Info.Printf("%v duplicate children discarded", duplicates)
	}
	return res, err
}

// breedable drops parents without a positive score
func (e *Engine) breedable(candidates []lsh.HashFunction) []lsh.HashFunction {
	out := make([]lsh.HashFunction, 0, len(candidates))
	for _, hf := range candidates {
		if s, ok := hf.Score(); ok && s > 0 {
			out = append(out, hf)
			continue
		}
		e.logger.Warn.Printf("Hash function %v has no positive score and won't breed", hf.ID)
	}
	return out
}

func (e *Engine) spawnMutants(ctx context.Context) (StepResult, error) {
	res := StepResult{Phase: PhaseSpawn}
	top, err := e.store.Top(ctx, e.config.MutationParents)
	if err != nil {
		return res, err
	}
	if len(top) == 0 {
		e.logger.Warn.Printf("No scored hash functions to mutate")
		return res, nil
	}
	var created int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for _, parent := range top {
		for k := 0; k < e.config.MutationsPerParent; k++ {
			rng := e.newRng()
			g.Go(func() error {
				child, err := lsh.Mutate(rng, e.hasher, parent)
				if err != nil {
					return err
				}
				if _, err := e.store.Create(gctx, child); err != nil {
					return err
				}
				childrenTotal.WithLabelValues(resultStored).Inc()
				atomic.AddInt64(&created, 1)
				return nil
			})
		}
	}
	err = g.Wait()
	res.Created = int(created)
	return res, err
}

func (e *Engine) updateGauges(ctx context.Context) error {
	count, err := e.store.Count(ctx)
	if err != nil {
		return err
	}
	populationSize.Set(float64(count))
	top, err := e.store.Top(ctx, 1)
	if err != nil {
		return err
	}
	if len(top) > 0 {
		s, _ := top[0].Score()
		bestScore.Set(s)
	}
	return nil
}
