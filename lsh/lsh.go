package lsh

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/gasparian/lsh-evolve-go/vector"
	"gonum.org/v1/gonum/stat/distuv"
)

// NewPending creates a root hash function whose params will be generated
// on EnsureGenerated; nil hints are drawn from the config ranges
func NewPending(meanHint, stdHint *float64) HashFunction {
	return HashFunction{MeanHint: meanHint, StdHint: stdHint}
}

// NewGenerated wraps already drawn params
func NewGenerated(params Params, father, mother ID, generation int) HashFunction {
	return HashFunction{
		Father:     father,
		Mother:     mother,
		Generation: generation,
		params:     &params,
	}
}

// IsRoot reports that hash function has no parents
func (hf *HashFunction) IsRoot() bool {
	return hf.Father == NoParent && hf.Mother == NoParent
}

// IsGenerated reports that params were drawn
func (hf *HashFunction) IsGenerated() bool {
	return hf.params != nil
}

// Params returns a copy of the projection params
func (hf *HashFunction) Params() (Params, bool) {
	if hf.params == nil {
		return Params{}, false
	}
	p := *hf.params
	p.A = append([]float64(nil), hf.params.A...)
	return p, true
}

// Dimension returns weights vector length, 0 while pending
func (hf *HashFunction) Dimension() int {
	if hf.params == nil {
		return 0
	}
	return len(hf.params.A)
}

func (hf *HashFunction) Fitness() Fitness {
	return hf.fitness
}

// SetFitness replaces the evaluation result, lineage and params stay untouched
func (hf *HashFunction) SetFitness(f Fitness) {
	hf.fitness = f
}

// Score is a shortcut for Fitness().Score()
func (hf *HashFunction) Score() (float64, bool) {
	return hf.fitness.Score()
}

// EnsureGenerated draws params of a pending root hash function.
// Generated functions are left as is, so projection never gets re-randomized.
func (hf *HashFunction) EnsureGenerated(rng *rand.Rand, config Config, dimension int) error {
	if hf.params != nil {
		if len(hf.params.A) != dimension {
			return fmt.Errorf("%w: weights have %d dims, points have %d", ErrDimensionMismatch, len(hf.params.A), dimension)
		}
		return nil
	}
	if !hf.IsRoot() {
		return fmt.Errorf("%w: hash function %d has parents but no params", ErrMalformedHashFunction, hf.ID)
	}
	params, err := Generate(rng, config, dimension, hf.MeanHint, hf.StdHint)
	if err != nil {
		return err
	}
	hf.params = &params
	return nil
}

// Project returns bucket id of the address
func (hf *HashFunction) Project(address []float64) (int64, error) {
	if hf.params == nil {
		return 0, ErrNotGenerated
	}
	dp, err := vector.Dot(hf.params.A, address)
	if err != nil {
		return 0, fmt.Errorf("%w: weights have %d dims, point has %d", ErrDimensionMismatch, len(hf.params.A), len(address))
	}
	return int64(math.Floor((dp + hf.params.B) / hf.params.R)), nil
}

// Generate draws a fresh random projection. Missing mean and std are
// drawn uniformly from the config ranges, weights from Normal(mean, std),
// width from the width range and offset uniformly from [0, width].
func Generate(rng *rand.Rand, config Config, dimension int, meanHint, stdHint *float64) (Params, error) {
	if dimension <= 0 {
		return Params{}, fmt.Errorf("%w: dimension must be positive, got %d", ErrMalformedHashFunction, dimension)
	}
	var p Params
	if meanHint != nil {
		p.Mean = *meanHint
	} else {
		p.Mean = config.draw(rng, config.MeanMin, config.MeanMax)
	}
	if stdHint != nil {
		p.Std = *stdHint
	} else {
		p.Std = config.draw(rng, config.StdMin, config.StdMax)
	}
	p.A = sampleNormal(rng, p.Mean, p.Std, dimension)
	p.R = config.drawWidth(rng, config.WidthMin)
	p.B = uniform(rng, 0, p.R)
	return p, nil
}

func (c Config) draw(rng *rand.Rand, lo, hi float64) float64 {
	v := uniform(rng, lo, hi)
	if c.Integral {
		v = math.Floor(v)
	}
	return v
}

// drawWidth draws bucket width from [lo, WidthMax), never returning a non-positive width
func (c Config) drawWidth(rng *rand.Rand, lo float64) float64 {
	r := c.draw(rng, lo, c.WidthMax)
	if r <= 0 {
		r = c.WidthMin
	}
	return r
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: rng}.Rand()
}

func sampleNormal(rng *rand.Rand, mean, std float64, n int) []float64 {
	dist := distuv.Normal{Mu: mean, Sigma: std, Src: rng}
	out := make([]float64, n)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// SortByScore orders hash functions by score descending; functions
// without a score go last, ties are broken by id
func SortByScore(hfs []HashFunction) {
	sort.SliceStable(hfs, func(i, j int) bool {
		si, oki := hfs[i].Score()
		sj, okj := hfs[j].Score()
		if oki != okj {
			return oki
		}
		if oki && si != sj {
			return si > sj
		}
		return hfs[i].ID < hfs[j].ID
	})
}

// Record returns flat representation of the hash function
func (hf *HashFunction) Record() Record {
	rec := Record{
		ID:         hf.ID,
		Father:     hf.Father,
		Mother:     hf.Mother,
		Generation: hf.Generation,
		MeanHint:   hf.MeanHint,
		StdHint:    hf.StdHint,
		Tested:     hf.fitness.tested,
		Trials:     hf.fitness.trials,
		EarlyExit:  hf.fitness.earlyExit,
	}
	if hf.params != nil {
		rec.Generated = true
		rec.A = append([]float64(nil), hf.params.A...)
		rec.R = hf.params.R
		rec.B = hf.params.B
		rec.Mean = hf.params.Mean
		rec.Std = hf.params.Std
	}
	if hf.fitness.tested {
		c := hf.fitness.collisions
		rec.Collisions = &c
	}
	if p1, p2, ok := hf.fitness.NearFar(); ok {
		rec.P1, rec.P2 = &p1, &p2
	}
	return rec
}

// FromRecord restores hash function validating the fitness invariant
func FromRecord(rec Record) (HashFunction, error) {
	if rec.Tested != (rec.Collisions != nil) {
		return HashFunction{}, fmt.Errorf("%w %d: tested flag disagrees with collisions", ErrInvalidRecord, rec.ID)
	}
	if (rec.P1 == nil) != (rec.P2 == nil) {
		return HashFunction{}, fmt.Errorf("%w %d: p1 and p2 must be set together", ErrInvalidRecord, rec.ID)
	}
	if rec.P1 != nil && *rec.Collisions <= 0 {
		return HashFunction{}, fmt.Errorf("%w %d: p1/p2 set without collisions", ErrInvalidRecord, rec.ID)
	}
	if rec.Tested && *rec.Collisions > 0 && rec.P1 == nil {
		return HashFunction{}, fmt.Errorf("%w %d: collisions without p1/p2", ErrInvalidRecord, rec.ID)
	}
	hf := HashFunction{
		ID:         rec.ID,
		Father:     rec.Father,
		Mother:     rec.Mother,
		Generation: rec.Generation,
		MeanHint:   rec.MeanHint,
		StdHint:    rec.StdHint,
	}
	if rec.Generated {
		if len(rec.A) == 0 || rec.R <= 0 || rec.B < 0 || rec.B > rec.R {
			return HashFunction{}, fmt.Errorf("%w %d: bad projection params", ErrInvalidRecord, rec.ID)
		}
		hf.params = &Params{
			A:    append([]float64(nil), rec.A...),
			R:    rec.R,
			B:    rec.B,
			Mean: rec.Mean,
			Std:  rec.Std,
		}
	} else if rec.Tested {
		return HashFunction{}, fmt.Errorf("%w %d: tested without params", ErrInvalidRecord, rec.ID)
	} else if rec.Father != NoParent || rec.Mother != NoParent {
		return HashFunction{}, fmt.Errorf("%w %d: child without params", ErrInvalidRecord, rec.ID)
	}
	if rec.Tested {
		var p1, p2 float64
		if rec.P1 != nil {
			p1, p2 = *rec.P1, *rec.P2
		}
		hf.fitness = Tested(*rec.Collisions, p1, p2, rec.Trials, rec.EarlyExit)
	}
	return hf, nil
}
