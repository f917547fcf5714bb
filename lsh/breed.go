package lsh

import (
	"fmt"
	"math/rand/v2"

	"github.com/gasparian/lsh-evolve-go/vector"
)

// Breed crosses two tested parents. The better parent becomes the father and
// each inherited value comes from it with probability sA/(sA+sB).
// ok is false when the child turned out identical to one of the parents.
func Breed(rng *rand.Rand, config Config, a, b HashFunction) (HashFunction, bool, error) {
	sa, okA := a.Score()
	sb, okB := b.Score()
	if !okA || !okB || sa <= 0 || sb <= 0 {
		return HashFunction{}, false, fmt.Errorf("%w: parents %d and %d", ErrInvalidBreedingInput, a.ID, b.ID)
	}
	if sb > sa {
		a, b = b, a
		sa, sb = sb, sa
	}
	pa, okA := a.Params()
	pb, okB := b.Params()
	if !okA || !okB {
		return HashFunction{}, false, fmt.Errorf("%w: parents must be generated", ErrMalformedHashFunction)
	}
	if len(pa.A) == 0 {
		return HashFunction{}, false, fmt.Errorf("%w: parent %d has empty weights", ErrMalformedHashFunction, a.ID)
	}
	if len(pa.A) != len(pb.A) {
		return HashFunction{}, false, fmt.Errorf("%w: parents have %d and %d dims", ErrDimensionMismatch, len(pa.A), len(pb.A))
	}
	weightA := sa / (sa + sb)
	fromA := func() bool {
		return rng.Float64() < weightA
	}
	pick := func(x, y float64) float64 {
		if fromA() {
			return x
		}
		return y
	}

	var child Params
	child.B = pick(pa.B, pb.B)
	child.R = pick(pa.R, pb.R)
	if child.B > child.R {
		child.B = uniform(rng, 0, child.R)
	}
	if rng.Float64() < config.MacroRate {
		child.Mean = pick(pa.Mean, pb.Mean)
		child.Std = pick(pa.Std, pb.Std)
		child.A = sampleNormal(rng, child.Mean, child.Std, len(pa.A))
	} else {
		child.A = make([]float64, len(pa.A))
		for i := range child.A {
			child.A[i] = pick(pa.A[i], pb.A[i])
		}
		mean, std, err := vector.MeanStd(child.A)
		if err != nil {
			return HashFunction{}, false, err
		}
		child.Mean, child.Std = mean, std
	}
	if sameProjection(child, pa) || sameProjection(child, pb) {
		return HashFunction{}, false, nil
	}
	generation := a.Generation
	if b.Generation > generation {
		generation = b.Generation
	}
	return NewGenerated(child, a.ID, b.ID, generation+1), true, nil
}

func sameProjection(x, y Params) bool {
	return x.B == y.B && x.R == y.R && vector.Equal(x.A, y.A)
}
