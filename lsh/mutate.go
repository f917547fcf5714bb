package lsh

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	mutateMean = iota
	mutateStd
	mutateOffset
	mutateWidth
	// coordinate mutations occupy the remaining dimension slots
	mutateTargets
)

// Mutate returns a new untested child differing from the parent in one target:
// the mean or std (the whole vector is resampled), the offset, the width,
// or a single coordinate. Coordinates get one slot per dimension.
func Mutate(rng *rand.Rand, config Config, parent HashFunction) (HashFunction, error) {
	p, ok := parent.Params()
	if !ok || len(p.A) == 0 {
		return HashFunction{}, fmt.Errorf("%w: parent %d has no weights", ErrMalformedHashFunction, parent.ID)
	}
	x := rng.IntN(len(p.A) + mutateTargets)
	switch x {
	case mutateMean:
		p.Mean = config.draw(rng, config.MeanMin, config.MeanMax)
		p.A = sampleNormal(rng, p.Mean, p.Std, len(p.A))
	case mutateStd:
		p.Std = config.draw(rng, config.StdMin, config.StdMax)
		p.A = sampleNormal(rng, p.Mean, p.Std, len(p.A))
	case mutateOffset:
		p.B = uniform(rng, 0, p.R)
	case mutateWidth:
		p.R = config.drawWidth(rng, p.B)
		if p.B > p.R {
			p.B = uniform(rng, 0, p.R)
		}
	default:
		i := x - mutateTargets
		p.A[i] = distuv.Normal{Mu: p.Mean, Sigma: p.Std, Src: rng}.Rand()
	}
	return NewGenerated(p, parent.ID, NoParent, parent.Generation+1), nil
}
