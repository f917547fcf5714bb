package points

import (
	"errors"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// SyntheticConfig describes a gaussian blobs dataset
type SyntheticConfig struct {
	Count    int
	Dims     int
	Clusters int
	// Spread is the std of points around their cluster center
	Spread float64
	// Extent bounds cluster centers to [0, Extent) per dimension
	Extent float64
	Seed   uint64
}

// Synthetic generates clustered vectors, so that true neighbors are meaningful
func Synthetic(config SyntheticConfig) ([][]float64, error) {
	if config.Count <= 0 || config.Dims <= 0 {
		return nil, errors.New("count and dims must be positive")
	}
	if config.Clusters <= 0 {
		config.Clusters = 1
	}
	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))
	uniform := distuv.Uniform{Min: 0, Max: config.Extent, Src: rng}
	centers := make([][]float64, config.Clusters)
	for i := range centers {
		centers[i] = make([]float64, config.Dims)
		for j := range centers[i] {
			centers[i][j] = uniform.Rand()
		}
	}
	noise := distuv.Normal{Mu: 0, Sigma: config.Spread, Src: rng}
	vecs := make([][]float64, config.Count)
	for i := range vecs {
		center := centers[i%config.Clusters]
		vecs[i] = make([]float64, config.Dims)
		for j := range vecs[i] {
			vecs[i][j] = center[j] + noise.Rand()
		}
	}
	return vecs, nil
}
