package points

import (
	"errors"
	"fmt"
	"math"

	"github.com/gasparian/lsh-evolve-go/vector"
	"gonum.org/v1/gonum/floats"
)

// Metric measures how far apart two addresses are.
// Implementations are symmetric and return 0 for identical addresses,
// the triangle inequality is not guaranteed.
type Metric interface {
	Distance(a, b []float64) (float64, error)
}

// Euclidean is the plain l2 norm of the difference
type Euclidean struct{}

// Distance returns l2 distance btw a and b
func (Euclidean) Distance(a, b []float64) (float64, error) {
	d, err := vector.L2(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	return d, nil
}

// Cosine is 1 - cos of the angle btw the addresses. A zero address is
// at distance 0 from another zero address and at distance 1 from the rest.
type Cosine struct{}

func (Cosine) Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	za, zb := vector.IsZeroVector(a), vector.IsZeroVector(b)
	switch {
	case za && zb:
		return 0, nil
	case za || zb:
		return 1, nil
	}
	d, err := vector.CosineDist(a, b)
	if err != nil {
		return 0, err
	}
	return math.Max(d, 0), nil
}

// Composite mixes three normalized terms, each in [0, 1]:
// edit distance over the quantized byte-string form of the vectors,
// mean square error and noise-to-signal ratio.
type Composite struct {
	// Weights of edit distance, mse and snr terms, must sum to 1
	Weights [3]float64
	// Levels is the number of quantization buckets per component (<= 256)
	Levels int
	// MaxValue is the upper bound of component values, lower bound is 0
	MaxValue float64
}

// NewComposite validates weights and quantization params
func NewComposite(weights [3]float64, levels int, maxValue float64) (Composite, error) {
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return Composite{}, errors.New("composite weights must be non-negative")
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		return Composite{}, fmt.Errorf("composite weights must sum to 1, got %v", sum)
	}
	if levels < 2 || levels > 256 {
		return Composite{}, errors.New("quantization levels must be in [2, 256]")
	}
	if maxValue <= 0 {
		return Composite{}, errors.New("max value must be > 0")
	}
	return Composite{Weights: weights, Levels: levels, MaxValue: maxValue}, nil
}

// Distance returns the weighted mix of the three terms
func (c Composite) Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	edit := float64(editDistance(c.quantize(a), c.quantize(b))) / float64(len(a))

	diff := make([]float64, len(a))
	floats.SubTo(diff, a, b)
	noise := floats.Dot(diff, diff)
	mse := noise / float64(len(a)) / (c.MaxValue * c.MaxValue)
	if mse > 1 {
		mse = 1
	}

	// signal power is averaged over both vectors to keep the term symmetric
	signal := (floats.Dot(a, a) + floats.Dot(b, b)) / 2
	nsr := 0.0
	if noise > 0 {
		nsr = 1.0
		if signal > 0 {
			nsr = 1 / (1 + signal/noise)
		}
	}
	return c.Weights[0]*edit + c.Weights[1]*mse + c.Weights[2]*nsr, nil
}

func (c Composite) quantize(v []float64) []byte {
	out := make([]byte, len(v))
	step := c.MaxValue / float64(c.Levels)
	for i, x := range v {
		level := int(x / step)
		if level < 0 {
			level = 0
		}
		if level >= c.Levels {
			level = c.Levels - 1
		}
		out[i] = byte(level)
	}
	return out
}

// editDistance is the Levenshtein distance with two rolling rows
func editDistance(s, t []byte) int {
	if len(s) < len(t) {
		s, t = t, s
	}
	prev := make([]int, len(t)+1)
	curr := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s); i++ {
		curr[0] = i
		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(t)]
}
