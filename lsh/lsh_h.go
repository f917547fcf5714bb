package lsh

import (
	"errors"

	"github.com/gasparian/lsh-evolve-go/vector"
)

var (
	// ErrInvalidBreedingInput is returned when a parent has no positive score
	ErrInvalidBreedingInput = errors.New("breeding requires tested parents with positive scores")
	// ErrMalformedHashFunction is returned when parameters can't be (re)generated consistently
	ErrMalformedHashFunction = errors.New("malformed hash function")
	// ErrNotGenerated is returned when projecting with a pending hash function
	ErrNotGenerated = errors.New("hash function parameters are not generated yet")
	// ErrInvalidRecord is returned when a persisted record breaks the fitness invariant
	ErrInvalidRecord = errors.New("invalid hash function record")
	// ErrDimensionMismatch is returned when the point and weights dimensions differ
	ErrDimensionMismatch = vector.ErrDimensionMismatch
)

// ID identifies a persisted hash function; ids start from 1
type ID uint64

// NoParent marks an absent father or mother
const NoParent ID = 0

// Params holds the random projection of the hash function:
// bucket = floor((A·x + B) / R). Mean and Std are the normal distribution
// params A was (re)sampled with, mutation resamples around them.
type Params struct {
	A    []float64
	R    float64
	B    float64
	Mean float64
	Std  float64
}

// Config holds the sampling ranges used to generate and mutate hash functions
type Config struct {
	MeanMin  float64
	MeanMax  float64
	StdMin   float64
	StdMax   float64
	WidthMin float64
	WidthMax float64
	// Integral floors drawn mean, std and width, as for integer valued points
	Integral bool
	// MacroRate is the probability of resampling the whole weight vector while breeding
	MacroRate float64
}

// DefaultConfig returns ranges tuned for 48-dimensional tile descriptors
func DefaultConfig() Config {
	return Config{
		MeanMin:   128,
		MeanMax:   2048,
		StdMin:    8,
		StdMax:    1024,
		WidthMin:  32,
		WidthMax:  16384,
		Integral:  true,
		MacroRate: 0.01,
	}
}

// HashFunction is a single LSH unit together with its lineage and fitness.
// Parameters are either pending (optionally with mean/std hints) or generated.
type HashFunction struct {
	ID         ID
	Father     ID
	Mother     ID
	Generation int
	MeanHint   *float64
	StdHint    *float64

	params  *Params
	fitness Fitness
}

// Record is the flat persisted form of a hash function
type Record struct {
	ID         ID        `json:"id"`
	Father     ID        `json:"father,omitempty"`
	Mother     ID        `json:"mother,omitempty"`
	Generation int       `json:"generation"`
	Generated  bool      `json:"generated"`
	A          []float64 `json:"a,omitempty"`
	R          float64   `json:"r,omitempty"`
	B          float64   `json:"b,omitempty"`
	Mean       float64   `json:"mean,omitempty"`
	Std        float64   `json:"std,omitempty"`
	MeanHint   *float64  `json:"meanHint,omitempty"`
	StdHint    *float64  `json:"stdHint,omitempty"`
	Tested     bool      `json:"tested"`
	Collisions *float64  `json:"collisions,omitempty"`
	P1         *float64  `json:"p1,omitempty"`
	P2         *float64  `json:"p2,omitempty"`
	Trials     int       `json:"trials,omitempty"`
	EarlyExit  bool      `json:"earlyExit,omitempty"`
}
