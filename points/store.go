// Package points holds the indexable point set together with the
// distance metric and proximity constants used to judge hash functions.
package points

import (
	"errors"
	"fmt"

	"github.com/gasparian/lsh-evolve-go/vector"
)

var (
	// ErrDimensionMismatch is returned when points of different dimension meet
	ErrDimensionMismatch = vector.ErrDimensionMismatch
	duplicateIDErr       = errors.New("duplicate point id")
	emptyStoreErr        = errors.New("point store must contain at least two points")
)

// Point is a single immutable indexable item
type Point struct {
	ID      uint32
	Address []float64
}

// Config holds domain constants of a point set
type Config struct {
	// Radius is the max distance of a "true near" pair
	Radius float64
	// Tolerance scales Radius into the min distance of a "true far" pair
	Tolerance float64
	// InitialPopulation is the number of random hash functions to seed evolution with
	InitialPopulation int
}

// FarRadius returns Radius*Tolerance
func (c Config) FarRadius() float64 {
	return c.Radius * c.Tolerance
}

// Store gives read-only access to the point set
type Store interface {
	// Points returns all points in stable iteration order
	Points() []Point
	// Lookup returns position of the point in Points()
	Lookup(id uint32) (int, bool)
	Address(p Point) []float64
	Distance(p, q Point) (float64, error)
	Dimension() int
	Config() Config
}

// MemoryStore keeps all points in RAM
type MemoryStore struct {
	points []Point
	index  map[uint32]int
	dims   int
	metric Metric
	config Config
}

// NewMemoryStore validates points and builds id index
func NewMemoryStore(pts []Point, metric Metric, config Config) (*MemoryStore, error) {
	if len(pts) < 2 {
		return nil, emptyStoreErr
	}
	if metric == nil {
		metric = Euclidean{}
	}
	s := &MemoryStore{
		points: make([]Point, len(pts)),
		index:  make(map[uint32]int, len(pts)),
		dims:   len(pts[0].Address),
		metric: metric,
		config: config,
	}
	if s.dims == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional points", ErrDimensionMismatch)
	}
	for i, p := range pts {
		if len(p.Address) != s.dims {
			return nil, fmt.Errorf("%w: point %d has %d dims, expected %d", ErrDimensionMismatch, p.ID, len(p.Address), s.dims)
		}
		if _, ok := s.index[p.ID]; ok {
			return nil, fmt.Errorf("%w: %d", duplicateIDErr, p.ID)
		}
		addr := make([]float64, s.dims)
		copy(addr, p.Address)
		s.points[i] = Point{ID: p.ID, Address: addr}
		s.index[p.ID] = i
	}
	return s, nil
}

// FromVectors assigns sequential ids starting from 1
func FromVectors(vecs [][]float64, metric Metric, config Config) (*MemoryStore, error) {
	pts := make([]Point, len(vecs))
	for i, v := range vecs {
		pts[i] = Point{ID: uint32(i + 1), Address: v}
	}
	return NewMemoryStore(pts, metric, config)
}

func (s *MemoryStore) Points() []Point {
	return s.points
}

func (s *MemoryStore) Lookup(id uint32) (int, bool) {
	idx, ok := s.index[id]
	return idx, ok
}

func (s *MemoryStore) Address(p Point) []float64 {
	return p.Address
}

func (s *MemoryStore) Distance(p, q Point) (float64, error) {
	return s.metric.Distance(p.Address, q.Address)
}

func (s *MemoryStore) Dimension() int {
	return s.dims
}

func (s *MemoryStore) Config() Config {
	return s.config
}
