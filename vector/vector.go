package vector

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const tol = 1e-6

var (
	// ErrDimensionMismatch is returned when two vectors of different length are combined
	ErrDimensionMismatch = errors.New("vectors dimensions mismatch")
	emptyDataErr         = errors.New("data slice is empty")
)

// ConvertTo64 converts float32 slice to float64
func ConvertTo64(ar []float32) []float64 {
	newar := make([]float64, len(ar))
	for i, v := range ar {
		newar[i] = float64(v)
	}
	return newar
}

// NewVec creates new blas vector
func NewVec(data []float64) blas64.Vector {
	if data == nil {
		data = make([]float64, 0)
	}
	return blas64.Vector{
		N:    len(data),
		Inc:  1,
		Data: data,
	}
}

// Dot calculates dot product of the two vectors
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	return blas64.Dot(NewVec(a), NewVec(b)), nil
}

// L2 calculates l2-distance between two vectors
func L2(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	res := NewVec(make([]float64, len(b)))
	blas64.Copy(NewVec(b), res)
	blas64.Axpy(-1.0, NewVec(a), res)
	return blas64.Nrm2(res), nil
}

// CosineDist calculates cosine distance btw the two given vectors
func CosineDist(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	va, vb := NewVec(a), NewVec(b)
	denom := blas64.Nrm2(va) * blas64.Nrm2(vb)
	if denom < tol {
		return 0, errors.New("cosine distance is undefined for zero vectors")
	}
	return 1.0 - blas64.Dot(va, vb)/denom, nil
}

// IsZeroVector returns true if the sum of absolute values is close to 0.0
func IsZeroVector(v []float64) bool {
	return blas64.Asum(NewVec(v)) <= tol
}

// Equal reports whether both vectors hold exactly the same values
func Equal(a, b []float64) bool {
	return floats.Equal(a, b)
}

// MeanStd returns sample mean and standard deviation of the vector components.
// Std is 0 for vectors shorter than two elements.
func MeanStd(v []float64) (float64, float64, error) {
	if len(v) == 0 {
		return 0, 0, emptyDataErr
	}
	if len(v) == 1 {
		return v[0], 0, nil
	}
	mean, std := stat.MeanStdDev(v, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std, nil
}

// GetMeanStd returns per-dimension mean and std of the NxM matrix
func GetMeanStd(data [][]float64) ([]float64, []float64, error) {
	if len(data) == 0 {
		return nil, nil, emptyDataErr
	}
	dims := len(data[0])
	mean := make([]float64, dims)
	std := make([]float64, dims)
	column := make([]float64, len(data))
	for j := 0; j < dims; j++ {
		for i, row := range data {
			if len(row) != dims {
				return nil, nil, ErrDimensionMismatch
			}
			column[i] = row[j]
		}
		m, s, err := MeanStd(column)
		if err != nil {
			return nil, nil, err
		}
		mean[j], std[j] = m, s
	}
	return mean, std, nil
}
